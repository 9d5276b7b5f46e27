// Package repl provides the interactive shell of gatemesh-cli.
//
// The shell keeps one client session open across commands, so heartbeats,
// contact refreshes and re-establishment can be watched while sending.
// Lines are split on whitespace; double quotes group a payload with spaces.
package repl
