// Package command provides the gatemesh-cli commands.
//
// Every command builds a client from the same configuration the library
// uses (file, GATEMESH_* environment, then flags):
//
//   - send.go: send and send-all through a client session
//   - contacts.go: contacts (session status) and resolve
//   - clients.go: the receptionist's cluster client feed
//   - shell.go: an interactive shell over one long-lived session
//   - config.go: config show and config validate
//   - version.go: build information
package command
