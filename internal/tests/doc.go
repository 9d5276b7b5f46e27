// Package tests holds end-to-end tests that run receptionist nodes and
// client sessions in one process over loopback.
//
// They are skipped with -short.
package tests
