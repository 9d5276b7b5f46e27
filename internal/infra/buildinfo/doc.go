// Package buildinfo reports the version a gatemesh binary was built from.
//
// Version, Commit and BuildTime are injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/gatemesh-go/internal/infra/buildinfo.Version=v0.3.0"
//
// When Commit is not injected it is read from the VCS stamp the Go
// toolchain embeds in the binary.
package buildinfo
