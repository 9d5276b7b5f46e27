package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// EndpointID is the network address of a receptionist, as dialed by clients
// (e.g. "http://10.0.0.5:7355").
type EndpointID string

// ClientID identifies one external client instance.
type ClientID string

// ClientIDPrefix is prepended to generated client identifiers.
const ClientIDPrefix = "gmcl_"

// NewClientID generates a new client identifier.
//
// Format: gmcl_{ULID}, lowercase.
func NewClientID() ClientID {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return ClientID(ClientIDPrefix + strings.ToLower(id.String()))
}

// NormalizeEndpoint trims whitespace and a trailing slash and adds an http
// scheme when none is given, so "host:7355" and "http://host:7355/" map to
// the same registry key.
func NormalizeEndpoint(raw string) EndpointID {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, "/")
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	return EndpointID(s)
}

// ContactPoint is a known receptionist address and its liveness state.
type ContactPoint struct {
	Address EndpointID
	// LastSeenAt is the last time the contact answered or was confirmed by a
	// discovery response. Zero means never.
	LastSeenAt          time.Time
	ConsecutiveFailures uint
	// Seed marks contacts from the configured initial set. Seeds are never
	// pruned by a discovery merge.
	Seed bool
}

// SessionState is the lifecycle state of a client session.
type SessionState int

const (
	StateEstablishing SessionState = iota
	StateEstablished
	StateReestablishing
	StateStopped
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateEstablishing:
		return "establishing"
	case StateEstablished:
		return "established"
	case StateReestablishing:
		return "reestablishing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// KnownClient is a client the receptionist has heard from.
type KnownClient struct {
	Identity        ClientID
	LastHeartbeatAt time.Time
}
