package domain

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ServicePath is the logical name a service is registered under
// (e.g. "/user/serviceA").
type ServicePath string

// Validate checks that the path is absolute and has no empty segments.
func (p ServicePath) Validate() error {
	s := string(p)
	if s == "" || !strings.HasPrefix(s, "/") || s == "/" {
		return ErrInvalidArgument.WithDetails("service path must be absolute: " + s)
	}
	if strings.Contains(s, "//") {
		return ErrInvalidArgument.WithDetails("service path has an empty segment: " + s)
	}
	return nil
}

// DeliveryMode selects single-target or fan-out delivery.
type DeliveryMode int

const (
	ModeUnicast DeliveryMode = iota
	ModeFanout
)

// String returns the mode name.
func (m DeliveryMode) String() string {
	if m == ModeFanout {
		return "fanout"
	}
	return "unicast"
}

// PendingMessage is an outbound message held while the session has no
// established contact.
type PendingMessage struct {
	Target        ServicePath
	Payload       []byte
	Mode          DeliveryMode
	LocalAffinity bool
	EnqueuedAt    time.Time
}

// RegistrationID is the logical identity of one service registration:
// the owning receptionist node name followed by the path.
type RegistrationID string

// NewRegistrationID builds the identity for path registered on node.
func NewRegistrationID(node string, path ServicePath) RegistrationID {
	return RegistrationID(node + string(path))
}

// Registration is one resolvable service instance as seen through a contact.
type Registration struct {
	ID    RegistrationID `json:"id"`
	Path  ServicePath    `json:"path"`
	Owner EndpointID     `json:"owner"`
}

// Envelope carries one payload from a client to a service.
type Envelope struct {
	ID            string
	ClientID      ClientID
	Target        ServicePath
	Payload       []byte
	LocalAffinity bool
	// AllowRemote lets a local-affinity envelope fall back to a remote
	// registration when the receiving node has none.
	AllowRemote bool
	// RegistrationID, when set, pins delivery to a single registration.
	RegistrationID RegistrationID
	// Forwarded is set when a receptionist relays the envelope to a peer;
	// a forwarded envelope is only ever delivered locally.
	Forwarded bool
}

// NewEnvelopeID returns a unique envelope identifier.
func NewEnvelopeID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}

// Service is the handle of a locally registered service.
type Service interface {
	Deliver(ctx context.Context, env Envelope) error
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(ctx context.Context, env Envelope) error

// Deliver calls f(ctx, env).
func (f ServiceFunc) Deliver(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// ServiceRegistration is a locally registered service.
type ServiceRegistration struct {
	ID     RegistrationID
	Path   ServicePath
	Handle Service
}

// Peer is another receptionist known through cluster gossip.
type Peer struct {
	Name     string
	Address  EndpointID
	Services []ServicePath
}
