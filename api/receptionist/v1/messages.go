package receptionistv1

import (
	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// GetContactsRequest asks a receptionist for the current contact set.
type GetContactsRequest struct {
	ClientID string `json:"client_id"`
}

// GetContactsResponse lists receptionist RPC addresses.
type GetContactsResponse struct {
	Contacts []string `json:"contacts"`
}

// HeartbeatRequest is a liveness probe from a client.
type HeartbeatRequest struct {
	ClientID string `json:"client_id"`
}

// HeartbeatResponse acknowledges a heartbeat.
type HeartbeatResponse struct {
	Node string `json:"node,omitempty"`
}

// ResolveRequest asks for every registration of a path.
type ResolveRequest struct {
	ClientID string `json:"client_id,omitempty"`
	Path     string `json:"path"`
}

// Registration is one service instance.
type Registration struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Owner string `json:"owner"`
}

// ResolveResponse lists registrations reachable through the receptionist.
type ResolveResponse struct {
	Registrations []Registration `json:"registrations"`
}

// DeliverRequest carries one envelope.
type DeliverRequest struct {
	ID             string `json:"id"`
	ClientID       string `json:"client_id"`
	Path           string `json:"path"`
	Payload        []byte `json:"payload,omitempty"`
	LocalAffinity  bool   `json:"local_affinity,omitempty"`
	AllowRemote    bool   `json:"allow_remote,omitempty"`
	RegistrationID string `json:"registration_id,omitempty"`
	Forwarded      bool   `json:"forwarded,omitempty"`
}

// DeliverResponse acknowledges a delivery.
type DeliverResponse struct{}

// WatchClusterClientsRequest opens a client event stream.
type WatchClusterClientsRequest struct{}

// Client event kinds.
const (
	ClientEventSnapshot    = "snapshot"
	ClientEventUp          = "up"
	ClientEventUnreachable = "unreachable"
)

// ClusterClientEvent is one event on the client event stream.
type ClusterClientEvent struct {
	Kind    string   `json:"kind"`
	Version uint64   `json:"version"`
	Client  string   `json:"client,omitempty"`
	Clients []string `json:"clients,omitempty"`
}

// NewDeliverRequest converts an envelope to its wire form.
func NewDeliverRequest(env domain.Envelope) *DeliverRequest {
	return &DeliverRequest{
		ID:             env.ID,
		ClientID:       string(env.ClientID),
		Path:           string(env.Target),
		Payload:        env.Payload,
		LocalAffinity:  env.LocalAffinity,
		AllowRemote:    env.AllowRemote,
		RegistrationID: string(env.RegistrationID),
		Forwarded:      env.Forwarded,
	}
}

// Envelope converts the request back to an envelope.
func (r *DeliverRequest) Envelope() domain.Envelope {
	return domain.Envelope{
		ID:             r.ID,
		ClientID:       domain.ClientID(r.ClientID),
		Target:         domain.ServicePath(r.Path),
		Payload:        r.Payload,
		LocalAffinity:  r.LocalAffinity,
		AllowRemote:    r.AllowRemote,
		RegistrationID: domain.RegistrationID(r.RegistrationID),
		Forwarded:      r.Forwarded,
	}
}

// NewRegistrations converts registrations to their wire form.
func NewRegistrations(regs []domain.Registration) []Registration {
	out := make([]Registration, 0, len(regs))
	for _, reg := range regs {
		out = append(out, Registration{ID: string(reg.ID), Path: string(reg.Path), Owner: string(reg.Owner)})
	}
	return out
}

// DomainRegistrations converts wire registrations back.
func DomainRegistrations(regs []Registration) []domain.Registration {
	out := make([]domain.Registration, 0, len(regs))
	for _, reg := range regs {
		out = append(out, domain.Registration{
			ID:    domain.RegistrationID(reg.ID),
			Path:  domain.ServicePath(reg.Path),
			Owner: domain.EndpointID(reg.Owner),
		})
	}
	return out
}

// ClientScoped is implemented by requests made on behalf of a client.
type ClientScoped interface {
	GetClientID() string
}

// GetClientID returns the requesting client.
func (r *GetContactsRequest) GetClientID() string { return r.ClientID }

// GetClientID returns the requesting client.
func (r *HeartbeatRequest) GetClientID() string { return r.ClientID }

// GetClientID returns the requesting client, if given.
func (r *ResolveRequest) GetClientID() string { return r.ClientID }

// GetClientID returns the sending client.
func (r *DeliverRequest) GetClientID() string { return r.ClientID }
