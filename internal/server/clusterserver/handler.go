package clusterserver

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	v1 "github.com/yndnr/gatemesh-go/api/receptionist/v1"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/event"
	"github.com/yndnr/gatemesh-go/internal/core/receptionist"
	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
)

// watchBuffer is the channel capacity of one WatchClusterClients stream.
const watchBuffer = 64

// Handler serves ReceptionistService from a registry. Logging goes through
// the request logger when the HTTP middleware provides one.
type Handler struct {
	registry *receptionist.Registry
	node     string
	logger   *slog.Logger
}

var _ v1.ReceptionistServiceHandler = (*Handler)(nil)

// NewHandler creates a new RPC handler.
func NewHandler(registry *receptionist.Registry, node string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		registry: registry,
		node:     node,
		logger:   log,
	}
}

// GetContacts handles the GetContacts RPC.
func (h *Handler) GetContacts(
	ctx context.Context,
	req *connect.Request[v1.GetContactsRequest],
) (*connect.Response[v1.GetContactsResponse], error) {
	contacts, err := h.registry.OnDiscoveryRequest(ctx, domain.ClientID(req.Msg.ClientID))
	if err != nil {
		return nil, v1.ToConnectError(err)
	}

	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, string(c))
	}
	return connect.NewResponse(&v1.GetContactsResponse{Contacts: out}), nil
}

// Heartbeat handles the Heartbeat RPC.
func (h *Handler) Heartbeat(
	ctx context.Context,
	req *connect.Request[v1.HeartbeatRequest],
) (*connect.Response[v1.HeartbeatResponse], error) {
	if err := h.registry.OnHeartbeat(ctx, domain.ClientID(req.Msg.ClientID)); err != nil {
		return nil, v1.ToConnectError(err)
	}
	return connect.NewResponse(&v1.HeartbeatResponse{Node: h.node}), nil
}

// Resolve handles the Resolve RPC.
func (h *Handler) Resolve(
	ctx context.Context,
	req *connect.Request[v1.ResolveRequest],
) (*connect.Response[v1.ResolveResponse], error) {
	path := domain.ServicePath(req.Msg.Path)
	if err := path.Validate(); err != nil {
		return nil, v1.ToConnectError(err)
	}

	regs := h.registry.Resolve(path)
	return connect.NewResponse(&v1.ResolveResponse{
		Registrations: v1.NewRegistrations(regs),
	}), nil
}

// Deliver handles the Deliver RPC.
func (h *Handler) Deliver(
	ctx context.Context,
	req *connect.Request[v1.DeliverRequest],
) (*connect.Response[v1.DeliverResponse], error) {
	env := req.Msg.Envelope()
	if env.ClientID == "" {
		return nil, v1.ToConnectError(domain.ErrInvalidArgument.WithDetails("client id is empty"))
	}
	if err := h.registry.Deliver(ctx, env); err != nil {
		logger.From(ctx, h.logger).Debug("delivery failed",
			"client_id", string(env.ClientID),
			"path", string(env.Target),
			"forwarded", env.Forwarded,
			"error", err)
		return nil, v1.ToConnectError(err)
	}
	return connect.NewResponse(&v1.DeliverResponse{}), nil
}

// WatchClusterClients streams cluster client events until the caller goes
// away or the registry stops. The first event is a snapshot.
func (h *Handler) WatchClusterClients(
	ctx context.Context,
	req *connect.Request[v1.WatchClusterClientsRequest],
	stream *connect.ServerStream[v1.ClusterClientEvent],
) error {
	events := make(chan event.Event[domain.ClientID], watchBuffer)
	id := h.registry.SubscribeClusterClients(events)
	defer h.registry.UnsubscribeClusterClients(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.registry.Done():
			return v1.ToConnectError(domain.ErrReceptionistStopped)
		case ev := <-events:
			if err := stream.Send(toClientEvent(ev)); err != nil {
				logger.From(ctx, h.logger).Debug("client event stream closed", "error", err)
				return nil
			}
		}
	}
}

func toClientEvent(ev event.Event[domain.ClientID]) *v1.ClusterClientEvent {
	out := &v1.ClusterClientEvent{Version: ev.Version}
	switch ev.Kind {
	case event.KindSnapshot:
		out.Kind = v1.ClientEventSnapshot
		out.Clients = make([]string, 0, len(ev.Items))
		for _, c := range ev.Items {
			out.Clients = append(out.Clients, string(c))
		}
	case event.KindAdded:
		out.Kind = v1.ClientEventUp
		out.Client = string(ev.Item)
	case event.KindRemoved:
		out.Kind = v1.ClientEventUnreachable
		out.Client = string(ev.Item)
	}
	return out
}
