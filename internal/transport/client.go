// Package transport is the client side of the receptionist RPC protocol.
//
// Client implements the Requester, Prober and delivery Transport
// interfaces the session needs, and the peer Forwarder receptionists use
// among themselves. One Connect client is kept per receptionist address.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"

	v1 "github.com/yndnr/gatemesh-go/api/receptionist/v1"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/event"
)

// Config configures a Client.
type Config struct {
	// HTTPClient defaults to an http.Client with Timeout.
	HTTPClient connect.HTTPClient
	// Timeout bounds each HTTP request of the default client. Streams are
	// bounded by their context only.
	Timeout time.Duration
	// TLSConfig is used by the default clients for https receptionists.
	TLSConfig    *tls.Config
	Interceptors []connect.Interceptor
	Logger       *slog.Logger
}

// Client calls receptionists.
type Client struct {
	cfg    Config
	stream connect.HTTPClient
	logger *slog.Logger

	mu      sync.Mutex
	clients map[domain.EndpointID]*v1.ReceptionistServiceClient
	streams map[domain.EndpointID]*v1.ReceptionistServiceClient
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	stream := cfg.HTTPClient
	if cfg.HTTPClient == nil {
		var rt http.RoundTripper
		if cfg.TLSConfig != nil {
			t := http.DefaultTransport.(*http.Transport).Clone()
			t.TLSClientConfig = cfg.TLSConfig
			rt = t
		}
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout, Transport: rt}
		stream = &http.Client{Transport: rt}
	}
	return &Client{
		cfg:     cfg,
		stream:  stream,
		logger:  cfg.Logger,
		clients: make(map[domain.EndpointID]*v1.ReceptionistServiceClient),
		streams: make(map[domain.EndpointID]*v1.ReceptionistServiceClient),
	}
}

// GetContacts asks addr for the current contact set.
func (c *Client) GetContacts(ctx context.Context, addr domain.EndpointID, clientID domain.ClientID) ([]domain.EndpointID, error) {
	resp, err := c.client(addr).GetContacts(ctx, connect.NewRequest(&v1.GetContactsRequest{
		ClientID: string(clientID),
	}))
	if err != nil {
		return nil, fmt.Errorf("get contacts from %s: %w", addr, v1.FromConnectError(err))
	}

	contacts := make([]domain.EndpointID, 0, len(resp.Msg.Contacts))
	for _, raw := range resp.Msg.Contacts {
		if ep := domain.NormalizeEndpoint(raw); ep != "" {
			contacts = append(contacts, ep)
		}
	}
	return contacts, nil
}

// Heartbeat probes addr.
func (c *Client) Heartbeat(ctx context.Context, addr domain.EndpointID, clientID domain.ClientID) error {
	_, err := c.client(addr).Heartbeat(ctx, connect.NewRequest(&v1.HeartbeatRequest{
		ClientID: string(clientID),
	}))
	if err != nil {
		return fmt.Errorf("heartbeat to %s: %w", addr, v1.FromConnectError(err))
	}
	return nil
}

// Resolve lists the registrations of path reachable through addr.
func (c *Client) Resolve(ctx context.Context, addr domain.EndpointID, path domain.ServicePath) ([]domain.Registration, error) {
	resp, err := c.client(addr).Resolve(ctx, connect.NewRequest(&v1.ResolveRequest{
		Path: string(path),
	}))
	if err != nil {
		return nil, fmt.Errorf("resolve %s on %s: %w", path, addr, v1.FromConnectError(err))
	}
	return v1.DomainRegistrations(resp.Msg.Registrations), nil
}

// Deliver sends env to addr.
func (c *Client) Deliver(ctx context.Context, addr domain.EndpointID, env domain.Envelope) error {
	_, err := c.client(addr).Deliver(ctx, connect.NewRequest(v1.NewDeliverRequest(env)))
	if err != nil {
		return fmt.Errorf("deliver %s to %s: %w", env.Target, addr, v1.FromConnectError(err))
	}
	return nil
}

// WatchClusterClients streams client events from addr to fn until ctx is
// done or the stream ends.
func (c *Client) WatchClusterClients(ctx context.Context, addr domain.EndpointID, fn func(event.Event[domain.ClientID])) error {
	stream, err := c.streamClient(addr).WatchClusterClients(ctx, connect.NewRequest(&v1.WatchClusterClientsRequest{}))
	if err != nil {
		return fmt.Errorf("watch clients on %s: %w", addr, v1.FromConnectError(err))
	}
	defer stream.Close()

	for stream.Receive() {
		msg := stream.Msg()
		ev := event.Event[domain.ClientID]{
			Version: msg.Version,
			Item:    domain.ClientID(msg.Client),
		}
		switch msg.Kind {
		case v1.ClientEventSnapshot:
			ev.Kind = event.KindSnapshot
			for _, id := range msg.Clients {
				ev.Items = append(ev.Items, domain.ClientID(id))
			}
		case v1.ClientEventUp:
			ev.Kind = event.KindAdded
		case v1.ClientEventUnreachable:
			ev.Kind = event.KindRemoved
		default:
			c.logger.Debug("ignoring unknown client event", "kind", msg.Kind)
			continue
		}
		fn(ev)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch clients on %s: %w", addr, v1.FromConnectError(err))
	}
	return nil
}

func (c *Client) client(addr domain.EndpointID) *v1.ReceptionistServiceClient {
	return c.lookup(c.clients, c.cfg.HTTPClient, addr)
}

func (c *Client) streamClient(addr domain.EndpointID) *v1.ReceptionistServiceClient {
	return c.lookup(c.streams, c.stream, addr)
}

func (c *Client) lookup(m map[domain.EndpointID]*v1.ReceptionistServiceClient, hc connect.HTTPClient, addr domain.EndpointID) *v1.ReceptionistServiceClient {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := m[addr]; ok {
		return cl
	}
	cl := v1.NewReceptionistServiceClient(hc, string(addr),
		connect.WithInterceptors(c.cfg.Interceptors...))
	m[addr] = cl
	return cl
}
