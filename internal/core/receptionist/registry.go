// Package receptionist implements the cluster side of the client protocol.
//
// A Registry owns the services registered on its node and the external
// clients currently talking to it. Client bookkeeping is single-writer:
// heartbeats, discovery touches and the unreachable sweep are serialized
// through one loop. The service table is written only by that loop and
// read concurrently by Resolve and Deliver.
package receptionist

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/event"
	"github.com/yndnr/gatemesh-go/pkg/cmap"
)

// PeerDirectory is the node's view of the receptionist cluster.
type PeerDirectory interface {
	// Self returns this node's name and RPC address.
	Self() domain.Peer
	// Peers returns the other live receptionists and the services they
	// advertise.
	Peers() []domain.Peer
	// Advertise publishes this node's service paths to its peers.
	Advertise(paths []domain.ServicePath)
}

// Forwarder relays an envelope to a peer receptionist.
type Forwarder interface {
	Deliver(ctx context.Context, addr domain.EndpointID, env domain.Envelope) error
}

// Metrics receives registry telemetry. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ClientUp()
	ClientUnreachable()
	KnownClients(n int)
	Delivery(outcome string)
	RateLimited()
}

// Config configures a Registry.
type Config struct {
	Directory PeerDirectory
	Forwarder Forwarder

	// AcceptableHeartbeatPause is how long a client may stay silent before
	// it is reported unreachable.
	AcceptableHeartbeatPause time.Duration
	// FailureDetectionInterval is the sweep period. Defaults to a quarter
	// of the pause.
	FailureDetectionInterval time.Duration

	// NumberOfContacts caps the contacts returned per discovery request.
	// Zero returns every receptionist.
	NumberOfContacts int

	// ClientRateLimit caps heartbeat and discovery requests per client per
	// second. Zero disables limiting.
	ClientRateLimit float64
	ClientRateBurst int

	Metrics Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.Directory == nil:
		return domain.ErrInvalidConfiguration.WithDetails("peer directory is required")
	case c.AcceptableHeartbeatPause <= 0:
		return domain.ErrInvalidConfiguration.WithDetails("acceptable-heartbeat-pause must be positive")
	case c.FailureDetectionInterval < 0:
		return domain.ErrInvalidConfiguration.WithDetails("failure-detection-interval must not be negative")
	case c.NumberOfContacts < 0:
		return domain.ErrInvalidConfiguration.WithDetails("number-of-contacts must not be negative")
	case c.ClientRateLimit < 0:
		return domain.ErrInvalidConfiguration.WithDetails("client-rate-limit must not be negative")
	}
	return nil
}

type registerCmd struct {
	reg   domain.ServiceRegistration
	reply chan struct{}
}

type unregisterCmd struct {
	path  domain.ServicePath
	reply chan bool
}

type touchCmd struct {
	client domain.ClientID
	reply  chan struct{}
}

type knownCmd struct {
	reply chan []domain.KnownClient
}

// Registry is a receptionist node.
type Registry struct {
	cfg     Config
	logger  *slog.Logger
	metrics Metrics

	services *cmap.Map[domain.ServicePath, domain.ServiceRegistration]
	clients  *event.Publisher[domain.ClientID]
	limiter  *limiterRegistry

	mailbox  chan any
	started  atomic.Bool
	stopping chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// Owned by the loop.
	known map[domain.ClientID]*domain.KnownClient
}

// New creates a Registry. Call Start to run it.
func New(cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FailureDetectionInterval == 0 {
		cfg.FailureDetectionInterval = cfg.AcceptableHeartbeatPause / 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := &Registry{
		cfg:      cfg,
		logger:   cfg.Logger.With("node", cfg.Directory.Self().Name),
		metrics:  cfg.Metrics,
		services: cmap.New[domain.ServicePath, domain.ServiceRegistration](),
		clients:  event.NewPublisher[domain.ClientID](),
		mailbox:  make(chan any),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
		known:    make(map[domain.ClientID]*domain.KnownClient),
	}
	if cfg.ClientRateLimit > 0 {
		r.limiter = newLimiterRegistry(cfg.ClientRateLimit, cfg.ClientRateBurst)
	}
	return r, nil
}

// Start runs the registry loop. It does nothing after Stop.
func (r *Registry) Start() {
	if r.started.CompareAndSwap(false, true) {
		go r.run()
	}
}

// Stop stops the loop and closes client event subscriptions. A registry
// that was never started stops at once.
func (r *Registry) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		close(r.stopping)
		if r.started.CompareAndSwap(false, true) {
			r.clients.Close()
			close(r.done)
		}
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the registry loop has exited.
func (r *Registry) Done() <-chan struct{} {
	return r.done
}

// Register adds or replaces the service at path. Registering the same path
// again replaces the handle and keeps the registration identity.
func (r *Registry) Register(ctx context.Context, path domain.ServicePath, handle domain.Service) (domain.RegistrationID, error) {
	if err := path.Validate(); err != nil {
		return "", err
	}
	if handle == nil {
		return "", domain.ErrInvalidArgument.WithDetails("service handle is nil")
	}

	reg := domain.ServiceRegistration{
		ID:     domain.NewRegistrationID(r.cfg.Directory.Self().Name, path),
		Path:   path,
		Handle: handle,
	}
	reply := make(chan struct{})
	if err := r.call(ctx, registerCmd{reg: reg, reply: reply}, reply); err != nil {
		return "", err
	}
	return reg.ID, nil
}

// Unregister removes the service at path. It reports whether one existed.
func (r *Registry) Unregister(ctx context.Context, path domain.ServicePath) (bool, error) {
	reply := make(chan bool, 1)
	if err := r.post(ctx, unregisterCmd{path: path, reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Services returns the locally registered paths.
func (r *Registry) Services() []domain.ServicePath {
	paths := r.services.Keys()
	slices.Sort(paths)
	return paths
}

// OnHeartbeat records a heartbeat from client.
func (r *Registry) OnHeartbeat(ctx context.Context, client domain.ClientID) error {
	return r.touch(ctx, client)
}

// OnDiscoveryRequest records contact from client and returns the
// receptionist addresses it should use, this node included.
func (r *Registry) OnDiscoveryRequest(ctx context.Context, client domain.ClientID) ([]domain.EndpointID, error) {
	if err := r.touch(ctx, client); err != nil {
		return nil, err
	}

	self := r.cfg.Directory.Self()
	addrs := []domain.EndpointID{self.Address}
	for _, p := range r.cfg.Directory.Peers() {
		if p.Address != "" && p.Address != self.Address {
			addrs = append(addrs, p.Address)
		}
	}
	return selectContacts(string(client), addrs, r.cfg.NumberOfContacts), nil
}

// KnownClients returns the clients currently considered reachable.
func (r *Registry) KnownClients(ctx context.Context) ([]domain.KnownClient, error) {
	reply := make(chan []domain.KnownClient, 1)
	if err := r.post(ctx, knownCmd{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case known := <-reply:
		return known, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubscribeClusterClients registers ch for client events. The first event
// is a snapshot of the reachable clients; Added means up, Removed means
// unreachable.
func (r *Registry) SubscribeClusterClients(ch chan<- event.Event[domain.ClientID]) event.SubscriptionID {
	return r.clients.Subscribe(ch)
}

// UnsubscribeClusterClients removes a subscription.
func (r *Registry) UnsubscribeClusterClients(id event.SubscriptionID) {
	r.clients.Unsubscribe(id)
}

// Resolve returns every registration of path reachable through this node:
// the local one, if any, followed by those advertised by peers.
func (r *Registry) Resolve(path domain.ServicePath) []domain.Registration {
	self := r.cfg.Directory.Self()

	var out []domain.Registration
	if reg, ok := r.services.Get(path); ok {
		out = append(out, domain.Registration{ID: reg.ID, Path: path, Owner: self.Address})
	}

	peers := r.cfg.Directory.Peers()
	slices.SortFunc(peers, func(a, b domain.Peer) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	for _, p := range peers {
		if p.Address == self.Address || !slices.Contains(p.Services, path) {
			continue
		}
		out = append(out, domain.Registration{
			ID:    domain.NewRegistrationID(p.Name, path),
			Path:  path,
			Owner: p.Address,
		})
	}
	return out
}

// Deliver hands env to one registration of its target.
//
// A pinned envelope goes to its registration only. Otherwise a local
// instance is used when local affinity is requested; without affinity one
// registration is picked per client by rendezvous hashing. Envelopes
// already forwarded by a peer are only delivered locally.
func (r *Registry) Deliver(ctx context.Context, env domain.Envelope) error {
	if err := env.Target.Validate(); err != nil {
		return err
	}

	err := r.deliver(ctx, env)
	switch {
	case err == nil:
		r.metrics.Delivery("delivered")
	case errors.Is(err, domain.ErrUnknownTarget):
		r.metrics.Delivery("unknown_target")
	default:
		r.metrics.Delivery("failed")
	}
	return err
}

func (r *Registry) deliver(ctx context.Context, env domain.Envelope) error {
	if env.RegistrationID != "" {
		return r.deliverPinned(ctx, env)
	}

	local, hasLocal := r.services.Get(env.Target)
	if hasLocal && (env.LocalAffinity || env.Forwarded) {
		return r.deliverLocal(ctx, local, env)
	}
	if env.Forwarded {
		return domain.ErrUnknownTarget.WithDetails(string(env.Target))
	}
	if env.LocalAffinity && !env.AllowRemote {
		return domain.ErrUnknownTarget.WithDetails("no local instance of " + string(env.Target))
	}

	reg, ok := pickRegistration(string(env.ClientID), r.Resolve(env.Target))
	if !ok {
		return domain.ErrUnknownTarget.WithDetails(string(env.Target))
	}
	if hasLocal && reg.ID == local.ID {
		return r.deliverLocal(ctx, local, env)
	}
	return r.forward(ctx, reg.Owner, env)
}

func (r *Registry) deliverPinned(ctx context.Context, env domain.Envelope) error {
	if local, ok := r.services.Get(env.Target); ok && local.ID == env.RegistrationID {
		return r.deliverLocal(ctx, local, env)
	}
	if env.Forwarded {
		return domain.ErrUnknownTarget.WithDetails(string(env.RegistrationID))
	}
	for _, reg := range r.Resolve(env.Target) {
		if reg.ID == env.RegistrationID {
			return r.forward(ctx, reg.Owner, env)
		}
	}
	return domain.ErrUnknownTarget.WithDetails(string(env.RegistrationID))
}

func (r *Registry) deliverLocal(ctx context.Context, reg domain.ServiceRegistration, env domain.Envelope) error {
	if err := reg.Handle.Deliver(ctx, env); err != nil {
		r.logger.Warn("service rejected message",
			"path", env.Target,
			"envelope_id", env.ID,
			"error", err)
		return domain.ErrDeliveryFailed.WithCause(err)
	}
	return nil
}

func (r *Registry) forward(ctx context.Context, addr domain.EndpointID, env domain.Envelope) error {
	if r.cfg.Forwarder == nil {
		return domain.ErrUnknownTarget.WithDetails("forwarding disabled")
	}
	env.Forwarded = true
	if err := r.cfg.Forwarder.Deliver(ctx, addr, env); err != nil {
		if domain.IsDomainError(err, "") {
			return err
		}
		return domain.ErrDeliveryFailed.WithCause(err)
	}
	return nil
}

func (r *Registry) touch(ctx context.Context, client domain.ClientID) error {
	if client == "" {
		return domain.ErrInvalidArgument.WithDetails("client id is empty")
	}
	if r.limiter != nil && !r.limiter.Allow(client) {
		r.metrics.RateLimited()
		return domain.ErrRateLimited.WithDetails(string(client))
	}
	reply := make(chan struct{})
	return r.call(ctx, touchCmd{client: client, reply: reply}, reply)
}

func (r *Registry) post(ctx context.Context, msg any) error {
	select {
	case r.mailbox <- msg:
		return nil
	case <-r.done:
		return domain.ErrReceptionistStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) call(ctx context.Context, msg any, reply chan struct{}) error {
	if err := r.post(ctx, msg); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.FailureDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-r.mailbox:
			r.handle(msg)
		case <-ticker.C:
			r.sweep()
		case <-r.stopping:
			r.clients.Close()
			return
		}
	}
}

func (r *Registry) handle(msg any) {
	switch m := msg.(type) {
	case registerCmd:
		_, existed := r.services.Get(m.reg.Path)
		r.services.Set(m.reg.Path, m.reg)
		r.cfg.Directory.Advertise(r.Services())
		if !existed {
			r.logger.Info("service registered", "path", m.reg.Path)
		}
		close(m.reply)

	case unregisterCmd:
		_, existed := r.services.Pop(m.path)
		if existed {
			r.cfg.Directory.Advertise(r.Services())
			r.logger.Info("service unregistered", "path", m.path)
		}
		m.reply <- existed

	case touchCmd:
		now := r.cfg.Now()
		if kc, ok := r.known[m.client]; ok {
			kc.LastHeartbeatAt = now
		} else {
			r.known[m.client] = &domain.KnownClient{Identity: m.client, LastHeartbeatAt: now}
			r.clients.Add(m.client)
			r.metrics.ClientUp()
			r.metrics.KnownClients(len(r.known))
			r.logger.Info("cluster client up", "client_id", m.client)
		}
		close(m.reply)

	case knownCmd:
		out := make([]domain.KnownClient, 0, len(r.known))
		for _, kc := range r.known {
			out = append(out, *kc)
		}
		slices.SortFunc(out, func(a, b domain.KnownClient) int {
			switch {
			case a.Identity < b.Identity:
				return -1
			case a.Identity > b.Identity:
				return 1
			}
			return 0
		})
		m.reply <- out
	}
}

// sweep evicts clients silent for longer than the acceptable pause.
func (r *Registry) sweep() {
	deadline := r.cfg.Now().Add(-r.cfg.AcceptableHeartbeatPause)
	for id, kc := range r.known {
		if !kc.LastHeartbeatAt.Before(deadline) {
			continue
		}
		delete(r.known, id)
		if r.limiter != nil {
			r.limiter.Delete(id)
		}
		r.clients.Remove(id)
		r.metrics.ClientUnreachable()
		r.metrics.KnownClients(len(r.known))
		r.logger.Info("cluster client unreachable",
			"client_id", id,
			"last_heartbeat", kc.LastHeartbeatAt)
	}
}

type nopMetrics struct{}

func (nopMetrics) ClientUp()          {}
func (nopMetrics) ClientUnreachable() {}
func (nopMetrics) KnownClients(int)   {}
func (nopMetrics) Delivery(string)    {}
func (nopMetrics) RateLimited()       {}
