package clusterserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"

	v1 "github.com/yndnr/gatemesh-go/api/receptionist/v1"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/receptionist"
	"github.com/yndnr/gatemesh-go/internal/infra/tlsroots"
	"github.com/yndnr/gatemesh-go/internal/server/httpserver"
	"github.com/yndnr/gatemesh-go/internal/telemetry/metric"
	"github.com/yndnr/gatemesh-go/internal/transport"
)

// DefaultForwardTimeout bounds one envelope relay to a peer receptionist.
const DefaultForwardTimeout = 5 * time.Second

// leaveTimeout bounds the graceful gossip leave on shutdown.
const leaveTimeout = 5 * time.Second

// Config configures a receptionist node.
type Config struct {
	NodeName string

	// ListenAddr is the RPC listen address. Port 0 picks a free port.
	ListenAddr string
	// AdvertiseAddr is the RPC address handed to clients. Defaults to the
	// listener address.
	AdvertiseAddr string

	GossipBindAddr      string
	GossipBindPort      int
	GossipAdvertiseAddr string
	GossipAdvertisePort int
	Seeds               []string
	PushPullInterval    time.Duration

	AcceptableHeartbeatPause time.Duration
	FailureDetectionInterval time.Duration
	NumberOfContacts         int
	ClientRateLimit          float64
	ClientRateBurst          int
	ForwardTimeout           time.Duration

	// TLSCertFile and TLSKeyFile enable HTTPS on the RPC endpoint. The pair
	// is reloaded when the files change.
	TLSCertFile string
	TLSKeyFile  string
	// TLSCAFile is trusted, besides the system roots, when forwarding to
	// peers over HTTPS.
	TLSCAFile string

	// Services are registered with a LogService once the node starts.
	Services []domain.ServicePath

	// Metrics is optional.
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Server is a receptionist node: gossip membership, the client registry
// and the RPC endpoint in one process.
type Server struct {
	cfg    Config
	logger *slog.Logger

	listener  net.Listener
	discovery *Discovery
	registry  *receptionist.Registry
	http      *httpserver.Server
	metrics   *metric.ReceptionistMetrics
	certs     *tlsroots.CertReloader

	started      atomic.Bool
	serveErr     chan error
	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a receptionist node and joins the gossip cluster. Call
// Start to begin serving.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ForwardTimeout == 0 {
		cfg.ForwardTimeout = DefaultForwardTimeout
	}
	if cfg.NodeName == "" {
		return nil, domain.ErrInvalidConfiguration.WithDetails("node name is required")
	}
	for _, p := range cfg.Services {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger.With("node", cfg.NodeName),
		serveErr: make(chan error, 1),
	}

	pool, err := tlsroots.LoadPool(cfg.TLSCAFile)
	if err != nil {
		return nil, domain.ErrInvalidConfiguration.WithCause(err)
	}
	var httpOpts []httpserver.Option
	var forwardTLS *tls.Config
	scheme := "http://"
	if cfg.TLSCertFile != "" {
		s.certs, err = tlsroots.NewCertReloader(cfg.TLSCertFile, cfg.TLSKeyFile, tlsroots.WithLogger(s.logger))
		if err != nil {
			return nil, domain.ErrInvalidConfiguration.WithCause(err)
		}
		httpOpts = append(httpOpts, httpserver.WithTLSConfig(s.certs.ServerTLSConfig()))
		scheme = "https://"
	}
	if pool != nil || s.certs != nil {
		forwardTLS = pool.ClientTLSConfig()
	}

	l, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	s.listener = l

	advertise := cfg.AdvertiseAddr
	if advertise == "" {
		advertise = scheme + l.Addr().String()
	}

	s.discovery, err = NewDiscovery(DiscoveryConfig{
		NodeName:         cfg.NodeName,
		BindAddr:         cfg.GossipBindAddr,
		BindPort:         cfg.GossipBindPort,
		AdvertiseAddr:    cfg.GossipAdvertiseAddr,
		AdvertisePort:    cfg.GossipAdvertisePort,
		RPCAddr:          domain.NormalizeEndpoint(advertise),
		Seeds:            cfg.Seeds,
		PushPullInterval: cfg.PushPullInterval,
		Logger:           s.logger,
	})
	if err != nil {
		_ = l.Close()
		return nil, err
	}

	var rm receptionist.Metrics
	if cfg.Metrics != nil {
		s.metrics = metric.NewReceptionistMetrics(cfg.Metrics)
		rm = s.metrics
	}

	s.registry, err = receptionist.New(receptionist.Config{
		Directory: s.discovery,
		Forwarder: transport.New(transport.Config{
			Timeout:      cfg.ForwardTimeout,
			TLSConfig:    forwardTLS,
			Interceptors: []connect.Interceptor{NewLoggingInterceptor(s.logger)},
			Logger:       s.logger,
		}),
		AcceptableHeartbeatPause: cfg.AcceptableHeartbeatPause,
		FailureDetectionInterval: cfg.FailureDetectionInterval,
		NumberOfContacts:         cfg.NumberOfContacts,
		ClientRateLimit:          cfg.ClientRateLimit,
		ClientRateBurst:          cfg.ClientRateBurst,
		Metrics:                  rm,
		Logger:                   s.logger,
	})
	if err != nil {
		_ = s.discovery.Shutdown()
		_ = l.Close()
		return nil, err
	}

	if s.metrics != nil {
		s.discovery.OnJoin(func(string, domain.EndpointID) { s.metrics.PeerCount(len(s.discovery.Peers())) })
		s.discovery.OnLeave(func(string) { s.metrics.PeerCount(len(s.discovery.Peers())) })
		s.metrics.PeerCount(len(s.discovery.Peers()))
	}

	path, handler := v1.NewReceptionistServiceHandler(
		NewHandler(s.registry, cfg.NodeName, s.logger),
		connect.WithInterceptors(DefaultInterceptors(s.logger)...),
	)
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Node:    cfg.NodeName,
		Mounts:  []httpserver.Mount{{Name: "receptionist", Path: path, Handler: handler}},
		Metrics: cfg.Metrics,
		Ready:   s.ready,
		Logger:  s.logger,
	})
	s.http = httpserver.New(l.Addr().String(), router, httpOpts...)

	return s, nil
}

// Start runs the registry, begins serving RPCs and registers the
// configured services.
func (s *Server) Start(ctx context.Context) error {
	s.started.Store(true)
	if s.certs != nil {
		s.certs.StartAsync()
	}
	s.registry.Start()
	go func() {
		s.serveErr <- s.http.Serve(s.listener)
	}()

	for _, path := range s.cfg.Services {
		if _, err := s.registry.Register(ctx, path, NewLogService(path, s.logger)); err != nil {
			return fmt.Errorf("register %s: %w", path, err)
		}
	}

	s.logger.Info("receptionist started",
		"rpc_addr", s.discovery.Self().Address,
		"gossip_addr", s.discovery.GossipAddr(),
		"services", len(s.cfg.Services))
	return nil
}

// Register adds a local service.
func (s *Server) Register(ctx context.Context, path domain.ServicePath, svc domain.Service) (domain.RegistrationID, error) {
	return s.registry.Register(ctx, path, svc)
}

// Unregister removes a local service.
func (s *Server) Unregister(ctx context.Context, path domain.ServicePath) (bool, error) {
	return s.registry.Unregister(ctx, path)
}

// Registry returns the node's registry.
func (s *Server) Registry() *receptionist.Registry { return s.registry }

// Discovery returns the node's gossip membership.
func (s *Server) Discovery() *Discovery { return s.discovery }

// Addr returns the RPC address clients dial.
func (s *Server) Addr() domain.EndpointID { return s.discovery.Self().Address }

// Err yields the result of the RPC serve loop once it exits.
func (s *Server) Err() <-chan error { return s.serveErr }

// Shutdown leaves the gossip cluster, stops the registry and drains the
// RPC server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		var errs []error
		if err := s.discovery.Leave(leaveTimeout); err != nil {
			s.logger.Warn("failed to leave cluster", "error", err)
		}
		// Stopping the registry first ends open client event streams,
		// which would otherwise hold the HTTP drain open.
		if s.started.Load() {
			if err := s.registry.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop registry: %w", err))
			}
		} else {
			_ = s.listener.Close()
		}
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown rpc server: %w", err))
		}
		if err := s.discovery.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown discovery: %w", err))
		}
		if s.certs != nil {
			s.certs.Stop()
		}
		s.shutdownErr = errors.Join(errs...)
		s.logger.Info("receptionist stopped")
	})
	return s.shutdownErr
}

func (s *Server) ready() error {
	select {
	case <-s.registry.Done():
		return domain.ErrReceptionistStopped
	default:
		return nil
	}
}
