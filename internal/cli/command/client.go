package command

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/urfave/cli/v2"

	clientconfig "github.com/yndnr/gatemesh-go/internal/client/config"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/session"
	"github.com/yndnr/gatemesh-go/internal/server/httpserver"
	"github.com/yndnr/gatemesh-go/internal/storage/contactcache"
	"github.com/yndnr/gatemesh-go/internal/transport"
)

// stopTimeout bounds the session stop at command exit.
const stopTimeout = 5 * time.Second

// newTransport builds the receptionist RPC client of the configuration.
func newTransport(c *cli.Context) (*transport.Client, error) {
	cfg := configFrom(c)
	tc, err := cfg.TransportConfig(loggerFrom(c))
	if err != nil {
		return nil, err
	}
	return transport.New(tc), nil
}

// startSession verifies the configuration and starts a client session.
// The returned stop function stops the session, the metrics endpoint and
// closes the contact cache.
func startSession(c *cli.Context) (*session.Session, func(), error) {
	cfg := configFrom(c)
	if err := clientconfig.Verify(cfg); err != nil {
		return nil, nil, err
	}
	tr, err := newTransport(c)
	if err != nil {
		return nil, nil, err
	}

	log := loggerFrom(c)
	reg, sm := sessionMetrics(c)
	deps := clientconfig.Collaborators{Transport: tr, Logger: log}
	if sm != nil {
		deps.Metrics = sm
	}
	var cache *contactcache.Cache
	if dir := cfg.Client.ContactCacheDir; dir != "" {
		cache, err = contactcache.Open(contactcache.Config{Dir: dir, Logger: log})
		if err != nil {
			return nil, nil, err
		}
		deps.Cache = cache
	}

	var metricsSrv *httpserver.Server
	release := func(ctx context.Context) {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
		if cache != nil {
			_ = cache.Close()
		}
	}
	fail := func(err error) (*session.Session, func(), error) {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		release(ctx)
		return nil, nil, err
	}

	if addr := c.String("metrics-addr"); addr != "" && reg != nil {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return fail(fmt.Errorf("listen on %s: %w", addr, err))
		}
		metricsSrv = httpserver.New(l.Addr().String(), reg.Handler())
		go func() {
			if err := metricsSrv.Serve(l); err != nil {
				log.Warn("metrics endpoint stopped", "error", err)
			}
		}()
		fmt.Fprintf(stderr(c), "metrics: http://%s/metrics\n", l.Addr())
	}

	sc, err := cfg.SessionConfig(deps)
	if err != nil {
		return fail(err)
	}
	s, err := session.New(sc)
	if err != nil {
		return fail(err)
	}
	s.Start()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			log.Debug("session stop", "error", err)
		}
		release(ctx)
	}
	return s, stop, nil
}

// waitEstablished polls the session until it is Established.
func waitEstablished(ctx context.Context, s *session.Session) (session.Status, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		st, err := s.Status(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return st, fmt.Errorf("no receptionist answered: %w", domain.ErrClusterUnavailable)
			}
			return st, err
		}
		if st.State == domain.StateEstablished {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, fmt.Errorf("no receptionist answered: %w", domain.ErrClusterUnavailable)
		case <-s.Done():
			return st, s.Err()
		case <-ticker.C:
		}
	}
}

// commandContext bounds a command by --timeout.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("timeout"))
}
