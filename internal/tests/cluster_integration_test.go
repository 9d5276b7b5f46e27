package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/delivery"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/session"
	"github.com/yndnr/gatemesh-go/internal/server/clusterserver"
	"github.com/yndnr/gatemesh-go/internal/storage/contactcache"
	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
	"github.com/yndnr/gatemesh-go/internal/transport"
)

type inbox struct {
	mu   sync.Mutex
	envs []domain.Envelope
}

func (b *inbox) Deliver(ctx context.Context, env domain.Envelope) error {
	b.mu.Lock()
	b.envs = append(b.envs, env)
	b.mu.Unlock()
	return nil
}

func (b *inbox) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.envs)
}

func startNode(t *testing.T, name string, seeds ...string) *clusterserver.Server {
	t.Helper()
	s, err := clusterserver.New(clusterserver.Config{
		NodeName:                 name,
		ListenAddr:               "127.0.0.1:0",
		GossipBindAddr:           "127.0.0.1",
		Seeds:                    seeds,
		PushPullInterval:         200 * time.Millisecond,
		AcceptableHeartbeatPause: 3 * time.Second,
		Logger:                   logger.Discard(),
	})
	if err != nil {
		t.Fatalf("clusterserver.New(%s) error = %v", name, err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start(%s) error = %v", name, err)
	}
	t.Cleanup(func() { stopNode(s) })
	return s
}

func stopNode(s *clusterserver.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Shutdown(ctx)
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newSession(t *testing.T, cache session.ContactCache, contacts ...domain.EndpointID) *session.Session {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.ClientID = "it-client"
	cfg.InitialContacts = contacts
	cfg.HeartbeatInterval = 200 * time.Millisecond
	cfg.AcceptableHeartbeatPause = time.Second
	cfg.EstablishingGetContactsInterval = 200 * time.Millisecond
	cfg.RefreshContactsInterval = time.Second
	cfg.ReconnectBackoffMin = 100 * time.Millisecond
	cfg.ReconnectBackoffMax = time.Second
	cfg.Transport = transport.New(transport.Config{Timeout: time.Second, Logger: logger.Discard()})
	cfg.Cache = cache
	cfg.Logger = logger.Discard()

	s, err := session.New(cfg)
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func status(t *testing.T, s *session.Session) session.Status {
	t.Helper()
	st, err := s.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	return st
}

// TestCluster_ThreeNode_Integration runs three receptionists, connects a
// client through the first one and delivers to services on the others.
func TestCluster_ThreeNode_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	n1 := startNode(t, "node-1")
	n2 := startNode(t, "node-2", n1.Discovery().GossipAddr())
	n3 := startNode(t, "node-3", n1.Discovery().GossipAddr())

	orders2, orders3, audit3 := &inbox{}, &inbox{}, &inbox{}
	ctx := context.Background()
	for _, r := range []struct {
		node *clusterserver.Server
		path domain.ServicePath
		svc  domain.Service
	}{
		{n2, "/user/orders", orders2},
		{n3, "/user/orders", orders3},
		{n3, "/user/audit", audit3},
	} {
		if _, err := r.node.Register(ctx, r.path, r.svc); err != nil {
			t.Fatalf("Register(%s) error = %v", r.path, err)
		}
	}

	waitFor(t, 10*time.Second, "services to gossip to node-1", func() bool {
		return len(n1.Registry().Resolve("/user/orders")) == 2 &&
			len(n1.Registry().Resolve("/user/audit")) == 1
	})

	cache, err := contactcache.Open(contactcache.Config{InMemory: true, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("contactcache.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	s := newSession(t, cache, n1.Addr())
	waitFor(t, 10*time.Second, "session to learn every receptionist", func() bool {
		st := status(t, s)
		return st.State == domain.StateEstablished && len(st.Contacts) == 3
	})

	t.Run("send", func(t *testing.T) {
		before := orders2.count() + orders3.count()
		if err := s.Send(ctx, "/user/orders", []byte("one"), false); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		waitFor(t, 5*time.Second, "one orders delivery", func() bool {
			return orders2.count()+orders3.count() == before+1
		})
	})

	t.Run("send to all", func(t *testing.T) {
		b2, b3 := orders2.count(), orders3.count()
		rep, err := s.Dispatch(ctx, delivery.Request{Mode: domain.ModeFanout, Target: "/user/orders", Payload: []byte("all")})
		if err != nil {
			t.Fatalf("Dispatch(fanout) error = %v", err)
		}
		if rep.Delivered != 2 || len(rep.Failures) != 0 {
			t.Errorf("Dispatch(fanout) = %+v, want 2 delivered", rep)
		}
		if orders2.count() != b2+1 || orders3.count() != b3+1 {
			t.Errorf("fanout counts = %d/%d, want %d/%d", orders2.count(), orders3.count(), b2+1, b3+1)
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		rep, err := s.Dispatch(ctx, delivery.Request{Target: "/user/none", Payload: []byte("x")})
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if rep.Delivered != 0 || len(rep.Failures) == 0 {
			t.Errorf("Dispatch(unknown) = %+v, want a failure", rep)
		}
	})

	t.Run("contacts cached", func(t *testing.T) {
		waitFor(t, 5*time.Second, "contacts to reach the cache", func() bool {
			got, err := cache.Load(ctx)
			return err == nil && len(got) == 3
		})
	})

	t.Run("cluster clients", func(t *testing.T) {
		known, err := n1.Registry().KnownClients(ctx)
		if err != nil {
			t.Fatalf("KnownClients() error = %v", err)
		}
		found := false
		for _, k := range known {
			if k.Identity == "it-client" {
				found = true
			}
		}
		if !found {
			t.Errorf("KnownClients() = %+v, want it-client", known)
		}
	})

	t.Run("failover", func(t *testing.T) {
		active := status(t, s).Active
		var victim *clusterserver.Server
		for _, n := range []*clusterserver.Server{n1, n2, n3} {
			if n.Addr() == active {
				victim = n
			}
		}
		if victim == nil {
			t.Fatalf("active contact %s is not a cluster node", active)
		}
		stopNode(victim)

		waitFor(t, 15*time.Second, "session to move off the stopped node", func() bool {
			st := status(t, s)
			return st.State == domain.StateEstablished && st.Active != active
		})

		// Registrations of the stopped node linger until gossip drops them.
		waitFor(t, 15*time.Second, "delivery through the new contact", func() bool {
			rep, err := s.Dispatch(ctx, delivery.Request{Target: "/user/orders", Payload: []byte("after failover")})
			return err == nil && rep.OK()
		})
	})
}
