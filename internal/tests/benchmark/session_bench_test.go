package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/delivery"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/session"
	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
)

func newSession(b *testing.B, tr *loopbackTransport) *session.Session {
	b.Helper()
	cfg := session.DefaultConfig()
	cfg.ClientID = "bench-client"
	cfg.InitialContacts = tr.contacts[:1]
	cfg.Transport = tr
	cfg.Logger = logger.Discard()

	s, err := session.New(cfg)
	if err != nil {
		b.Fatalf("session.New() error = %v", err)
	}
	s.Start()
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := s.Status(context.Background())
		if err == nil && st.State == domain.StateEstablished && len(st.Contacts) == len(tr.contacts) {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	b.Fatal("session did not establish")
	return nil
}

// BenchmarkSession_Dispatch measures a unicast send through the session
// loop and delivery worker.
func BenchmarkSession_Dispatch(b *testing.B) {
	s := newSession(b, newLoopback(3))
	req := delivery.Request{Target: "/user/orders", Payload: []byte("payload")}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rep, err := s.Dispatch(ctx, req)
		if err != nil || !rep.OK() {
			b.Fatalf("Dispatch() = %+v, %v", rep, err)
		}
	}
}

// BenchmarkSession_DispatchFanout measures SendToAll across contact sets
// of growing size.
func BenchmarkSession_DispatchFanout(b *testing.B) {
	for _, n := range PeerCounts {
		b.Run(fmt.Sprintf("contacts=%d", n), func(b *testing.B) {
			s := newSession(b, newLoopback(n))
			req := delivery.Request{Mode: domain.ModeFanout, Target: "/user/orders", Payload: []byte("payload")}
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				rep, err := s.Dispatch(ctx, req)
				if err != nil || rep.Delivered != n {
					b.Fatalf("Dispatch() = %+v, %v, want %d delivered", rep, err, n)
				}
			}
		})
	}
}

// BenchmarkSession_Send measures the non-blocking enqueue path.
func BenchmarkSession_Send(b *testing.B) {
	s := newSession(b, newLoopback(3))
	payload := []byte("payload")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := s.Send(ctx, "/user/orders", payload, false); err != nil {
				b.Errorf("Send() error = %v", err)
				return
			}
		}
	})
}
