package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/contact"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

type fakeProber struct {
	mu    sync.Mutex
	err   error
	delay time.Duration
	calls []domain.EndpointID
}

func (p *fakeProber) Heartbeat(ctx context.Context, addr domain.EndpointID, _ domain.ClientID) error {
	p.mu.Lock()
	p.calls = append(p.calls, addr)
	err, delay := p.err, p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func newTestMonitor(prober Prober) (*Monitor, *contact.Registry) {
	reg := contact.NewRegistry(contact.Config{FailureCeiling: contact.DefaultFailureCeiling})
	reg.Seed([]domain.EndpointID{"A", "B"})
	m := New(Config{
		Interval:        2 * time.Second,
		AcceptablePause: 6 * time.Second,
		ProbeTimeout:    50 * time.Millisecond,
		ClientID:        "gmcl_test",
		Prober:          prober,
		Registry:        reg,
	})
	return m, reg
}

func TestMonitor_Threshold(t *testing.T) {
	tests := []struct {
		interval time.Duration
		pause    time.Duration
		want     uint
	}{
		{2 * time.Second, 13 * time.Second, 6},
		{time.Second, time.Second, 1},
		{2 * time.Second, time.Second, 0},
	}

	for _, tt := range tests {
		m := New(Config{Interval: tt.interval, AcceptablePause: tt.pause})
		if got := m.Threshold(); got != tt.want {
			t.Errorf("Threshold(%v, %v) = %d, want %d", tt.interval, tt.pause, got, tt.want)
		}
	}
}

func TestMonitor_RecordCountsToDead(t *testing.T) {
	m, reg := newTestMonitor(&fakeProber{})
	m.Watch("A", 1)

	miss := Result{Contact: "A", Generation: 1, Err: errors.New("timeout")}

	// Threshold is 3: three misses are tolerated, the fourth is fatal.
	for i := 0; i < 3; i++ {
		if v := m.Record(miss); v != VerdictMissed {
			t.Fatalf("Record() miss %d = %v, want missed", i+1, v)
		}
	}
	if v := m.Record(miss); v != VerdictDead {
		t.Fatalf("Record() = %v, want dead", v)
	}

	cp, _ := reg.Get("A")
	if cp.ConsecutiveFailures != 4 {
		t.Errorf("ConsecutiveFailures = %d, want 4", cp.ConsecutiveFailures)
	}
}

func TestMonitor_AckResetsFailures(t *testing.T) {
	m, reg := newTestMonitor(&fakeProber{})
	m.Watch("A", 1)

	m.Record(Result{Contact: "A", Generation: 1, Err: errors.New("timeout")})
	m.Record(Result{Contact: "A", Generation: 1, Err: errors.New("timeout")})
	if v := m.Record(Result{Contact: "A", Generation: 1}); v != VerdictAlive {
		t.Fatalf("Record(ack) = %v, want alive", v)
	}

	cp, _ := reg.Get("A")
	if cp.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", cp.ConsecutiveFailures)
	}
}

func TestMonitor_StaleResults(t *testing.T) {
	m, reg := newTestMonitor(&fakeProber{})
	m.Watch("A", 2)

	tests := []struct {
		name string
		res  Result
	}{
		{"old generation", Result{Contact: "A", Generation: 1, Err: errors.New("x")}},
		{"other contact", Result{Contact: "B", Generation: 2, Err: errors.New("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := m.Record(tt.res); v != VerdictStale {
				t.Errorf("Record() = %v, want stale", v)
			}
		})
	}

	m.Unwatch()
	if v := m.Record(Result{Contact: "A", Generation: 2}); v != VerdictStale {
		t.Errorf("Record() after Unwatch = %v, want stale", v)
	}

	cp, _ := reg.Get("A")
	if cp.ConsecutiveFailures != 0 {
		t.Errorf("stale results changed failures to %d", cp.ConsecutiveFailures)
	}
}

func TestMonitor_ProbeUsesPerProbeDeadline(t *testing.T) {
	prober := &fakeProber{delay: time.Second}
	m, _ := newTestMonitor(prober)
	m.Watch("A", 7)

	results := make(chan Result, 1)
	m.Probe(context.Background(), func(r Result) { results <- r })

	select {
	case res := <-results:
		if res.Err == nil {
			t.Fatal("expected probe to time out")
		}
		if res.Contact != "A" || res.Generation != 7 {
			t.Errorf("Result = %+v, want contact A generation 7", res)
		}
		if res.RTT >= time.Second {
			t.Errorf("probe ran %v, want it bounded by ProbeTimeout", res.RTT)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("probe result not reported")
	}
}

func TestMonitor_ProbeWithoutWatchIsNoop(t *testing.T) {
	prober := &fakeProber{}
	m, _ := newTestMonitor(prober)

	m.Probe(context.Background(), func(Result) { t.Error("report called without a watched contact") })
	time.Sleep(20 * time.Millisecond)

	prober.mu.Lock()
	defer prober.mu.Unlock()
	if len(prober.calls) != 0 {
		t.Errorf("Heartbeat called %d times, want 0", len(prober.calls))
	}
}
