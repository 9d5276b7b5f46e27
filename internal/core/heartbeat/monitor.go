// Package heartbeat probes a client session's active contact and decides
// when it must be presumed dead.
//
// It is the only liveness signal a session uses. A single dropped probe
// never fails a contact: each probe has its own deadline, and the contact
// is declared dead only once its consecutive misses exceed
// acceptable-heartbeat-pause / heartbeat-interval.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/contact"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// Prober sends one heartbeat to a contact and waits for the acknowledgement.
type Prober interface {
	Heartbeat(ctx context.Context, addr domain.EndpointID, clientID domain.ClientID) error
}

// Verdict is the outcome of recording a probe result.
type Verdict int

const (
	// VerdictStale means the result belongs to a contact or generation no
	// longer being watched and was ignored.
	VerdictStale Verdict = iota
	// VerdictAlive means the contact acknowledged.
	VerdictAlive
	// VerdictMissed means the probe failed but the pause is not yet exceeded.
	VerdictMissed
	// VerdictDead means the acceptable pause is exceeded.
	VerdictDead
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictAlive:
		return "alive"
	case VerdictMissed:
		return "missed"
	case VerdictDead:
		return "dead"
	default:
		return "stale"
	}
}

// Result is the outcome of one probe.
type Result struct {
	Contact    domain.EndpointID
	Generation uint64
	RTT        time.Duration
	Err        error
}

// Config configures a Monitor.
type Config struct {
	Interval        time.Duration
	AcceptablePause time.Duration
	// ProbeTimeout bounds a single probe. Defaults to Interval.
	ProbeTimeout time.Duration

	ClientID domain.ClientID
	Prober   Prober
	Registry *contact.Registry
	Logger   *slog.Logger
}

// Monitor tracks heartbeats to the watched contact.
//
// Probe may be called from the owning loop only; results are reported
// asynchronously and must be fed back through Record on the same loop.
type Monitor struct {
	cfg       Config
	threshold uint
	logger    *slog.Logger

	watching   domain.EndpointID
	generation uint64
}

// New creates a Monitor.
func New(cfg Config) *Monitor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = cfg.Interval
	}

	var threshold uint
	if cfg.Interval > 0 {
		threshold = uint(cfg.AcceptablePause / cfg.Interval)
	}

	return &Monitor{
		cfg:       cfg,
		threshold: threshold,
		logger:    cfg.Logger,
	}
}

// Threshold returns the number of consecutive misses tolerated before the
// contact is declared dead.
func (m *Monitor) Threshold() uint {
	return m.threshold
}

// Interval returns the probe interval.
func (m *Monitor) Interval() time.Duration {
	return m.cfg.Interval
}

// Watch starts tracking addr under the given generation. Results of probes
// issued for any other contact or generation become stale.
func (m *Monitor) Watch(addr domain.EndpointID, generation uint64) {
	m.watching = addr
	m.generation = generation
	m.cfg.Registry.MarkAlive(addr)
}

// Unwatch stops tracking. Outstanding results become stale.
func (m *Monitor) Unwatch() {
	m.watching = ""
}

// Watching returns the watched contact.
func (m *Monitor) Watching() (domain.EndpointID, bool) {
	return m.watching, m.watching != ""
}

// Probe sends a heartbeat to the watched contact without blocking. The
// result is passed to report from another goroutine.
func (m *Monitor) Probe(ctx context.Context, report func(Result)) {
	if m.watching == "" {
		return
	}
	addr := m.watching
	gen := m.generation

	go func() {
		probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		defer cancel()

		start := time.Now()
		err := m.cfg.Prober.Heartbeat(probeCtx, addr, m.cfg.ClientID)
		report(Result{
			Contact:    addr,
			Generation: gen,
			RTT:        time.Since(start),
			Err:        err,
		})
	}()
}

// Record applies a probe result to the registry and returns the verdict.
func (m *Monitor) Record(res Result) Verdict {
	if res.Contact != m.watching || res.Generation != m.generation || m.watching == "" {
		return VerdictStale
	}

	if res.Err == nil {
		m.cfg.Registry.MarkAlive(res.Contact)
		return VerdictAlive
	}

	failures, ok := m.cfg.Registry.MarkFailed(res.Contact)
	if !ok {
		return VerdictStale
	}

	m.logger.Debug("heartbeat missed",
		"contact", res.Contact,
		"failures", failures,
		"threshold", m.threshold,
		"error", res.Err)

	if failures > m.threshold {
		return VerdictDead
	}
	return VerdictMissed
}
