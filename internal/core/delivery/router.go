// Package delivery dispatches client messages through receptionists.
//
// A Request is a tagged variant: ModeUnicast goes to the active contact
// only, ModeFanout goes to every distinct registration of the target
// reachable through any live contact. Application payloads are delivered
// at most once per call; nothing here retries.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// Transport is the receptionist RPC surface the router needs.
type Transport interface {
	Deliver(ctx context.Context, addr domain.EndpointID, env domain.Envelope) error
	Resolve(ctx context.Context, addr domain.EndpointID, path domain.ServicePath) ([]domain.Registration, error)
}

// Request is one Send or SendToAll call.
type Request struct {
	Mode          domain.DeliveryMode
	Target        domain.ServicePath
	Payload       []byte
	LocalAffinity bool
}

// FromPending converts a buffered message into a request.
func FromPending(msg domain.PendingMessage) Request {
	return Request{
		Mode:          msg.Mode,
		Target:        msg.Target,
		Payload:       msg.Payload,
		LocalAffinity: msg.LocalAffinity,
	}
}

// Route is the session's view of its contacts at dispatch time.
type Route struct {
	Active domain.EndpointID
	// Live lists every contact eligible for fan-out, in rotation order.
	Live []domain.EndpointID
}

// Failure records one contact that could not take part in a delivery.
type Failure struct {
	Contact domain.EndpointID
	Err     error
}

// Report summarizes a dispatch.
type Report struct {
	Mode      domain.DeliveryMode
	Target    domain.ServicePath
	Delivered int
	Failures  []Failure
}

// OK reports whether at least one copy was delivered and nothing failed.
func (r Report) OK() bool {
	return r.Delivered > 0 && len(r.Failures) == 0
}

// Config configures a Router.
type Config struct {
	ClientID  domain.ClientID
	Transport Transport
	// LocalAffinityFallback lets a local-affinity send fall back to a remote
	// registration when the active contact has no local instance.
	LocalAffinityFallback bool
	Logger                *slog.Logger
}

// Router dispatches requests. It holds no session state and is safe for
// concurrent use.
type Router struct {
	cfg    Config
	logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{cfg: cfg, logger: cfg.Logger}
}

// Dispatch delivers req along route.
func (r *Router) Dispatch(ctx context.Context, req Request, route Route) Report {
	switch req.Mode {
	case domain.ModeFanout:
		return r.sendToAll(ctx, req, route)
	default:
		return r.send(ctx, req, route)
	}
}

func (r *Router) send(ctx context.Context, req Request, route Route) Report {
	report := Report{Mode: domain.ModeUnicast, Target: req.Target}

	if route.Active == "" {
		report.Failures = append(report.Failures, Failure{Err: domain.ErrClusterUnavailable})
		return report
	}

	env := r.envelope(req)
	env.LocalAffinity = req.LocalAffinity
	if err := r.cfg.Transport.Deliver(ctx, route.Active, env); err != nil {
		r.logFailure(route.Active, req, err)
		report.Failures = append(report.Failures, Failure{Contact: route.Active, Err: err})
		return report
	}

	report.Delivered = 1
	return report
}

// sendToAll resolves the target through every live contact in parallel,
// deduplicates registrations by identity and delivers one copy to each.
// A registration is delivered through its owner when the owner is live,
// otherwise through the first contact in rotation order that reported it.
func (r *Router) sendToAll(ctx context.Context, req Request, route Route) Report {
	report := Report{Mode: domain.ModeFanout, Target: req.Target}

	contacts := route.Live
	if len(contacts) == 0 && route.Active != "" {
		contacts = []domain.EndpointID{route.Active}
	}
	if len(contacts) == 0 {
		report.Failures = append(report.Failures, Failure{Err: domain.ErrClusterUnavailable})
		return report
	}

	resolved := make([][]domain.Registration, len(contacts))
	errs := make([]error, len(contacts))

	var wg sync.WaitGroup
	for i, addr := range contacts {
		wg.Add(1)
		go func(i int, addr domain.EndpointID) {
			defer wg.Done()
			regs, err := r.cfg.Transport.Resolve(ctx, addr, req.Target)
			if err == nil && len(regs) == 0 {
				err = domain.ErrUnknownTarget.WithDetails(string(req.Target))
			}
			resolved[i], errs[i] = regs, err
		}(i, addr)
	}
	wg.Wait()

	live := make(map[domain.EndpointID]bool, len(contacts))
	for i, addr := range contacts {
		if errs[i] == nil {
			live[addr] = true
		}
	}

	type target struct {
		reg     domain.Registration
		contact domain.EndpointID
	}
	var targets []target
	index := make(map[domain.RegistrationID]int)

	for i, addr := range contacts {
		if errs[i] != nil {
			r.logFailure(addr, req, errs[i])
			report.Failures = append(report.Failures, Failure{Contact: addr, Err: errs[i]})
			continue
		}
		for _, reg := range resolved[i] {
			if j, seen := index[reg.ID]; seen {
				if reg.Owner == addr {
					targets[j].contact = addr
				}
				continue
			}
			via := addr
			if live[reg.Owner] {
				via = reg.Owner
			}
			index[reg.ID] = len(targets)
			targets = append(targets, target{reg: reg, contact: via})
		}
	}

	var mu sync.Mutex
	for _, tg := range targets {
		wg.Add(1)
		go func(tg target) {
			defer wg.Done()
			env := r.envelope(req)
			env.RegistrationID = tg.reg.ID
			err := r.cfg.Transport.Deliver(ctx, tg.contact, env)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logFailure(tg.contact, req, err)
				report.Failures = append(report.Failures, Failure{Contact: tg.contact, Err: err})
				return
			}
			report.Delivered++
		}(tg)
	}
	wg.Wait()

	return report
}

func (r *Router) envelope(req Request) domain.Envelope {
	return domain.Envelope{
		ID:          domain.NewEnvelopeID(),
		ClientID:    r.cfg.ClientID,
		Target:      req.Target,
		Payload:     req.Payload,
		AllowRemote: !req.LocalAffinity || r.cfg.LocalAffinityFallback,
	}
}

func (r *Router) logFailure(addr domain.EndpointID, req Request, err error) {
	level := slog.LevelWarn
	if errors.Is(err, domain.ErrUnknownTarget) {
		level = slog.LevelInfo
	}
	r.logger.Log(context.Background(), level, "delivery failed",
		"contact", addr,
		"path", req.Target,
		"mode", req.Mode.String(),
		"error", err)
}
