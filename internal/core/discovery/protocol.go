// Package discovery exchanges GetContacts/Contacts messages with
// receptionists to find a live contact and keep the contact set fresh.
//
// An establishing round fans a request out to every candidate in parallel;
// the first valid response wins the round and later responses of the same
// round are discarded. Every round carries a number, and responses from any
// round but the current one are stale, so a late answer from an abandoned
// round can never change session state.
package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// Requester asks one receptionist for its contact set.
type Requester interface {
	GetContacts(ctx context.Context, addr domain.EndpointID, clientID domain.ClientID) ([]domain.EndpointID, error)
}

// Kind distinguishes establishing rounds from refreshes.
type Kind int

const (
	KindEstablish Kind = iota
	KindRefresh
)

// Response is the outcome of one GetContacts request.
type Response struct {
	Kind     Kind
	Round    uint64
	Contact  domain.EndpointID
	Contacts []domain.EndpointID
	Err      error
}

// Outcome classifies a response for the owning session.
type Outcome int

const (
	// OutcomeStale means the response belongs to another round.
	OutcomeStale Outcome = iota
	// OutcomeEstablished means this is the first valid response of the
	// current establishing round.
	OutcomeEstablished
	// OutcomeDuplicate means the round was already won.
	OutcomeDuplicate
	// OutcomeFailed means the request failed and others are still pending.
	OutcomeFailed
	// OutcomeRoundFailed means the request failed and it was the last one
	// pending in a round that nobody won.
	OutcomeRoundFailed
	// OutcomeRefreshed means a refresh response arrived for the current round.
	OutcomeRefreshed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeEstablished:
		return "established"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	case OutcomeRoundFailed:
		return "round_failed"
	case OutcomeRefreshed:
		return "refreshed"
	default:
		return "stale"
	}
}

// Config configures a Protocol.
type Config struct {
	ClientID  domain.ClientID
	Requester Requester
	// Timeout bounds each request.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Protocol tracks discovery rounds. It is owned by one session loop and is
// not safe for concurrent use; only the issued requests run concurrently.
type Protocol struct {
	cfg    Config
	logger *slog.Logger

	round   uint64
	open    bool
	won     bool
	pending int
}

// New creates a Protocol.
func New(cfg Config) *Protocol {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Protocol{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Round returns the current round number.
func (p *Protocol) Round() uint64 {
	return p.round
}

// Open reports whether an establishing round is waiting for a winner.
func (p *Protocol) Open() bool {
	return p.open && !p.won
}

// Begin starts a new establishing round, abandoning the previous one, and
// sends GetContacts to every target in parallel. It returns the round number.
func (p *Protocol) Begin(ctx context.Context, targets []domain.EndpointID, report func(Response)) uint64 {
	p.round++
	p.open = true
	p.won = false
	p.pending = len(targets)

	p.logger.Debug("discovery round started",
		"round", p.round,
		"targets", len(targets))

	for _, addr := range targets {
		p.request(ctx, KindEstablish, addr, report)
	}
	return p.round
}

// Refresh sends GetContacts to a single contact without opening a round.
func (p *Protocol) Refresh(ctx context.Context, addr domain.EndpointID, report func(Response)) {
	p.request(ctx, KindRefresh, addr, report)
}

// Close abandons the current round. Responses still in flight become stale.
func (p *Protocol) Close() {
	p.round++
	p.open = false
	p.won = false
	p.pending = 0
}

// Accept classifies a response against the current round.
func (p *Protocol) Accept(resp Response) Outcome {
	if resp.Round != p.round {
		return OutcomeStale
	}

	if resp.Kind == KindRefresh {
		if p.Open() {
			return OutcomeStale
		}
		if resp.Err != nil {
			return OutcomeFailed
		}
		return OutcomeRefreshed
	}

	if !p.open {
		return OutcomeStale
	}
	if p.pending > 0 {
		p.pending--
	}

	if p.won {
		return OutcomeDuplicate
	}

	if resp.Err != nil {
		if p.pending == 0 {
			return OutcomeRoundFailed
		}
		return OutcomeFailed
	}

	p.won = true
	return OutcomeEstablished
}

func (p *Protocol) request(ctx context.Context, kind Kind, addr domain.EndpointID, report func(Response)) {
	round := p.round
	go func() {
		reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()

		contacts, err := p.cfg.Requester.GetContacts(reqCtx, addr, p.cfg.ClientID)
		if err != nil {
			err = domain.ErrDiscoveryTimeout.WithCause(err)
		}
		report(Response{
			Kind:     kind,
			Round:    round,
			Contact:  addr,
			Contacts: contacts,
			Err:      err,
		})
	}()
}
