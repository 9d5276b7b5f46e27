// Package session implements the client side of the receptionist protocol.
//
// A Session is a single-writer actor. Every state mutation happens on its
// loop goroutine; callers, timers and completed network requests reach it
// through the mailbox only. Discovery rounds and heartbeat watches carry a
// generation, so a response that arrives after a state change is dropped
// instead of resurrecting old state.
//
//	Establishing --first discovery response--> Established
//	Established --heartbeat pause exceeded--> Reestablishing
//	Reestablishing --first discovery response--> Established
//	any --Stop or reconnect timeout--> Stopped
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/contact"
	"github.com/yndnr/gatemesh-go/internal/core/delivery"
	"github.com/yndnr/gatemesh-go/internal/core/discovery"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/event"
	"github.com/yndnr/gatemesh-go/internal/core/heartbeat"
)

// Status is a point-in-time view of a session.
type Status struct {
	ClientID domain.ClientID
	State    domain.SessionState
	Active   domain.EndpointID
	Contacts []domain.ContactPoint
	Buffered int
	// Exhausted reports that every contact exceeded the failure ceiling;
	// the cluster is unavailable until the next backoff retry.
	Exhausted bool
	Round     uint64
}

type pendingEntry struct {
	msg  domain.PendingMessage
	done chan delivery.Report
}

type sendCmd struct {
	msg  domain.PendingMessage
	done chan delivery.Report
}

type statusCmd struct {
	reply chan Status
}

// Session is a client's connection to the receptionist cluster.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	metrics Metrics

	registry *contact.Registry
	monitor  *heartbeat.Monitor
	protocol *discovery.Protocol
	contacts *event.Publisher[domain.EndpointID]
	worker   *worker

	ctx    context.Context
	cancel context.CancelFunc

	mailbox  chan any
	stopping chan struct{}
	loopDone chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once

	// Owned by the loop.
	state      domain.SessionState
	generation uint64
	pending    []pendingEntry
	backoff    time.Duration
	backingOff bool
	lastFailed domain.EndpointID
	retry      *time.Timer
	reconnect  *time.Timer
	heartbeats *time.Ticker
	refreshes  *time.Ticker
	stopReason error
}

// New validates cfg and creates a session. The session does nothing until
// Start is called.
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = domain.NewClientID()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}

	logger := cfg.Logger.With("client_id", cfg.ClientID)
	registry := contact.NewRegistry(contact.Config{FailureCeiling: cfg.ContactFailureCeiling})

	s := &Session{
		cfg:      cfg,
		logger:   logger,
		metrics:  cfg.Metrics,
		registry: registry,
		monitor: heartbeat.New(heartbeat.Config{
			Interval:        cfg.HeartbeatInterval,
			AcceptablePause: cfg.AcceptableHeartbeatPause,
			ProbeTimeout:    cfg.HeartbeatProbeTimeout,
			ClientID:        cfg.ClientID,
			Prober:          cfg.Transport,
			Registry:        registry,
			Logger:          logger,
		}),
		protocol: discovery.New(discovery.Config{
			ClientID:  cfg.ClientID,
			Requester: cfg.Transport,
			Timeout:   cfg.EstablishingGetContactsInterval,
			Logger:    logger,
		}),
		contacts: event.NewPublisher[domain.EndpointID](),
		mailbox:  make(chan any),
		stopping: make(chan struct{}),
		loopDone: make(chan struct{}),
		done:     make(chan struct{}),
		state:    domain.StateEstablishing,
		backoff:  cfg.ReconnectBackoffMin,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	router := delivery.NewRouter(delivery.Config{
		ClientID:              cfg.ClientID,
		Transport:             cfg.Transport,
		LocalAffinityFallback: cfg.LocalAffinityFallback,
		Logger:                logger,
	})
	s.worker = newWorker(router, s.onReport, s.onDrop)

	return s, nil
}

// ClientID returns the identity the session presents to receptionists.
func (s *Session) ClientID() domain.ClientID {
	return s.cfg.ClientID
}

// Start seeds the contact registry and starts the session loop.
func (s *Session) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.apply(s.registry.Seed(s.cfg.InitialContacts))
	if s.cfg.Cache != nil {
		cached, err := s.cfg.Cache.Load(s.ctx)
		if err != nil {
			s.logger.Warn("failed to load contact cache", "error", err)
		} else if len(cached) > 0 {
			s.apply(s.registry.Merge(cached))
			s.logger.Debug("contacts loaded from cache", "count", len(cached))
		}
	}

	s.logger.Info("session starting",
		"contacts", len(s.registry.Addresses()),
		"buffer_size", s.cfg.BufferSize)

	go s.worker.run(s.ctx)
	go s.run()
}

// Stop stops the session. Buffered messages are dead-lettered; messages
// already handed to delivery finish first when flush-on-stop is set. If
// ctx expires first, in-flight deliveries are cancelled and ctx.Err() is
// returned.
func (s *Session) Stop(ctx context.Context) error {
	if !s.started.Load() {
		s.stopOnce.Do(func() {
			s.started.Store(true)
			close(s.loopDone)
			s.worker.close(false)
			close(s.worker.exited)
			s.cancel()
			s.contacts.Close()
			close(s.done)
		})
		return nil
	}

	s.stopOnce.Do(func() { close(s.stopping) })

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.done
		return ctx.Err()
	}
}

// Done is closed once the session has stopped and released its resources.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session stopped, or nil while it runs or after an
// explicit Stop.
func (s *Session) Err() error {
	select {
	case <-s.loopDone:
		return s.stopReason
	default:
		return nil
	}
}

// Send queues payload for the single service registered at target. It
// returns once the session has accepted the message; delivery happens
// asynchronously and at most once.
func (s *Session) Send(ctx context.Context, target domain.ServicePath, payload []byte, localAffinity bool) error {
	return s.enqueue(ctx, delivery.Request{
		Mode:          domain.ModeUnicast,
		Target:        target,
		Payload:       payload,
		LocalAffinity: localAffinity,
	}, nil)
}

// SendToAll queues payload for every distinct registration of target
// reachable through any live contact.
func (s *Session) SendToAll(ctx context.Context, target domain.ServicePath, payload []byte) error {
	return s.enqueue(ctx, delivery.Request{
		Mode:    domain.ModeFanout,
		Target:  target,
		Payload: payload,
	}, nil)
}

// Dispatch queues req like Send or SendToAll and waits for its delivery
// report. A message buffered while the session is not established is
// reported once it has been flushed, dropped or dead-lettered.
func (s *Session) Dispatch(ctx context.Context, req delivery.Request) (delivery.Report, error) {
	done := make(chan delivery.Report, 1)
	if err := s.enqueue(ctx, req, done); err != nil {
		return delivery.Report{}, err
	}

	select {
	case rep := <-done:
		return rep, nil
	case <-ctx.Done():
		return delivery.Report{}, ctx.Err()
	case <-s.done:
		select {
		case rep := <-done:
			return rep, nil
		default:
			return delivery.Report{}, domain.ErrSessionStopped
		}
	}
}

// Status returns the current session status.
func (s *Session) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := s.post(ctx, statusCmd{reply: reply}); err != nil {
		return Status{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// SubscribeContactPoints registers ch for contact point events. The first
// event is a snapshot of the current contacts.
func (s *Session) SubscribeContactPoints(ch chan<- event.Event[domain.EndpointID]) event.SubscriptionID {
	return s.contacts.Subscribe(ch)
}

// UnsubscribeContactPoints removes a subscription.
func (s *Session) UnsubscribeContactPoints(id event.SubscriptionID) {
	s.contacts.Unsubscribe(id)
}

func (s *Session) enqueue(ctx context.Context, req delivery.Request, done chan delivery.Report) error {
	if err := req.Target.Validate(); err != nil {
		return err
	}
	return s.post(ctx, sendCmd{
		msg: domain.PendingMessage{
			Target:        req.Target,
			Payload:       req.Payload,
			Mode:          req.Mode,
			LocalAffinity: req.LocalAffinity,
			EnqueuedAt:    time.Now(),
		},
		done: done,
	})
}

func (s *Session) post(ctx context.Context, msg any) error {
	if !s.started.Load() {
		return domain.ErrSessionStopped.WithDetails("session not started")
	}
	select {
	case s.mailbox <- msg:
		return nil
	case <-s.loopDone:
		return domain.ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// report posts an asynchronous result back to the loop. Results arriving
// after the loop exited are dropped.
func (s *Session) report(msg any) {
	select {
	case s.mailbox <- msg:
	case <-s.loopDone:
	}
}

func (s *Session) reportDiscovery(resp discovery.Response) { s.report(resp) }

func (s *Session) reportHeartbeat(res heartbeat.Result) { s.report(res) }

func (s *Session) run() {
	defer s.finish()

	s.setState(domain.StateEstablishing)
	s.armReconnect()
	s.attempt()

	for {
		select {
		case msg := <-s.mailbox:
			switch m := msg.(type) {
			case sendCmd:
				s.onSend(m)
			case statusCmd:
				m.reply <- s.status()
			case discovery.Response:
				s.onDiscovery(m)
			case heartbeat.Result:
				s.onHeartbeat(m)
			}

		case <-s.stopping:
			s.shutdown(nil)
			return

		case <-timerC(s.retry):
			s.retry = nil
			s.attempt()

		case <-tickerC(s.heartbeats):
			s.monitor.Probe(s.ctx, s.reportHeartbeat)

		case <-tickerC(s.refreshes):
			if active, ok := s.registry.Active(); ok {
				s.protocol.Refresh(s.ctx, active.Address, s.reportDiscovery)
			}

		case <-timerC(s.reconnect):
			s.reconnect = nil
			s.logger.Error("giving up on cluster",
				"reconnect_timeout", s.cfg.ReconnectTimeout)
			s.shutdown(domain.ErrClusterUnavailable.WithDetails("reconnect timeout exceeded"))
			return
		}
	}
}

func (s *Session) finish() {
	close(s.loopDone)

	s.worker.close(s.cfg.FlushOnStop)
	<-s.worker.exited

	s.cancel()
	s.contacts.Close()
	close(s.done)

	s.logger.Info("session stopped")
}

// attempt starts a discovery round against every eligible contact, or
// waits out the backoff when all of them are exhausted.
func (s *Session) attempt() {
	if s.backingOff {
		s.backingOff = false
		s.registry.ResetFailures()
		s.backoff = min(s.backoff*2, s.cfg.ReconnectBackoffMax)
	}

	if s.registry.Exhausted() {
		s.metrics.ClusterUnavailable()
		s.logger.Warn("all contacts exhausted, backing off",
			"backoff", s.backoff,
			"error", domain.ErrClusterUnavailable)
		s.backingOff = true
		s.armRetry(s.backoff)
		return
	}

	targets := s.registry.Rotation(s.lastFailed)
	round := s.protocol.Begin(s.ctx, targets, s.reportDiscovery)
	s.logger.Debug("discovering contacts",
		"round", round,
		"state", s.state.String(),
		"targets", len(targets))
	s.armRetry(s.cfg.EstablishingGetContactsInterval)
}

func (s *Session) onDiscovery(resp discovery.Response) {
	outcome := s.protocol.Accept(resp)
	s.metrics.DiscoveryOutcome(outcome.String())

	switch outcome {
	case discovery.OutcomeEstablished:
		s.establish(resp)

	case discovery.OutcomeRefreshed:
		s.apply(s.registry.Merge(resp.Contacts))
		s.store()

	case discovery.OutcomeStale:
		// Nothing from an abandoned round is applied. Failure counts belong
		// to the current round and to the heartbeat monitor.
		s.logger.Debug("stale discovery response dropped",
			"contact", resp.Contact,
			"round", resp.Round)

	case discovery.OutcomeFailed, discovery.OutcomeRoundFailed:
		if resp.Kind == discovery.KindEstablish {
			s.registry.MarkFailed(resp.Contact)
		}
		s.logger.Debug("get contacts failed",
			"contact", resp.Contact,
			"round", resp.Round,
			"error", resp.Err)
	}
}

func (s *Session) establish(resp discovery.Response) {
	if !s.registry.SetActive(resp.Contact) {
		s.logger.Debug("winning contact no longer known", "contact", resp.Contact)
		return
	}
	s.protocol.Close()

	s.registry.MarkAlive(resp.Contact)
	s.apply(s.registry.Merge(resp.Contacts))

	s.generation++
	s.monitor.Watch(resp.Contact, s.generation)

	s.stopTimer(&s.retry)
	s.stopTimer(&s.reconnect)
	s.backoff = s.cfg.ReconnectBackoffMin
	s.backingOff = false
	s.lastFailed = ""

	s.heartbeats = time.NewTicker(s.cfg.HeartbeatInterval)
	s.refreshes = time.NewTicker(s.cfg.RefreshContactsInterval)

	s.setState(domain.StateEstablished)
	s.logger.Info("session established",
		"contact", resp.Contact,
		"contacts", s.registry.Len())

	s.store()
	s.flush()
}

func (s *Session) onHeartbeat(res heartbeat.Result) {
	switch s.monitor.Record(res) {
	case heartbeat.VerdictMissed:
		s.metrics.HeartbeatMissed()
	case heartbeat.VerdictDead:
		s.metrics.HeartbeatMissed()
		s.logger.Warn("active contact lost",
			"contact", res.Contact,
			"threshold", s.monitor.Threshold(),
			"error", domain.ErrHeartbeatTimeout.WithCause(res.Err))
		s.reestablish(res.Contact)
	}
}

func (s *Session) reestablish(failed domain.EndpointID) {
	s.stopTicker(&s.heartbeats)
	s.stopTicker(&s.refreshes)
	s.monitor.Unwatch()

	s.apply(s.registry.Remove(failed))
	s.registry.SetActive("")
	s.lastFailed = failed

	s.setState(domain.StateReestablishing)
	s.armReconnect()
	s.attempt()
}

func (s *Session) onSend(cmd sendCmd) {
	if s.state == domain.StateEstablished {
		s.worker.submit(job{msg: cmd.msg, route: s.route(), done: cmd.done})
		return
	}

	entry := pendingEntry{msg: cmd.msg, done: cmd.done}
	if s.cfg.BufferSize == 0 {
		s.overflow(entry)
		return
	}
	if len(s.pending) >= s.cfg.BufferSize {
		oldest := s.pending[0]
		s.pending[0] = pendingEntry{}
		s.pending = s.pending[1:]
		s.overflow(oldest)
	}
	s.pending = append(s.pending, entry)
}

func (s *Session) overflow(dropped pendingEntry) {
	s.metrics.BufferOverflow()
	s.logger.Warn("pending buffer full, dropping oldest message",
		"path", dropped.msg.Target,
		"buffer_size", s.cfg.BufferSize,
		"error", domain.ErrBufferOverflow)
	if s.cfg.OnBufferOverflow != nil {
		s.cfg.OnBufferOverflow(dropped.msg)
	}
	reject(dropped.done, dropped.msg, domain.ErrBufferOverflow)
}

// flush hands every buffered message to the delivery worker in FIFO order.
func (s *Session) flush() {
	if len(s.pending) == 0 {
		return
	}
	route := s.route()
	s.logger.Debug("flushing pending messages", "count", len(s.pending))
	for _, entry := range s.pending {
		s.worker.submit(job{msg: entry.msg, route: route, done: entry.done})
	}
	s.pending = nil
}

func (s *Session) route() delivery.Route {
	var route delivery.Route
	if active, ok := s.registry.Active(); ok {
		route.Active = active.Address
	}
	route.Live = s.registry.Rotation("")
	return route
}

func (s *Session) shutdown(reason error) {
	s.stopReason = reason
	s.stopTimer(&s.retry)
	s.stopTimer(&s.reconnect)
	s.stopTicker(&s.heartbeats)
	s.stopTicker(&s.refreshes)
	s.protocol.Close()
	s.monitor.Unwatch()
	s.registry.SetActive("")

	deadReason := error(domain.ErrSessionStopped)
	if reason != nil {
		deadReason = reason
	}
	for _, entry := range s.pending {
		s.deadLetter(entry.msg, entry.done, deadReason)
	}
	s.pending = nil

	s.setState(domain.StateStopped)
}

func (s *Session) onReport(j job, rep delivery.Report) {
	s.metrics.Delivered(rep.Mode, rep.Delivered, len(rep.Failures))
	if j.done != nil {
		j.done <- rep
	}
}

func (s *Session) onDrop(j job) {
	s.deadLetter(j.msg, j.done, domain.ErrSessionStopped)
}

func (s *Session) deadLetter(msg domain.PendingMessage, done chan delivery.Report, reason error) {
	s.logger.Debug("dead letter", "path", msg.Target, "error", reason)
	if s.cfg.OnDeadLetter != nil {
		s.cfg.OnDeadLetter(msg, reason)
	}
	reject(done, msg, reason)
}

func reject(done chan delivery.Report, msg domain.PendingMessage, reason error) {
	if done == nil {
		return
	}
	done <- delivery.Report{
		Mode:     msg.Mode,
		Target:   msg.Target,
		Failures: []delivery.Failure{{Err: reason}},
	}
}

func (s *Session) status() Status {
	st := Status{
		ClientID:  s.cfg.ClientID,
		State:     s.state,
		Contacts:  s.registry.Snapshot(),
		Buffered:  len(s.pending),
		Exhausted: s.registry.Exhausted(),
		Round:     s.protocol.Round(),
	}
	if active, ok := s.registry.Active(); ok {
		st.Active = active.Address
	}
	return st
}

func (s *Session) setState(state domain.SessionState) {
	if s.state != state {
		s.logger.Debug("session state changed",
			"from", s.state.String(),
			"to", state.String())
	}
	s.state = state
	s.metrics.StateChanged(state)
}

func (s *Session) apply(change contact.Change) {
	for _, addr := range change.Added {
		s.contacts.Add(addr)
	}
	for _, addr := range change.Removed {
		s.contacts.Remove(addr)
	}
	if !change.Empty() {
		s.metrics.ContactPoints(s.registry.Len())
	}
}

func (s *Session) store() {
	if s.cfg.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	if err := s.cfg.Cache.Store(ctx, s.registry.Addresses()); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to store contact cache", "error", err)
	}
}

func (s *Session) armRetry(d time.Duration) {
	s.stopTimer(&s.retry)
	s.retry = time.NewTimer(d)
}

func (s *Session) armReconnect() {
	if s.cfg.ReconnectTimeout <= 0 || s.reconnect != nil {
		return
	}
	s.reconnect = time.NewTimer(s.cfg.ReconnectTimeout)
}

func (s *Session) stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (s *Session) stopTicker(t **time.Ticker) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
