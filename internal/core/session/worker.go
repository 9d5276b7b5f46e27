package session

import (
	"context"
	"sync"

	"github.com/yndnr/gatemesh-go/internal/core/delivery"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

type job struct {
	msg   domain.PendingMessage
	route delivery.Route
	done  chan delivery.Report
}

// worker dispatches jobs one at a time in submission order. Submitting
// never blocks the session loop.
type worker struct {
	router   *delivery.Router
	onReport func(job, delivery.Report)
	onDrop   func(job)

	mu      sync.Mutex
	queue   []job
	closing bool
	flush   bool

	wake   chan struct{}
	exited chan struct{}
}

func newWorker(router *delivery.Router, onReport func(job, delivery.Report), onDrop func(job)) *worker {
	return &worker{
		router:   router,
		onReport: onReport,
		onDrop:   onDrop,
		wake:     make(chan struct{}, 1),
		exited:   make(chan struct{}),
	}
}

func (w *worker) submit(j job) {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		w.onDrop(j)
		return
	}
	w.queue = append(w.queue, j)
	w.mu.Unlock()
	w.signal()
}

// close stops the worker. With flush set, queued jobs are still
// dispatched; otherwise they are dropped.
func (w *worker) close(flush bool) {
	w.mu.Lock()
	w.closing = true
	w.flush = flush
	var dropped []job
	if !flush {
		dropped = w.queue
		w.queue = nil
	}
	w.mu.Unlock()

	for _, j := range dropped {
		w.onDrop(j)
	}
	w.signal()
}

func (w *worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) run(ctx context.Context) {
	defer close(w.exited)
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			closing := w.closing
			w.mu.Unlock()
			if closing {
				return
			}
			<-w.wake
			continue
		}
		j := w.queue[0]
		w.queue[0] = job{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		report := w.router.Dispatch(ctx, delivery.FromPending(j.msg), j.route)
		w.onReport(j, report)
	}
}
