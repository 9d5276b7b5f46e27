// Package event fans out membership events to subscribers.
//
// A Publisher owns a set of items (contact points on the client side,
// cluster clients on the receptionist side). A new subscriber first
// receives a snapshot of the set; afterwards every mutation is delivered
// as an Added or Removed delta.
//
// Delivery is best effort and at most once. Each subscriber has its own
// queue and goroutine, so a slow subscriber never delays the others or the
// publishing loop. Per subscriber, events arrive in publication order: an
// item is never reported Removed before it was part of a snapshot or an
// Added event. When a subscriber's queue overflows, its pending deltas are
// collapsed into a fresh snapshot, which preserves that guarantee.
package event

import (
	"sync"
)

// Kind is the event kind.
type Kind int

const (
	// KindSnapshot carries the full current set.
	KindSnapshot Kind = iota
	// KindAdded carries one item that joined the set.
	KindAdded
	// KindRemoved carries one item that left the set.
	KindRemoved
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindAdded:
		return "added"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a snapshot or a delta.
type Event[T comparable] struct {
	Kind    Kind
	Version uint64
	// Item is set for Added and Removed.
	Item T
	// Items is set for Snapshot.
	Items []T
}

// SubscriptionID identifies a subscription.
type SubscriptionID uint64

// DefaultQueueLimit bounds a subscriber's pending events before they are
// collapsed into a snapshot.
const DefaultQueueLimit = 256

// Publisher publishes set membership events.
type Publisher[T comparable] struct {
	mu         sync.Mutex
	items      []T
	index      map[T]struct{}
	version    uint64
	nextID     SubscriptionID
	subs       map[SubscriptionID]*subscriber[T]
	queueLimit int
	closed     bool
}

// NewPublisher creates an empty publisher.
func NewPublisher[T comparable]() *Publisher[T] {
	return &Publisher[T]{
		index:      make(map[T]struct{}),
		subs:       make(map[SubscriptionID]*subscriber[T]),
		queueLimit: DefaultQueueLimit,
	}
}

// SetQueueLimit changes the per-subscriber queue limit. Values below 1 are
// ignored.
func (p *Publisher[T]) SetQueueLimit(limit int) {
	if limit < 1 {
		return
	}
	p.mu.Lock()
	p.queueLimit = limit
	p.mu.Unlock()
}

// Subscribe registers ch and immediately queues a snapshot for it.
// Events are sent on ch until Unsubscribe or Close; ch is never closed by
// the publisher.
func (p *Publisher[T]) Subscribe(ch chan<- Event[T]) SubscriptionID {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	if p.closed {
		return id
	}

	s := newSubscriber(ch)
	p.subs[id] = s
	s.enqueue(p.snapshotLocked(), p.queueLimit, nil)
	go s.run()

	return id
}

// Unsubscribe stops delivery to the subscription. Queued events are dropped.
func (p *Publisher[T]) Unsubscribe(id SubscriptionID) {
	p.mu.Lock()
	s, ok := p.subs[id]
	delete(p.subs, id)
	p.mu.Unlock()

	if ok {
		s.stop()
	}
}

// Add inserts item and publishes an Added event. It returns false and
// publishes nothing if item is already present.
func (p *Publisher[T]) Add(item T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[item]; ok {
		return false
	}
	p.index[item] = struct{}{}
	p.items = append(p.items, item)
	p.version++

	p.broadcastLocked(Event[T]{Kind: KindAdded, Version: p.version, Item: item})
	return true
}

// Remove deletes item and publishes a Removed event. It returns false and
// publishes nothing if item is absent.
func (p *Publisher[T]) Remove(item T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[item]; !ok {
		return false
	}
	delete(p.index, item)
	for i, it := range p.items {
		if it == item {
			p.items = append(p.items[:i], p.items[i+1:]...)
			break
		}
	}
	p.version++

	p.broadcastLocked(Event[T]{Kind: KindRemoved, Version: p.version, Item: item})
	return true
}

// Items returns the current set in insertion order.
func (p *Publisher[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

// Version returns the number of mutations applied so far.
func (p *Publisher[T]) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// Subscribers returns the number of active subscriptions.
func (p *Publisher[T]) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// LastDelivered returns the version of the last event delivered to the
// subscription.
func (p *Publisher[T]) LastDelivered(id SubscriptionID) (uint64, bool) {
	p.mu.Lock()
	s, ok := p.subs[id]
	p.mu.Unlock()
	if !ok {
		return 0, false
	}
	return s.lastDelivered(), true
}

// Close stops every subscription. Later mutations are still applied but
// published to nobody.
func (p *Publisher[T]) Close() {
	p.mu.Lock()
	subs := p.subs
	p.subs = make(map[SubscriptionID]*subscriber[T])
	p.closed = true
	p.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (p *Publisher[T]) snapshotLocked() Event[T] {
	items := make([]T, len(p.items))
	copy(items, p.items)
	return Event[T]{Kind: KindSnapshot, Version: p.version, Items: items}
}

func (p *Publisher[T]) broadcastLocked(ev Event[T]) {
	for _, s := range p.subs {
		s.enqueue(ev, p.queueLimit, p.snapshotLocked)
	}
}

type subscriber[T comparable] struct {
	ch     chan<- Event[T]
	mu     sync.Mutex
	queue  []Event[T]
	last   uint64
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscriber[T comparable](ch chan<- Event[T]) *subscriber[T] {
	return &subscriber[T]{
		ch:     ch,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// enqueue appends ev. On overflow the queue is replaced by a snapshot of the
// current state, which already reflects ev.
func (s *subscriber[T]) enqueue(ev Event[T], limit int, snapshot func() Event[T]) {
	s.mu.Lock()
	if len(s.queue) >= limit && snapshot != nil {
		s.queue = append(s.queue[:0], snapshot())
	} else {
		s.queue = append(s.queue, ev)
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue[0] = Event[T]{}
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.ch <- ev:
				s.mu.Lock()
				s.last = ev.Version
				s.mu.Unlock()
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscriber[T]) lastDelivered() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *subscriber[T]) stop() {
	s.once.Do(func() { close(s.done) })
}
