package contact

import (
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// DefaultFailureCeiling is the default number of consecutive failures a
// contact may accumulate before rotation skips it.
const DefaultFailureCeiling = 3

// Config configures a Registry.
type Config struct {
	// FailureCeiling is the failure count above which a contact is skipped.
	FailureCeiling uint

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Change describes the membership delta produced by a mutation.
type Change struct {
	Added   []domain.EndpointID
	Removed []domain.EndpointID
}

// Empty reports whether the change carries no delta.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Registry holds contact points in rotation order.
type Registry struct {
	order   []domain.EndpointID
	entries map[domain.EndpointID]*domain.ContactPoint
	active  domain.EndpointID
	ceiling uint
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		entries: make(map[domain.EndpointID]*domain.ContactPoint),
		ceiling: cfg.FailureCeiling,
		now:     cfg.Now,
	}
}

// Seed adds the configured initial contacts. Seeds are pinned: Merge never
// prunes them. Duplicates and empty addresses are ignored.
func (r *Registry) Seed(addrs []domain.EndpointID) Change {
	var change Change
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		if cp, ok := r.entries[addr]; ok {
			cp.Seed = true
			continue
		}
		r.insert(addr, true, time.Time{})
		change.Added = append(change.Added, addr)
	}
	return change
}

// Merge applies a discovery response. Newly discovered addresses are
// appended, addresses already present get their LastSeenAt refreshed, and
// entries missing from the response are pruned unless they are seeds or the
// active contact.
//
// Merging the same response twice leaves the registry as merging it once.
func (r *Registry) Merge(discovered []domain.EndpointID) Change {
	var change Change
	now := r.now()

	confirmed := make(map[domain.EndpointID]struct{}, len(discovered))
	for _, addr := range discovered {
		if addr == "" {
			continue
		}
		if _, dup := confirmed[addr]; dup {
			continue
		}
		confirmed[addr] = struct{}{}

		if cp, ok := r.entries[addr]; ok {
			cp.LastSeenAt = now
			continue
		}
		r.insert(addr, false, now)
		change.Added = append(change.Added, addr)
	}

	kept := r.order[:0]
	for _, addr := range r.order {
		cp := r.entries[addr]
		_, ok := confirmed[addr]
		if ok || cp.Seed || addr == r.active {
			kept = append(kept, addr)
			continue
		}
		delete(r.entries, addr)
		change.Removed = append(change.Removed, addr)
	}
	r.order = kept

	return change
}

// Remove deletes a contact explicitly reported as gone. Seeds are kept but
// left with their failure count untouched. Removing the active contact
// clears it.
func (r *Registry) Remove(addr domain.EndpointID) Change {
	cp, ok := r.entries[addr]
	if !ok {
		return Change{}
	}
	if addr == r.active {
		r.active = ""
	}
	if cp.Seed {
		return Change{}
	}

	delete(r.entries, addr)
	for i, a := range r.order {
		if a == addr {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return Change{Removed: []domain.EndpointID{addr}}
}

// MarkFailed increments the consecutive failure count of addr and returns
// the new count. It returns false if addr is unknown.
func (r *Registry) MarkFailed(addr domain.EndpointID) (uint, bool) {
	cp, ok := r.entries[addr]
	if !ok {
		return 0, false
	}
	cp.ConsecutiveFailures++
	return cp.ConsecutiveFailures, true
}

// MarkAlive resets the failure count of addr and refreshes LastSeenAt.
func (r *Registry) MarkAlive(addr domain.EndpointID) bool {
	cp, ok := r.entries[addr]
	if !ok {
		return false
	}
	cp.ConsecutiveFailures = 0
	cp.LastSeenAt = r.now()
	return true
}

// ResetFailures clears the failure count of every contact. Called before a
// full-registry retry.
func (r *Registry) ResetFailures() {
	for _, cp := range r.entries {
		cp.ConsecutiveFailures = 0
	}
}

// Next returns the first eligible contact in rotation order after
// afterFailureOf, wrapping to the start of the list. An empty or unknown
// afterFailureOf starts from the beginning. It returns false when every
// contact exceeds the failure ceiling.
func (r *Registry) Next(afterFailureOf domain.EndpointID) (domain.ContactPoint, bool) {
	rotation := r.Rotation(afterFailureOf)
	if len(rotation) == 0 {
		return domain.ContactPoint{}, false
	}
	return *r.entries[rotation[0]], true
}

// Rotation returns every eligible contact in rotation order starting after
// the given address. The given address itself, if eligible, comes last.
func (r *Registry) Rotation(after domain.EndpointID) []domain.EndpointID {
	n := len(r.order)
	if n == 0 {
		return nil
	}

	start := 0
	if after != "" {
		for i, addr := range r.order {
			if addr == after {
				start = i + 1
				break
			}
		}
	}

	out := make([]domain.EndpointID, 0, n)
	for i := 0; i < n; i++ {
		addr := r.order[(start+i)%n]
		if r.eligible(r.entries[addr]) {
			out = append(out, addr)
		}
	}
	return out
}

// Exhausted reports whether no contact is eligible for rotation.
func (r *Registry) Exhausted() bool {
	for _, addr := range r.order {
		if r.eligible(r.entries[addr]) {
			return false
		}
	}
	return true
}

// SetActive records addr as the active contact. It returns false, leaving
// the active contact unchanged, if addr is not in the registry.
func (r *Registry) SetActive(addr domain.EndpointID) bool {
	if addr == "" {
		r.active = ""
		return true
	}
	if _, ok := r.entries[addr]; !ok {
		return false
	}
	r.active = addr
	return true
}

// Active returns the active contact, if any.
func (r *Registry) Active() (domain.ContactPoint, bool) {
	if r.active == "" {
		return domain.ContactPoint{}, false
	}
	return *r.entries[r.active], true
}

// Get returns the contact for addr.
func (r *Registry) Get(addr domain.EndpointID) (domain.ContactPoint, bool) {
	cp, ok := r.entries[addr]
	if !ok {
		return domain.ContactPoint{}, false
	}
	return *cp, true
}

// Contains reports whether addr is known.
func (r *Registry) Contains(addr domain.EndpointID) bool {
	_, ok := r.entries[addr]
	return ok
}

// Len returns the number of contacts.
func (r *Registry) Len() int {
	return len(r.order)
}

// Addresses returns all addresses in rotation order.
func (r *Registry) Addresses() []domain.EndpointID {
	out := make([]domain.EndpointID, len(r.order))
	copy(out, r.order)
	return out
}

// Snapshot returns copies of all contacts in rotation order.
func (r *Registry) Snapshot() []domain.ContactPoint {
	out := make([]domain.ContactPoint, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, *r.entries[addr])
	}
	return out
}

func (r *Registry) eligible(cp *domain.ContactPoint) bool {
	return cp.ConsecutiveFailures <= r.ceiling
}

func (r *Registry) insert(addr domain.EndpointID, seed bool, seenAt time.Time) {
	r.entries[addr] = &domain.ContactPoint{
		Address:    addr,
		LastSeenAt: seenAt,
		Seed:       seed,
	}
	r.order = append(r.order, addr)
}
