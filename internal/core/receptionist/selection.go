package receptionist

import (
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// rendezvousScore ranks a candidate for a key using MurmurHash3.
func rendezvousScore(key, candidate string) uint64 {
	h := murmur3.New64()
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write([]byte(candidate))
	return h.Sum64()
}

// selectContacts returns at most n addresses ranked by rendezvous hashing
// on key, so the same key keeps getting the same subset while the set is
// unchanged. n <= 0 returns every address, sorted.
func selectContacts(key string, addrs []domain.EndpointID, n int) []domain.EndpointID {
	out := append([]domain.EndpointID(nil), addrs...)
	if n <= 0 || n >= len(out) {
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}

	sort.Slice(out, func(i, j int) bool {
		si := rendezvousScore(key, string(out[i]))
		sj := rendezvousScore(key, string(out[j]))
		if si != sj {
			return si > sj
		}
		return out[i] < out[j]
	})
	return out[:n]
}

// pickRegistration chooses one registration for key by rendezvous hashing.
func pickRegistration(key string, regs []domain.Registration) (domain.Registration, bool) {
	if len(regs) == 0 {
		return domain.Registration{}, false
	}
	best := regs[0]
	bestScore := rendezvousScore(key, string(best.ID))
	for _, reg := range regs[1:] {
		if score := rendezvousScore(key, string(reg.ID)); score > bestScore || (score == bestScore && reg.ID < best.ID) {
			best, bestScore = reg, score
		}
	}
	return best, true
}
