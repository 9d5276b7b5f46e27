package receptionist

import (
	"golang.org/x/time/rate"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/pkg/cmap"
)

// limiterRegistry keeps one token bucket per client.
type limiterRegistry struct {
	limit    rate.Limit
	burst    int
	limiters *cmap.Map[domain.ClientID, *rate.Limiter]
}

func newLimiterRegistry(perSecond float64, burst int) *limiterRegistry {
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	return &limiterRegistry{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: cmap.New[domain.ClientID, *rate.Limiter](),
	}
}

// Allow reports whether id may make another request now.
func (r *limiterRegistry) Allow(id domain.ClientID) bool {
	return r.limiters.GetOrCreate(id, func() *rate.Limiter {
		return rate.NewLimiter(r.limit, r.burst)
	}).Allow()
}

// Delete forgets id's bucket.
func (r *limiterRegistry) Delete(id domain.ClientID) {
	r.limiters.Delete(id)
}
