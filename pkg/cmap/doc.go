// Package cmap provides a sharded concurrent map for string-like keys.
//
// Keys are spread over power-of-two shards by murmur3, each shard guarded
// by its own RWMutex:
//
//	m := cmap.New[domain.ClientID, *rate.Limiter]()
//	lim := m.GetOrCreate(id, func() *rate.Limiter { return rate.NewLimiter(10, 10) })
//
// Range and Keys lock one shard at a time, so they observe a view that may
// mix states from before and after concurrent writes.
package cmap
