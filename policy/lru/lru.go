// Package lru implements least-recently-used victim selection.
package lru

import "github.com/IvanBrykalov/blockcache/policy"

// lru picks the unreferenced slot with the oldest recency stamp.
// Stamps are refreshed by the cache on every acquisition, so a linear
// scan is all the bookkeeping needed; shards are small.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns a Policy factory that constructs per-shard LRU instances.
func New() policy.Policy { return lruPolicy{} }

// New implements policy.Policy.
func (lruPolicy) New(h policy.Hooks) policy.ShardPolicy { return &lru{h: h} }

// Victim returns the position of the oldest unreferenced slot, or -1.
// Equal stamps resolve to the lowest slot ID so that the choice is
// deterministic regardless of list order.
func (p *lru) Victim() int {
	best := -1
	var bestStamp uint64
	var bestID int
	for i, n := 0, p.h.Len(); i < n; i++ {
		if p.h.Refs(i) != 0 {
			continue
		}
		st, id := p.h.Stamp(i), p.h.ID(i)
		if best < 0 || st < bestStamp || (st == bestStamp && id < bestID) {
			best, bestStamp, bestID = i, st, id
		}
	}
	return best
}
