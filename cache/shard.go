package cache

import (
	"sync"

	"github.com/IvanBrykalov/blockcache/internal/util"
	"github.com/IvanBrykalov/blockcache/policy"
)

// shard owns a disjoint subset of the slots. mu protects slot metadata
// (key, refs, stamp, membership) but never slot content.
type shard struct {
	idx int

	// ---- guarded by mu ----
	mu      sync.Mutex
	members []*slot       // every slot this shard owns, unordered
	m       map[Key]*slot // assigned members by key

	pol policy.ShardPolicy

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedCounter
	misses util.PaddedCounter
	evicts util.PaddedCounter
	steals util.PaddedCounter
}

func newShard(idx int, pol policy.Policy) *shard {
	s := &shard{idx: idx, m: make(map[Key]*slot)}
	s.pol = pol.New(shardHooks{s: s})
	return s
}

// -------------------- internals (mu held) --------------------

// attach makes sl a member. sl must not belong to any shard.
func (s *shard) attach(sl *slot) {
	sl.home = s.idx
	sl.pos = len(s.members)
	s.members = append(s.members, sl)
	if sl.assigned {
		s.m[sl.key] = sl
	}
}

// detach removes sl from membership in O(1) by moving the last member
// into its position.
func (s *shard) detach(sl *slot) {
	last := len(s.members) - 1
	moved := s.members[last]
	s.members[sl.pos] = moved
	moved.pos = sl.pos
	s.members[last] = nil
	s.members = s.members[:last]

	if sl.assigned && s.m[sl.key] == sl {
		delete(s.m, sl.key)
	}
	sl.home, sl.pos = -1, -1
}

// reassign recycles an unreferenced member for key k and takes the first
// reference on it.
func (s *shard) reassign(sl *slot, k Key, stamp uint64) {
	if sl.assigned {
		delete(s.m, sl.key)
	}
	sl.key = k
	sl.assigned = true
	sl.valid = false
	sl.refs = 1
	sl.uses = 1
	sl.stamp = stamp
	s.m[k] = sl
}

// victim returns an unreferenced member chosen by the policy, or nil.
func (s *shard) victim() *slot {
	i := s.pol.Victim()
	if i < 0 {
		return nil
	}
	sl := s.members[i]
	if sl.refs != 0 {
		// A policy returning a referenced slot would hand one block's
		// buffer to another while it is in use.
		panic("cache: policy selected a referenced slot")
	}
	return sl
}

// -------------------- policy hooks --------------------

// shardHooks adapts shard membership to policy.Hooks.
type shardHooks struct{ s *shard }

func (h shardHooks) Len() int           { return len(h.s.members) }
func (h shardHooks) ID(i int) int       { return h.s.members[i].id }
func (h shardHooks) Stamp(i int) uint64 { return h.s.members[i].stamp }
func (h shardHooks) Refs(i int) int32   { return h.s.members[i].refs }
func (h shardHooks) Uses(i int) uint32  { return h.s.members[i].uses }
