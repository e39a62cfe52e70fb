// Package twoq implements a scan-resistant, 2Q-style victim selection.
package twoq

import "github.com/IvanBrykalov/blockcache/policy"

// twoQ splits a shard's slots into two queues by use count:
//   - A1 (probation): slots acquired at most once since they were
//     assigned, plus slots that never held a block
//   - Am (main):      slots acquired again while cached
//
// While A1 holds more than inPct percent of the shard, the oldest
// unreferenced A1 slot is recycled; otherwise the oldest unreferenced Am
// slot is. A one-pass scan over many blocks therefore churns through A1
// and leaves the re-used working set in Am alone.
//
// Unlike classic 2Q there is no ghost queue: a slot forgets its history
// when it is recycled.
//
// Concurrency: all methods are called under the shard lock.
type twoQ struct {
	h     policy.Hooks
	inPct int
}

type twoQPolicy struct{ inPct int }

// New constructs a 2Q policy factory.
// inPct is the share of a shard's slots A1 may occupy before it is
// preferred for eviction; it is clamped to [1, 100]. 25 is a common choice.
func New(inPct int) policy.Policy {
	switch {
	case inPct < 1:
		inPct = 1
	case inPct > 100:
		inPct = 100
	}
	return twoQPolicy{inPct: inPct}
}

func (p twoQPolicy) New(h policy.Hooks) policy.ShardPolicy {
	return &twoQ{h: h, inPct: p.inPct}
}

// cand tracks the oldest unreferenced slot of one queue.
type cand struct {
	pos   int
	stamp uint64
	id    int
}

func (c *cand) offer(pos int, stamp uint64, id int) {
	if c.pos < 0 || stamp < c.stamp || (stamp == c.stamp && id < c.id) {
		*c = cand{pos: pos, stamp: stamp, id: id}
	}
}

// Victim implements policy.ShardPolicy.
func (q *twoQ) Victim() int {
	a1, am := cand{pos: -1}, cand{pos: -1}
	a1Len := 0
	n := q.h.Len()
	for i := 0; i < n; i++ {
		probation := q.h.Uses(i) <= 1
		if probation {
			a1Len++
		}
		if q.h.Refs(i) != 0 {
			continue
		}
		if probation {
			a1.offer(i, q.h.Stamp(i), q.h.ID(i))
		} else {
			am.offer(i, q.h.Stamp(i), q.h.ID(i))
		}
	}

	overfull := a1Len*100 > q.inPct*n
	switch {
	case a1.pos >= 0 && (overfull || am.pos < 0):
		return a1.pos
	case am.pos >= 0:
		return am.pos
	default:
		return a1.pos
	}
}
