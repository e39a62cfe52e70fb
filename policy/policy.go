// Package policy defines how a shard picks the slot to recycle on a miss.
package policy

// Hooks expose the slots currently assigned to one shard to its policy.
// Positions run from 0 to Len()-1 and are only stable while the shard
// lock is held; ID returns the slot's permanent index in the cache.
//
// Concurrency: all hook calls happen under the shard lock.
type Hooks interface {
	// Len returns the number of slots the shard currently owns.
	Len() int
	// ID returns the cache-wide index of the slot at position i.
	ID(i int) int
	// Stamp returns the recency marker of the slot at position i.
	// Larger stamps are more recent.
	Stamp(i int) uint64
	// Refs returns the reference count of the slot at position i.
	Refs(i int) int32
	// Uses returns how many times the slot at position i has been
	// acquired since it was assigned its current block; 0 for a slot
	// that never held a block.
	Uses(i int) uint32
}

// ShardPolicy is a per-shard victim selector bound to shard hooks.
// All methods are invoked under the shard lock.
//
// Victim must never return a position whose Refs is non-zero; it returns
// -1 when every slot in the shard is referenced.
type ShardPolicy interface {
	Victim() int
}

// Policy is a factory that creates shard-local policy instances
// bound to a particular shard's hooks.
type Policy interface {
	New(Hooks) ShardPolicy
}
