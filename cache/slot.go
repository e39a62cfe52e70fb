package cache

import "github.com/IvanBrykalov/blockcache/internal/sleeplock"

// slot is one fixed block buffer. Slots are allocated once in New and
// recycled forever; they move between shards only while unreferenced.
type slot struct {
	id int // index in cache.slots; never changes

	// ---- guarded by the owning shard's mu ----
	key      Key
	assigned bool   // key names a block (false for never-used slots)
	refs     int32  // held handles + pins; 0 => eviction candidate
	stamp    uint64 // recency marker, refreshed on every acquisition
	uses     uint32 // acquisitions since the current key was assigned
	home     int    // index of the owning shard
	pos      int    // position in the owning shard's members slice

	// valid and data belong to whoever holds lock. The shard resets valid
	// only when refs == 0, i.e. when nobody can hold lock.
	lock  sleeplock.Lock
	valid bool
	data  []byte
}
