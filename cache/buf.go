package cache

import "sync/atomic"

// Buf is a handle to an exclusively locked block. Each successful
// Read/Get returns a fresh Buf; two handles for the same block held one
// after the other refer to the same slot (see Slot).
//
// A Buf belongs to the goroutine that acquired it until Release.
type Buf struct {
	c      *cache
	s      *slot
	key    Key
	ticket uint64 // ownership proof for s.lock
	dead   bool   // set by Release
}

// Key returns the block this buffer holds.
func (b *Buf) Key() Key { return b.key }

// Slot returns the index of the backing slot. Concurrent holders of the
// same block always observe the same index.
func (b *Buf) Slot() int { return b.s.id }

// Valid reports whether Data reflects the on-disk content.
func (b *Buf) Valid() bool {
	b.c.mustHold("data", b)
	return b.s.valid
}

// SetValid marks the content as authoritative. Use it after fully
// overwriting a block obtained with Get, so later holders skip the read.
func (b *Buf) SetValid() {
	b.c.mustHold("data", b)
	b.s.valid = true
}

// Data returns the block content. The slice is only safe to touch until
// Release.
func (b *Buf) Data() []byte {
	b.c.mustHold("data", b)
	return b.s.data
}

// Pin keeps a block resident independently of its content lock.
type Pin struct {
	s    *slot
	key  Key
	done atomic.Bool // set by the first Unpin
}

// Key returns the pinned block.
func (p *Pin) Key() Key { return p.key }
