package cache

import "fmt"

// Key identifies a disk block. Its meaning is defined by the filesystem
// layer; the cache only compares keys and shards by Block.
type Key struct {
	Dev   uint32
	Block uint64
}

func (k Key) String() string { return fmt.Sprintf("%d:%d", k.Dev, k.Block) }

// Cache is a fixed-capacity, sharded block cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// A block is used in three steps: acquire it with Read (or Get), work on
// Buf.Data while holding it exclusively, then Release it. Only one holder
// may work on a block at a time; other callers asking for the same block
// wait in Read/Get until it is released.
type Cache interface {
	// Read returns the block locked for exclusive use, reading it from the
	// device unless the cached copy is already valid. On a device error
	// the acquisition is undone and the error returned; nothing needs to
	// be released.
	Read(dev uint32, block uint64) (*Buf, error)

	// Get returns the block locked for exclusive use without any I/O.
	// Its content is only meaningful if Buf.Valid reports true.
	Get(dev uint32, block uint64) *Buf

	// Write writes the buffer's content to the device. The caller must
	// hold b. The cache never writes on its own.
	Write(b *Buf) error

	// Release gives up b. It must be called exactly once per successful
	// Read/Get, after which b must not be used.
	Release(b *Buf)

	// Pin keeps b's block resident after b is released, until the
	// returned pin is passed to Unpin. The caller must hold b.
	Pin(b *Buf) *Pin

	// Unpin drops a pin taken with Pin.
	Unpin(p *Pin)

	// Stats returns a snapshot of the cache counters.
	Stats() Stats

	// Close marks the cache closed and closes the device if it is an
	// io.Closer. It fails with ErrBusy while any block is held or pinned.
	Close() error
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Slots  int
	Shards int

	Hits      uint64
	Misses    uint64
	Evictions uint64 // victims taken from the block's own shard
	Steals    uint64 // victims taken from another shard
	Reads     uint64 // device reads
	Writes    uint64 // device writes
	Refs      int64  // outstanding references (held handles + pins)
}
