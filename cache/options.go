package cache

import (
	"log/slog"

	"github.com/IvanBrykalov/blockcache/device"
	"github.com/IvanBrykalov/blockcache/policy"
)

// EvictReason explains how a slot was recycled for a new block.
type EvictReason int

const (
	// EvictLocal: the victim came from the block's own shard.
	EvictLocal EvictReason = iota
	// EvictSteal: the home shard was fully referenced and the victim
	// was taken from another shard.
	EvictSteal
)

// IOOp identifies a device operation for metrics.
type IOOp int

const (
	IORead IOOp = iota
	IOWrite
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	// DeviceIO reports one completed device call; err is nil on success.
	DeviceIO(op IOOp, err error)
	// Refs reports a change in the number of outstanding references
	// (held handles plus pins).
	Refs(delta int)
}

// Options configures the cache. Zero values are safe where noted;
// defaults are applied in New():
//   - Shards <= 0   => 17 (otherwise rounded up to a prime)
//   - BlockSize 0   => Device.BlockSize()
//   - nil Policy    => LRU
//   - nil Metrics   => NoopMetrics
//   - nil Logger    => discard
type Options struct {
	// Slots is the number of in-memory block buffers. Required (> 0).
	// It bounds how many distinct blocks may be held or pinned at once.
	Slots int

	// Shards is the number of independently locked partitions.
	Shards int

	// BlockSize must match the device if set.
	BlockSize int

	// Device performs the actual block I/O. Required.
	Device device.Device

	// Policy picks the slot to recycle within a shard; nil => LRU.
	Policy policy.Policy

	// Observability
	Metrics Metrics
	Logger  *slog.Logger
}
