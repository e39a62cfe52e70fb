package cache

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/IvanBrykalov/blockcache/device"
	"github.com/IvanBrykalov/blockcache/internal/util"
	"github.com/IvanBrykalov/blockcache/policy/lru"
)

// maxStealPasses bounds how often acquire restarts after a cross-shard
// search that skipped contended shards. A search that saw no contention
// fails immediately.
const maxStealPasses = 64

// cache is a sharded block cache over a fixed arena of slots.
// All methods are safe for concurrent use by multiple goroutines.
type cache struct {
	shards []*shard
	slots  []slot
	dev    device.Device

	tick    atomic.Uint64 // recency clock
	transit atomic.Int64  // slots detached from one shard, not yet in another
	closed  atomic.Bool

	refs   util.PaddedGauge
	reads  util.PaddedCounter
	writes util.PaddedCounter

	opt Options
	log *slog.Logger
}

// New constructs a cache with the provided Options.
// It panics if Slots is not positive, Device is nil, or BlockSize
// disagrees with the device.
func New(opt Options) Cache {
	if opt.Slots <= 0 {
		panic("Slots must be > 0")
	}
	if opt.Device == nil {
		panic("Device must be set")
	}
	switch ds := opt.Device.BlockSize(); {
	case opt.BlockSize == 0:
		opt.BlockSize = ds
	case opt.BlockSize != ds:
		panic(fmt.Sprintf("BlockSize %d does not match device block size %d", opt.BlockSize, ds))
	}
	if opt.BlockSize <= 0 {
		panic("BlockSize must be > 0")
	}
	opt.Shards = util.ShardCount(opt.Shards)
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New()
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &cache{
		shards: make([]*shard, opt.Shards),
		slots:  make([]slot, opt.Slots),
		dev:    opt.Device,
		opt:    opt,
		log:    logger.With("component", "blockcache"),
	}
	for i := range c.shards {
		c.shards[i] = newShard(i, opt.Policy)
	}

	// One backing array for all block buffers; nothing is allocated
	// after this point.
	bs := opt.BlockSize
	arena := make([]byte, opt.Slots*bs)
	for i := range c.slots {
		sl := &c.slots[i]
		sl.id = i
		sl.data = arena[i*bs : (i+1)*bs : (i+1)*bs]
		// Unused slots carry block number 0 and therefore start out in
		// shard 0; they spread to other shards as blocks are cached.
		c.shards[util.ShardIndex(sl.key.Block, len(c.shards))].attach(sl)
	}
	return c
}

// ---- Cache implementation ----

// Get returns the block locked, without reading it.
func (c *cache) Get(dev uint32, block uint64) *Buf {
	k := Key{Dev: dev, Block: block}
	if c.closed.Load() {
		c.fatal("get", k, ErrClosed)
	}
	return c.acquire("get", k)
}

// Read returns the block locked, reading it from the device on first use.
func (c *cache) Read(dev uint32, block uint64) (*Buf, error) {
	k := Key{Dev: dev, Block: block}
	if c.closed.Load() {
		return nil, ErrClosed
	}
	b := c.acquire("read", k)
	if b.s.valid {
		return b, nil
	}

	err := c.dev.ReadBlock(dev, block, b.s.data)
	c.opt.Metrics.DeviceIO(IORead, err)
	if err != nil {
		c.log.Warn("block read failed", "dev", dev, "block", block, "error", err)
		c.Release(b)
		return nil, fmt.Errorf("cache: read %v: %w", k, err)
	}
	c.reads.Add(1)
	b.s.valid = true
	return b, nil
}

// Write writes b's content through to the device.
func (c *cache) Write(b *Buf) error {
	c.mustHold("write", b)

	err := c.dev.WriteBlock(b.key.Dev, b.key.Block, b.s.data)
	c.opt.Metrics.DeviceIO(IOWrite, err)
	if err != nil {
		c.log.Warn("block write failed", "dev", b.key.Dev, "block", b.key.Block, "error", err)
		return fmt.Errorf("cache: write %v: %w", b.key, err)
	}
	c.writes.Add(1)
	return nil
}

// Release unlocks b and drops its reference.
func (c *cache) Release(b *Buf) {
	c.mustHold("release", b)
	b.dead = true
	b.s.lock.Unlock(b.ticket)
	c.unref("release", b.s, b.key)
}

// Pin takes an extra reference that outlives b.
func (c *cache) Pin(b *Buf) *Pin {
	c.mustHold("pin", b)

	// The slot cannot change shards while b holds a reference.
	s := c.shards[b.s.home]
	s.mu.Lock()
	b.s.refs++
	s.mu.Unlock()

	c.refs.Add(1)
	c.opt.Metrics.Refs(1)
	return &Pin{s: b.s, key: b.key}
}

// Unpin drops a reference taken by Pin.
func (c *cache) Unpin(p *Pin) {
	if p == nil {
		c.fatal("unpin", Key{}, ErrNotPinned)
	}
	if !p.done.CompareAndSwap(false, true) {
		c.fatal("unpin", p.key, ErrNotPinned)
	}
	c.unref("unpin", p.s, p.key)
}

// Stats sums the per-shard counters.
func (c *cache) Stats() Stats {
	st := Stats{
		Slots:  len(c.slots),
		Shards: len(c.shards),
		Reads:  c.reads.Load(),
		Writes: c.writes.Load(),
		Refs:   c.refs.Load(),
	}
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
		st.Steals += s.steals.Load()
	}
	return st
}

// Close refuses while any slot is referenced; otherwise it marks the
// cache closed and closes the device. Close must not race with
// acquisitions.
func (c *cache) Close() error {
	if c.closed.Load() {
		return nil
	}
	if n := c.referenced(); n > 0 {
		return fmt.Errorf("%w: %d slots", ErrBusy, n)
	}
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if cl, ok := c.dev.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// ---- acquisition ----

// acquire returns the slot for k, referenced and locked for the caller.
//
// Lock discipline: at most one shard lock is held at any time, and the
// slot lock is only taken after the shard lock is released. Shards other
// than k's home are only ever try-locked.
func (c *cache) acquire(op string, k Key) *Buf {
	home := c.shards[util.ShardIndex(k.Block, len(c.shards))]

	for pass := 0; ; pass++ {
		home.mu.Lock()
		if sl := c.lookupLocked(home, k); sl != nil {
			home.mu.Unlock()
			return c.lockSlot(sl, k)
		}
		if sl := home.victim(); sl != nil {
			home.reassign(sl, k, c.now())
			home.mu.Unlock()
			c.missed(home, EvictLocal)
			return c.lockSlot(sl, k)
		}
		home.mu.Unlock()

		sl, contended := c.steal(home, k)
		if sl != nil {
			return c.lockSlot(sl, k)
		}
		if !contended || pass >= maxStealPasses {
			c.fatal(op, k, ErrNoBuffers)
		}
		runtime.Gosched()
	}
}

// lookupLocked takes a reference on k's slot if home has one. home.mu held.
func (c *cache) lookupLocked(home *shard, k Key) *slot {
	sl := home.m[k]
	if sl == nil {
		return nil
	}
	sl.refs++
	sl.uses++
	sl.stamp = c.now()
	home.hits.Add(1)
	c.opt.Metrics.Hit()
	return sl
}

// steal moves an unreferenced slot from another shard into home and
// assigns it to k. contended reports whether the search skipped a locked
// shard or raced with another steal, in which case a free slot may exist
// even though none was found.
func (c *cache) steal(home *shard, k Key) (sl *slot, contended bool) {
	for _, src := range c.shards {
		if src == home {
			continue
		}
		if !src.mu.TryLock() {
			contended = true
			continue
		}
		v := src.victim()
		if v == nil {
			src.mu.Unlock()
			continue
		}
		src.detach(v)
		c.transit.Add(1)
		src.mu.Unlock()

		// v now belongs to no shard; nobody else can see it.
		v.assigned = false
		v.valid = false
		v.uses = 0

		home.mu.Lock()
		home.attach(v)
		c.transit.Add(-1)
		if hit := c.lookupLocked(home, k); hit != nil {
			// k was cached while home was unlocked. Keep v as a free
			// member of home and share the existing slot.
			home.mu.Unlock()
			return hit, false
		}
		home.reassign(v, k, c.now())
		home.mu.Unlock()

		c.missed(home, EvictSteal)
		c.log.Debug("stole slot", "slot", v.id, "from", src.idx, "to", home.idx, "dev", k.Dev, "block", k.Block)
		return v, false
	}
	return nil, contended || c.transit.Load() > 0
}

func (c *cache) missed(home *shard, reason EvictReason) {
	home.misses.Add(1)
	if reason == EvictSteal {
		home.steals.Add(1)
	} else {
		home.evicts.Add(1)
	}
	c.opt.Metrics.Miss()
	c.opt.Metrics.Evict(reason)
}

// lockSlot blocks on the slot lock. No shard lock may be held here.
func (c *cache) lockSlot(sl *slot, k Key) *Buf {
	c.refs.Add(1)
	c.opt.Metrics.Refs(1)
	t := sl.lock.Lock()
	return &Buf{c: c, s: sl, key: k, ticket: t}
}

// unref drops one reference under the owning shard's lock.
func (c *cache) unref(op string, sl *slot, k Key) {
	s := c.shards[sl.home]
	s.mu.Lock()
	if sl.refs <= 0 {
		s.mu.Unlock()
		c.fatal(op, k, ErrRefUnderflow)
	}
	sl.refs--
	s.mu.Unlock()

	c.refs.Add(-1)
	c.opt.Metrics.Refs(-1)
}

// ---- helpers ----

func (c *cache) now() uint64 { return c.tick.Add(1) }

// mustHold verifies that b is live and owns its slot lock.
func (c *cache) mustHold(op string, b *Buf) {
	switch {
	case b == nil:
		c.fatal(op, Key{}, ErrNotHeld)
	case b.dead:
		c.fatal(op, b.key, ErrReleased)
	case !b.s.lock.HeldBy(b.ticket):
		c.fatal(op, b.key, ErrNotHeld)
	}
}

// referenced counts slots with outstanding references.
func (c *cache) referenced() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for _, sl := range s.members {
			if sl.refs > 0 {
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

// fatal reports an unrecoverable condition and panics with *FatalError.
func (c *cache) fatal(op string, k Key, err error) {
	c.log.Error("block cache invariant violated", "op", op, "dev", k.Dev, "block", k.Block, "error", err)
	panic(&FatalError{Op: op, Key: k, Err: err})
}
