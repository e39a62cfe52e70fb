// Package cache provides a fixed-capacity, sharded cache of disk blocks
// that sits between a filesystem layer and a block device.
//
// Design
//
//   - Slots: a fixed arena of block-sized buffers allocated in New. Nothing
//     is allocated afterwards; slots are recycled as blocks come and go.
//
//   - Shards: each shard owns a subset of the slots and guards their
//     metadata (block key, reference count, recency stamp) with its own
//     mutex. A block's shard is its block number modulo the shard count,
//     which is prime (17 by default).
//
//   - Exclusive access: every slot has a blocking lock. Read/Get return a
//     Buf holding that lock; only one caller works on a block at a time.
//     The shard lock is always released before the slot lock is taken.
//
//   - Eviction: on a miss the shard's policy (LRU by default) picks the
//     least recently acquired unreferenced slot. When every slot in the
//     shard is referenced, the other shards are try-locked in turn and an
//     unreferenced slot is moved over. Locked shards are skipped rather than
//     waited for, so concurrent searches cannot deadlock.
//
//   - Pinning: Pin keeps a block resident after its Buf is released, e.g.
//     for blocks referenced by an in-flight log transaction.
//
//   - Failure model: device errors are returned. Running out of slots and
//     protocol misuse (double release, writing an unheld buffer, unbalanced
//     unpin) panic with *FatalError; the cache is not usable afterwards.
//
// Basic usage
//
//	dev := device.NewMem(1024)
//	c := cache.New(cache.Options{Slots: 30, Device: dev})
//
//	b, err := c.Read(1, 42)
//	if err != nil {
//	    return err
//	}
//	copy(b.Data(), "hello")
//	err = c.Write(b)
//	c.Release(b)
//
// Exporting metrics (Prometheus adapter)
//
//	m := prom.New(nil, "blockcache", "fs", nil) // implements Metrics
//	c := cache.New(cache.Options{Slots: 30, Device: dev, Metrics: m})
package cache
