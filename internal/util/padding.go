// Package util contains internal helpers (shard math, primes, padding).
//
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// CacheLinePad separates hot fields into distinct cache lines.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedCounter is an atomic uint64 padded to exactly one cache line.
// Shards keep their hit/miss/steal counters in these so that
// goroutines hammering different shards do not share lines.
type PaddedCounter struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// PaddedGauge is the signed counterpart of PaddedCounter.
type PaddedGauge struct {
	atomic.Int64
	_ [CacheLineSize - 8]byte
}

// Compile-time size checks (must be exactly one cache line).
var (
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedCounter{}))]byte
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedGauge{}))]byte
)
