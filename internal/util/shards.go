package util

// DefaultShards is the shard count used when none is configured.
// A prime spreads sequential block numbers evenly and keeps strided
// access patterns (every 2nd, 4th, 8th block) from piling onto a few shards.
const DefaultShards = 17

// MaxShards bounds the shard count; beyond this the cross-shard search
// costs more than the contention it saves.
const MaxShards = 1021

// ShardCount normalizes a requested shard count: n <= 0 selects
// DefaultShards, 1 stays a single shard, anything else is rounded up
// to a prime and clamped to MaxShards.
func ShardCount(n int) int {
	switch {
	case n <= 0:
		return DefaultShards
	case n == 1:
		return 1
	}
	if n >= MaxShards {
		return MaxShards
	}
	return int(NextPrime(uint64(n)))
}

// ShardIndex maps a block number to its home shard.
// The mapping is a plain modulo so that it stays stable for the
// lifetime of a slot: a slot's block number alone tells which shard
// owns it.
func ShardIndex(block uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	return int(block % uint64(shards))
}
