// Package sleeplock provides the blocking per-block lock used by the cache
// to serialize access to one slot's contents.
//
// Go has no notion of "the current goroutine", so ownership is expressed
// with tickets: Lock returns a ticket that is unique for the lifetime of
// the lock, and the holder presents it back to Unlock. HeldBy lets callers
// verify a handle still owns the lock before touching shared state.
package sleeplock

import (
	"sync"
	"sync/atomic"
)

// Lock is a blocking mutual-exclusion lock with ticket ownership.
// The zero value is an unlocked lock.
type Lock struct {
	mu    sync.Mutex
	owner atomic.Uint64 // ticket of the current holder; 0 when free
	seq   uint64        // guarded by mu
}

// Lock blocks until the lock is available and returns the holder's ticket.
// Tickets are never zero and never reused.
func (l *Lock) Lock() uint64 {
	l.mu.Lock()
	l.seq++
	t := l.seq
	l.owner.Store(t)
	return t
}

// HeldBy reports whether ticket t identifies the current holder.
func (l *Lock) HeldBy(t uint64) bool {
	return t != 0 && l.owner.Load() == t
}

// Locked reports whether anyone holds the lock. Only useful for diagnostics.
func (l *Lock) Locked() bool { return l.owner.Load() != 0 }

// Unlock releases the lock held under ticket t.
// Unlocking with a ticket that does not own the lock panics.
func (l *Lock) Unlock(t uint64) {
	if t == 0 || !l.owner.CompareAndSwap(t, 0) {
		panic("sleeplock: unlock of lock not held by ticket")
	}
	l.mu.Unlock()
}
