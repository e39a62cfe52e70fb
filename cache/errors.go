package cache

import "fmt"

type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrNoBuffers means every slot in every shard is referenced: more
	// blocks are held or pinned at once than the cache has slots.
	ErrNoBuffers = constError("cache: no buffers")
	// ErrNotHeld means a handle was used without holding its slot's lock.
	ErrNotHeld = constError("cache: buffer lock not held")
	// ErrReleased means a handle was used after Release.
	ErrReleased = constError("cache: buffer already released")
	// ErrRefUnderflow means a reference count would drop below zero.
	ErrRefUnderflow = constError("cache: reference count underflow")
	// ErrNotPinned means Unpin was called on a pin that is not outstanding.
	ErrNotPinned = constError("cache: unpin without matching pin")
	// ErrClosed is returned (or raised) for acquisitions after Close.
	ErrClosed = constError("cache: closed")
	// ErrBusy is returned by Close while blocks are still held or pinned.
	ErrBusy = constError("cache: buffers still referenced")
)

// FatalError is the panic value raised when the cache detects a sizing
// defect or caller misuse. Shared state is left untouched once a
// violation is detected, so the only sane reaction is to stop using the
// cache; hosts that want to log before exiting can recover it and match
// Err with errors.Is.
type FatalError struct {
	Op  string // "get", "read", "write", "release", "pin", "unpin", "data"
	Key Key
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("cache: %s %v: %v", e.Op, e.Key, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
