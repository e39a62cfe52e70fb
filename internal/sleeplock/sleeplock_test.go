package sleeplock

import (
	"testing"
	"time"
)

func TestLock_TicketOwnership(t *testing.T) {
	t.Parallel()

	var l Lock
	t1 := l.Lock()
	if !l.HeldBy(t1) {
		t.Fatal("holder must own the lock")
	}
	if l.HeldBy(0) || l.HeldBy(t1+1) {
		t.Fatal("foreign tickets must not own the lock")
	}
	l.Unlock(t1)
	if l.HeldBy(t1) || l.Locked() {
		t.Fatal("lock must be free after Unlock")
	}

	t2 := l.Lock()
	if t2 == t1 {
		t.Fatal("tickets must not be reused")
	}
	if l.HeldBy(t1) {
		t.Fatal("stale ticket must not own a re-acquired lock")
	}
	l.Unlock(t2)
}

// A second locker blocks until the first unlocks.
func TestLock_Blocks(t *testing.T) {
	t.Parallel()

	var l Lock
	first := l.Lock()

	acquired := make(chan uint64)
	go func() { acquired <- l.Lock() }()

	select {
	case <-acquired:
		t.Fatal("second Lock must block while the lock is held")
	case <-time.After(20 * time.Millisecond):
	}

	l.Unlock(first)
	second := <-acquired
	if !l.HeldBy(second) {
		t.Fatal("second locker must own the lock")
	}
	l.Unlock(second)
}

func TestLock_UnlockStaleTicketPanics(t *testing.T) {
	t.Parallel()

	var l Lock
	tk := l.Lock()
	l.Unlock(tk)

	defer func() {
		if recover() == nil {
			t.Fatal("Unlock with a stale ticket must panic")
		}
	}()
	l.Unlock(tk)
}
