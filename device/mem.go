package device

import (
	"sync"
	"sync/atomic"
)

type memKey struct {
	dev   uint32
	block uint64
}

// Mem is a sparse in-memory Device. Blocks that were never written read
// as zeros. It counts operations and can inject a single failure, which
// makes it the device of choice for tests.
type Mem struct {
	size int

	mu     sync.RWMutex
	blocks map[memKey][]byte

	fail atomic.Pointer[error] // returned by the next operation, then cleared

	reads  atomic.Uint64
	writes atomic.Uint64
}

// NewMem returns an empty in-memory device; size <= 0 selects DefaultBlockSize.
func NewMem(size int) *Mem {
	if size <= 0 {
		size = DefaultBlockSize
	}
	return &Mem{size: size, blocks: make(map[memKey][]byte)}
}

// BlockSize implements Device.
func (m *Mem) BlockSize() int { return m.size }

// ReadBlock implements Device.
func (m *Mem) ReadBlock(dev uint32, block uint64, p []byte) error {
	if err := checkLen(p, m.size); err != nil {
		return err
	}
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.reads.Add(1)

	m.mu.RLock()
	b, ok := m.blocks[memKey{dev, block}]
	if ok {
		copy(p, b)
	}
	m.mu.RUnlock()
	if !ok {
		clear(p)
	}
	return nil
}

// WriteBlock implements Device.
func (m *Mem) WriteBlock(dev uint32, block uint64, p []byte) error {
	if err := checkLen(p, m.size); err != nil {
		return err
	}
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.writes.Add(1)

	k := memKey{dev, block}
	m.mu.Lock()
	b, ok := m.blocks[k]
	if !ok {
		b = make([]byte, m.size)
		m.blocks[k] = b
	}
	copy(b, p)
	m.mu.Unlock()
	return nil
}

// FailNext makes the next ReadBlock or WriteBlock return err.
func (m *Mem) FailNext(err error) { m.fail.Store(&err) }

// Reads returns the number of successful block reads.
func (m *Mem) Reads() uint64 { return m.reads.Load() }

// Writes returns the number of successful block writes.
func (m *Mem) Writes() uint64 { return m.writes.Load() }

// Peek copies the stored content of a block without counting a read.
// The boolean reports whether the block was ever written.
func (m *Mem) Peek(dev uint32, block uint64) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[memKey{dev, block}]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

func (m *Mem) takeFailure() error {
	if p := m.fail.Swap(nil); p != nil {
		return *p
	}
	return nil
}

var _ Device = (*Mem)(nil)
