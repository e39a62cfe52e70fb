package device

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMem_UnwrittenBlocksReadZero(t *testing.T) {
	t.Parallel()

	m := NewMem(64)
	p := bytes.Repeat([]byte{0xff}, 64)
	require.NoError(t, m.ReadBlock(1, 42, p))
	assert.Equal(t, make([]byte, 64), p)
	assert.Equal(t, uint64(1), m.Reads())
}

func TestMem_WriteThenRead(t *testing.T) {
	t.Parallel()

	m := NewMem(16)
	in := []byte("0123456789abcdef")
	require.NoError(t, m.WriteBlock(0, 7, in))

	// The device keeps its own copy.
	in[0] = 'X'

	out := make([]byte, 16)
	require.NoError(t, m.ReadBlock(0, 7, out))
	assert.Equal(t, []byte("0123456789abcdef"), out)

	// Same block number on another device is independent.
	require.NoError(t, m.ReadBlock(1, 7, out))
	assert.Equal(t, make([]byte, 16), out)

	got, ok := m.Peek(0, 7)
	require.True(t, ok)
	assert.Equal(t, []byte("0123456789abcdef"), got)
	assert.Equal(t, uint64(1), m.Writes())
	assert.Equal(t, uint64(2), m.Reads())
}

func TestMem_FailNextIsOneShot(t *testing.T) {
	t.Parallel()

	m := NewMem(8)
	boom := errors.New("boom")
	m.FailNext(boom)

	p := make([]byte, 8)
	require.ErrorIs(t, m.ReadBlock(0, 1, p), boom)
	require.NoError(t, m.ReadBlock(0, 1, p))
	assert.Equal(t, uint64(1), m.Reads(), "failed read must not be counted")
}

func TestMem_RejectsWrongBufferSize(t *testing.T) {
	t.Parallel()

	m := NewMem(8)
	require.ErrorIs(t, m.ReadBlock(0, 0, make([]byte, 4)), ErrShortBuffer)
	require.ErrorIs(t, m.WriteBlock(0, 0, make([]byte, 9)), ErrShortBuffer)
	assert.Equal(t, DefaultBlockSize, NewMem(0).BlockSize())
}
