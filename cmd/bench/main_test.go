package main

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Bad configuration is reported as an error, not a process exit.
func TestRun_RejectsTooFewSlots(t *testing.T) {
	err := run(config{slots: 3, workers: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 4")
}

// The file device's temp directory is removed by its cleanup.
func TestOpenDevice_FileCleanupRemovesTempDir(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	dev, cleanup, err := openDevice(context.Background(), config{device: "file", bsize: 512})
	require.NoError(t, err)
	assert.Equal(t, 512, dev.BlockSize())
	require.NoError(t, dev.WriteBlock(0, 1, make([]byte, 512)))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, dev.(io.Closer).Close())
	cleanup()

	entries, err = os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenDevice_UnknownKind(t *testing.T) {
	_, _, err := openDevice(context.Background(), config{device: "tape"})
	require.Error(t, err)
}
