// Package device defines the block-device collaborator consumed by the
// cache and ships a few implementations: a sparse in-memory device, a
// file-backed device using positional I/O, and a throttling wrapper.
// An object-store backed device lives in the objstore subpackage.
package device

import (
	"errors"
	"fmt"
)

// DefaultBlockSize matches the classic 1 KiB filesystem block.
const DefaultBlockSize = 1024

// Device reads and writes fixed-size blocks addressed by
// (device id, block number). Calls are synchronous; p is always
// exactly BlockSize() bytes. Implementations must be safe for
// concurrent use.
type Device interface {
	BlockSize() int
	ReadBlock(dev uint32, block uint64, p []byte) error
	WriteBlock(dev uint32, block uint64, p []byte) error
}

// ErrShortBuffer is returned when p is not exactly one block.
var ErrShortBuffer = errors.New("device: buffer is not one block")

// ErrUnknownDevice is returned for a device id with no backing store.
var ErrUnknownDevice = errors.New("device: unknown device")

func checkLen(p []byte, size int) error {
	if len(p) != size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrShortBuffer, len(p), size)
	}
	return nil
}
