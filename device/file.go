//go:build unix

package device

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// File is a Device backed by one regular file (or raw block device node)
// per device id. Block b of a device lives at byte offset b*BlockSize.
// Reads past the end of the file return zeros; writes extend the file.
//
// I/O goes through pread/pwrite so that concurrent operations on
// different blocks of the same file never contend on a file offset.
type File struct {
	size int

	mu    sync.RWMutex
	files map[uint32]*os.File
}

// NewFile returns a File device with no attached backing files.
// size <= 0 selects DefaultBlockSize.
func NewFile(size int) *File {
	if size <= 0 {
		size = DefaultBlockSize
	}
	return &File{size: size, files: make(map[uint32]*os.File)}
}

// Attach opens (creating if needed) path as the backing store for dev.
func (f *File) Attach(dev uint32, path string) error {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("device: attach %d: %w", dev, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.files[dev]; ok {
		_ = old.Close()
	}
	f.files[dev] = fd
	return nil
}

// BlockSize implements Device.
func (f *File) BlockSize() int { return f.size }

// ReadBlock implements Device.
func (f *File) ReadBlock(dev uint32, block uint64, p []byte) error {
	if err := checkLen(p, f.size); err != nil {
		return err
	}
	return f.withFile(dev, func(fd int) error {
		off := int64(block) * int64(f.size)
		read := 0
		for read < len(p) {
			n, err := unix.Pread(fd, p[read:], off+int64(read))
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if err != nil {
				return fmt.Errorf("device: pread dev=%d block=%d: %w", dev, block, err)
			}
			if n == 0 {
				// Past EOF: the block was never written.
				clear(p[read:])
				break
			}
			read += n
		}
		return nil
	})
}

// WriteBlock implements Device.
func (f *File) WriteBlock(dev uint32, block uint64, p []byte) error {
	if err := checkLen(p, f.size); err != nil {
		return err
	}
	return f.withFile(dev, func(fd int) error {
		off := int64(block) * int64(f.size)
		written := 0
		for written < len(p) {
			n, err := unix.Pwrite(fd, p[written:], off+int64(written))
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if err != nil {
				return fmt.Errorf("device: pwrite dev=%d block=%d: %w", dev, block, err)
			}
			written += n
		}
		return nil
	})
}

// Sync flushes every attached file to stable storage.
func (f *File) Sync() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var firstErr error
	for dev, fd := range f.files {
		if err := unix.Fsync(int(fd.Fd())); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("device: fsync dev=%d: %w", dev, err)
		}
	}
	return firstErr
}

// Close syncs and closes all backing files. Operations that start after
// Close fail with ErrUnknownDevice.
func (f *File) Close() error {
	firstErr := f.Sync()

	f.mu.Lock()
	defer f.mu.Unlock()
	for dev, fd := range f.files {
		if err := fd.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.files, dev)
	}
	return firstErr
}

// withFile runs op on dev's descriptor under the read lock, so Close and
// Attach wait for in-flight operations instead of closing under them.
func (f *File) withFile(dev uint32, op func(fd int) error) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fd, ok := f.files[dev]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDevice, dev)
	}
	return op(int(fd.Fd()))
}

var _ Device = (*File)(nil)
