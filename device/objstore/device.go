package objstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/IvanBrykalov/blockcache/device"
	"github.com/IvanBrykalov/blockcache/internal/codec"
)

// Options configures an object-store device.
type Options struct {
	// Prefix namespaces all block objects (e.g. one filesystem image).
	Prefix string
	// BlockSize of the device; 0 selects device.DefaultBlockSize.
	BlockSize int
	// Compression applied to each block object.
	Compression codec.Type
	// Timeout bounds a single Get or Put; 0 means 30s.
	Timeout time.Duration
}

// Device is a device.Device whose blocks are objects in a Store.
type Device struct {
	store Store
	opt   Options

	mu      sync.RWMutex
	present map[uint32]*roaring64.Bitmap
}

// Open lists opt.Prefix to learn which blocks exist and returns the device.
func Open(ctx context.Context, store Store, opt Options) (*Device, error) {
	if opt.BlockSize <= 0 {
		opt.BlockSize = device.DefaultBlockSize
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 30 * time.Second
	}
	opt.Prefix = cleanPrefix(opt.Prefix)
	d := &Device{
		store:   store,
		opt:     opt,
		present: make(map[uint32]*roaring64.Bitmap),
	}

	keys, err := store.List(ctx, d.root())
	if err != nil {
		return nil, fmt.Errorf("objstore: list %q: %w", opt.Prefix, err)
	}
	for _, k := range keys {
		dev, block, ok := d.parseKey(k)
		if !ok {
			continue // foreign object under our prefix
		}
		d.bitmap(dev).Add(block)
	}
	return d, nil
}

// BlockSize implements device.Device.
func (d *Device) BlockSize() int { return d.opt.BlockSize }

// ReadBlock implements device.Device.
func (d *Device) ReadBlock(dev uint32, block uint64, p []byte) error {
	if len(p) != d.opt.BlockSize {
		return fmt.Errorf("%w: got %d bytes, want %d", device.ErrShortBuffer, len(p), d.opt.BlockSize)
	}
	if !d.has(dev, block) {
		clear(p)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.opt.Timeout)
	defer cancel()

	data, err := d.store.Get(ctx, d.key(dev, block))
	if errors.Is(err, ErrNotFound) {
		// Deleted behind our back; treat as a hole.
		clear(p)
		return nil
	}
	if err != nil {
		return fmt.Errorf("objstore: get dev=%d block=%d: %w", dev, block, err)
	}
	if err := codec.Decode(d.opt.Compression, data, p); err != nil {
		return fmt.Errorf("objstore: dev=%d block=%d: %w", dev, block, err)
	}
	return nil
}

// WriteBlock implements device.Device.
func (d *Device) WriteBlock(dev uint32, block uint64, p []byte) error {
	if len(p) != d.opt.BlockSize {
		return fmt.Errorf("%w: got %d bytes, want %d", device.ErrShortBuffer, len(p), d.opt.BlockSize)
	}
	data, err := codec.Encode(d.opt.Compression, p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.opt.Timeout)
	defer cancel()

	if err := d.store.Put(ctx, d.key(dev, block), data); err != nil {
		return fmt.Errorf("objstore: put dev=%d block=%d: %w", dev, block, err)
	}

	d.mu.Lock()
	d.bitmap(dev).Add(block)
	d.mu.Unlock()
	return nil
}

// Blocks returns how many blocks of dev exist in the store.
func (d *Device) Blocks(dev uint32) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if bm, ok := d.present[dev]; ok {
		return bm.GetCardinality()
	}
	return 0
}

func (d *Device) has(dev uint32, block uint64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	bm, ok := d.present[dev]
	return ok && bm.Contains(block)
}

// bitmap returns dev's presence bitmap, creating it. Callers hold mu
// for writing (or own d exclusively, as in Open).
func (d *Device) bitmap(dev uint32) *roaring64.Bitmap {
	bm, ok := d.present[dev]
	if !ok {
		bm = roaring64.New()
		d.present[dev] = bm
	}
	return bm
}

// cleanPrefix canonicalizes p so that key, root and parseKey agree on it.
func cleanPrefix(p string) string {
	if p == "" {
		return ""
	}
	if p = path.Clean(p); p == "." {
		return ""
	}
	return p
}

func (d *Device) root() string {
	if d.opt.Prefix == "" {
		return ""
	}
	return strings.TrimSuffix(d.opt.Prefix, "/") + "/"
}

func (d *Device) key(dev uint32, block uint64) string {
	return path.Join(d.opt.Prefix, strconv.FormatUint(uint64(dev), 10), strconv.FormatUint(block, 10))
}

func (d *Device) parseKey(k string) (uint32, uint64, bool) {
	rest := strings.TrimPrefix(k, d.root())
	devStr, blockStr, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, false
	}
	dev, err := strconv.ParseUint(devStr, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	block, err := strconv.ParseUint(blockStr, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return uint32(dev), block, true
}

var _ device.Device = (*Device)(nil)
