package device

import (
	"context"
	"io"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottleConfig bounds the I/O a Throttle lets through.
type ThrottleConfig struct {
	// IOPS is the sustained operation rate. 0 disables rate limiting.
	IOPS int
	// Burst is the token bucket size; 0 means IOPS.
	Burst int
	// QueueDepth caps concurrently executing operations. 0 means unbounded.
	QueueDepth int64
}

// Throttle wraps a Device to emulate a slower disk: operations wait for
// a rate-limiter token and for a free slot in a bounded queue.
type Throttle struct {
	Device
	limiter *rate.Limiter       // nil if unlimited
	queue   *semaphore.Weighted // nil if unbounded
}

// NewThrottle wraps d according to cfg.
func NewThrottle(d Device, cfg ThrottleConfig) *Throttle {
	t := &Throttle{Device: d}
	if cfg.IOPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.IOPS
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.IOPS), burst)
	}
	if cfg.QueueDepth > 0 {
		t.queue = semaphore.NewWeighted(cfg.QueueDepth)
	}
	return t
}

// ReadBlock implements Device.
func (t *Throttle) ReadBlock(dev uint32, block uint64, p []byte) error {
	release, err := t.admit()
	if err != nil {
		return err
	}
	defer release()
	return t.Device.ReadBlock(dev, block, p)
}

// WriteBlock implements Device.
func (t *Throttle) WriteBlock(dev uint32, block uint64, p []byte) error {
	release, err := t.admit()
	if err != nil {
		return err
	}
	defer release()
	return t.Device.WriteBlock(dev, block, p)
}

// admit waits for a token and a queue slot. Device calls are synchronous
// and carry no context, so waits are unbounded.
func (t *Throttle) admit() (func(), error) {
	ctx := context.Background()
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if t.queue == nil {
		return func() {}, nil
	}
	if err := t.queue.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { t.queue.Release(1) }, nil
}

// Close closes the wrapped device if it is an io.Closer.
func (t *Throttle) Close() error {
	if c, ok := t.Device.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
