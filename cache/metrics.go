package cache

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                 {}
func (NoopMetrics) Miss()                {}
func (NoopMetrics) Evict(EvictReason)    {}
func (NoopMetrics) DeviceIO(IOOp, error) {}
func (NoopMetrics) Refs(int)             {}

var _ Metrics = NoopMetrics{}
