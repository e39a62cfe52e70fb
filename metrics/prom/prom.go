// Package prom exports cache.Metrics to Prometheus.
package prom

import (
	"github.com/IvanBrykalov/blockcache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	deviceIO *prometheus.CounterVec
	refs     prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Block acquisitions served from a cached slot",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Block acquisitions that recycled a slot",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Recycled slots by origin shard",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		deviceIO: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "device_io_total",
				Help:        "Device block operations by kind and outcome",
				ConstLabels: constLabels,
			},
			[]string{"op", "result"},
		),
		refs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "referenced_slots",
			Help:        "Outstanding references (held buffers plus pins)",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.deviceIO, a.refs)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(reason(r)).Inc()
}

// DeviceIO counts one device call.
func (a *Adapter) DeviceIO(op cache.IOOp, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	a.deviceIO.WithLabelValues(opName(op), res).Inc()
}

// Refs moves the reference gauge.
func (a *Adapter) Refs(delta int) { a.refs.Add(float64(delta)) }

// reason maps EvictReason to a stable label value.
func reason(r cache.EvictReason) string {
	if r == cache.EvictSteal {
		return "steal"
	}
	return "local"
}

func opName(op cache.IOOp) string {
	if op == cache.IOWrite {
		return "write"
	}
	return "read"
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
