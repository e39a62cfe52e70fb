package prom

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/blockcache/cache"
	"github.com/IvanBrykalov/blockcache/device"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

// labeled returns the value of the metric in mf whose labels include want.
func labeled(mf *dto.MetricFamily, want map[string]string) float64 {
	for _, m := range mf.GetMetric() {
		match := 0
		for _, lp := range m.GetLabel() {
			if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
				match++
			}
		}
		if match == len(want) {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func TestAdapter_WiredIntoCache(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg, "blockcache", "test", prometheus.Labels{"app": "unit"})

	dev := device.NewMem(64)
	c := cache.New(cache.Options{Slots: 2, Shards: 2, Device: dev, Metrics: m})

	b, err := c.Read(0, 1) // miss, stolen from shard 0
	require.NoError(t, err)
	require.NoError(t, c.Write(b))
	p := c.Pin(b)
	c.Release(b)

	b, err = c.Read(0, 1) // hit
	require.NoError(t, err)
	c.Release(b)

	dev.FailNext(errors.New("eio"))
	_, err = c.Read(0, 2) // local miss, failed read
	require.Error(t, err)

	mfs := gather(t, reg)
	assert.Equal(t, 1.0, mfs["blockcache_test_hits_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 2.0, mfs["blockcache_test_misses_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, labeled(mfs["blockcache_test_evictions_total"], map[string]string{"reason": "steal"}))
	assert.Equal(t, 1.0, labeled(mfs["blockcache_test_evictions_total"], map[string]string{"reason": "local"}))

	io := mfs["blockcache_test_device_io_total"]
	assert.Equal(t, 1.0, labeled(io, map[string]string{"op": "read", "result": "ok"}))
	assert.Equal(t, 1.0, labeled(io, map[string]string{"op": "read", "result": "error"}))
	assert.Equal(t, 1.0, labeled(io, map[string]string{"op": "write", "result": "ok"}))

	// Only the pin is outstanding.
	assert.Equal(t, 1.0, mfs["blockcache_test_referenced_slots"].GetMetric()[0].GetGauge().GetValue())
	c.Unpin(p)
	mfs = gather(t, reg)
	assert.Zero(t, mfs["blockcache_test_referenced_slots"].GetMetric()[0].GetGauge().GetValue())

	for _, lp := range mfs["blockcache_test_hits_total"].GetMetric()[0].GetLabel() {
		if lp.GetName() == "app" {
			assert.Equal(t, "unit", lp.GetValue())
		}
	}
}

func TestAdapter_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg, "blockcache", "dup", nil)
	assert.Panics(t, func() { New(reg, "blockcache", "dup", nil) })
}
