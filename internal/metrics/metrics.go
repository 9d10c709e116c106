// Package metrics exposes Prometheus collectors for decoder and dataset
// lifecycle activity.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "emd"

// Collector records decode and load activity. It satisfies emd.Recorder.
type Collector struct {
	decodes       *prometheus.CounterVec
	decodeSeconds *prometheus.HistogramVec
	loads         prometheus.Counter
	unloads       prometheus.Counter
	loadsRejected prometheus.Counter
	residentBytes prometheus.Gauge
}

// New creates a collector and registers it with reg. A nil reg registers
// with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decodes_total",
			Help:      "Instrument files decoded, by format and outcome.",
		}, []string{"format", "outcome"}),
		decodeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "decode_duration_seconds",
			Help:      "Time spent decoding instrument files.",
			Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 2.5, 10},
		}, []string{"format"}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset buffers materialized from a store.",
		}),
		unloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dataset_unloads_total",
			Help:      "Dataset buffers released.",
		}),
		loadsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dataset_loads_rejected_total",
			Help:      "Dataset loads refused by the memory ceiling.",
		}),
		residentBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "dataset_resident_bytes",
			Help:      "Bytes held by loaded dataset buffers.",
		}),
	}

	var err error
	if c.decodes, err = register(reg, c.decodes); err != nil {
		return nil, err
	}
	if c.decodeSeconds, err = register(reg, c.decodeSeconds); err != nil {
		return nil, err
	}
	if c.loads, err = register(reg, c.loads); err != nil {
		return nil, err
	}
	if c.unloads, err = register(reg, c.unloads); err != nil {
		return nil, err
	}
	if c.loadsRejected, err = register(reg, c.loadsRejected); err != nil {
		return nil, err
	}
	if c.residentBytes, err = register(reg, c.residentBytes); err != nil {
		return nil, err
	}
	return c, nil
}

// register registers col, reusing an identical collector already present in reg.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ObserveDecode records one decode attempt.
func (c *Collector) ObserveDecode(format string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.decodes.WithLabelValues(format, outcome).Inc()
	c.decodeSeconds.WithLabelValues(format).Observe(d.Seconds())
}

// DatasetLoaded records a buffer of n bytes becoming resident.
func (c *Collector) DatasetLoaded(n int64) {
	c.loads.Inc()
	c.residentBytes.Add(float64(n))
}

// DatasetUnloaded records a buffer of n bytes being released.
func (c *Collector) DatasetUnloaded(n int64) {
	c.unloads.Inc()
	c.residentBytes.Sub(float64(n))
}

// LoadRejected records a load refused for capacity.
func (c *Collector) LoadRejected() {
	c.loadsRejected.Inc()
}
