// Package metrics records application metrics in a Prometheus registry. Metrics are
// registered by name up front and recorded with alternating label key/value pairs.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	errMetricNotRegistered = errors.New("[metrics] metric not registered")
	errMetricExists        = errors.New("[metrics] metric already registered")
	errOddLabels           = errors.New("[metrics] labels must be key value pairs")
	errLabelMismatch       = errors.New("[metrics] label keys differ from first use")
)

// Manager registers and records metrics.
type Manager interface {
	NewHistogram(name, desc string, buckets ...float64)
	NewCounter(name, desc string)
	RecordHistogram(ctx context.Context, name string, value float64, labels ...string)
	IncrementCounter(ctx context.Context, name string, labels ...string)
}

type logger interface {
	Errorf(format string, args ...any)
}

type metric struct {
	desc    string
	buckets []float64
	keys    []string

	histogram *prometheus.HistogramVec
	counter   *prometheus.CounterVec
}

type manager struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	metrics  map[string]*metric
	logger   logger
}

// NewMetricsManager returns a Manager recording into registry. Recording errors are
// reported to logger and never fail the caller.
func NewMetricsManager(registry *prometheus.Registry, logger logger) Manager {
	return &manager{registry: registry, metrics: make(map[string]*metric), logger: logger}
}

// DefaultBuckets are the histogram buckets in milliseconds used when none are given.
var DefaultBuckets = []float64{.05, .075, .1, .125, .15, .2, .3, .5, .75, 1, 2, 3, 4, 5, 7.5, 10, 30, 60, 120, 300}

func (m *manager) NewHistogram(name, desc string, buckets ...float64) {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}

	m.add(name, &metric{desc: desc, buckets: buckets})
}

func (m *manager) NewCounter(name, desc string) {
	m.add(name, &metric{desc: desc})
}

func (m *manager) add(name string, mt *metric) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.metrics[name]; ok {
		m.logger.Errorf("%v: %s", errMetricExists, name)
		return
	}

	m.metrics[name] = mt
}

func (m *manager) RecordHistogram(_ context.Context, name string, value float64, labels ...string) {
	h, err := m.vec(name, labels, true)
	if err != nil {
		m.logger.Errorf("record histogram %s: %v", name, err)
		return
	}

	h.(*prometheus.HistogramVec).WithLabelValues(values(labels)...).Observe(value)
}

func (m *manager) IncrementCounter(_ context.Context, name string, labels ...string) {
	c, err := m.vec(name, labels, false)
	if err != nil {
		m.logger.Errorf("increment counter %s: %v", name, err)
		return
	}

	c.(*prometheus.CounterVec).WithLabelValues(values(labels)...).Inc()
}

// vec returns the collector of name, creating it with the label keys of its first use.
func (m *manager) vec(name string, labels []string, histogram bool) (prometheus.Collector, error) {
	if len(labels)%2 != 0 {
		return nil, errOddLabels
	}

	keys := make([]string, 0, len(labels)/2)
	for i := 0; i < len(labels); i += 2 {
		keys = append(keys, labels[i])
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.metrics[name]
	if !ok || (histogram && mt.buckets == nil) || (!histogram && mt.buckets != nil) {
		return nil, errMetricNotRegistered
	}

	if mt.keys != nil {
		if !slices.Equal(mt.keys, keys) {
			return nil, fmt.Errorf("%w: %v", errLabelMismatch, keys)
		}

		if histogram {
			return mt.histogram, nil
		}

		return mt.counter, nil
	}

	var c prometheus.Collector

	if histogram {
		mt.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: mt.desc, Buckets: mt.buckets}, keys)
		c = mt.histogram
	} else {
		mt.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: mt.desc}, keys)
		c = mt.counter
	}

	if err := m.registry.Register(c); err != nil {
		return nil, err
	}

	mt.keys = keys

	return c, nil
}

func values(labels []string) []string {
	out := make([]string, 0, len(labels)/2)
	for i := 1; i < len(labels); i += 2 {
		out = append(out, labels[i])
	}

	return out
}
