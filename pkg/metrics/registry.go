// Package metrics implements the ambient request/connection counters
// carried from docker/model-runner's own metrics stack: plain
// github.com/prometheus/client_model data-transfer-object types, filled in
// by hand the way leo-pony-model-runner's AggregatedMetricsHandler builds
// and merges dto.MetricFamily values, and serialized with
// github.com/prometheus/common/expfmt's text encoder. There is no
// github.com/prometheus/client_golang dependency anywhere in the corpus
// this was grounded on, so counters and gauges here are hand-rolled atomic
// types rather than reused from that (absent) library, matching the shape
// the teacher's own vendored metrics package settled on.
package metrics

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Collector is anything that can describe itself as Prometheus metric
// families, the minimal surface Registry needs to gather and encode.
type Collector interface {
	collect() []*dto.MetricFamily
}

// Registry owns the named collectors exposed by one process's /metrics
// endpoint, mirroring the map[string]*dto.MetricFamily
// AggregatedMetricsHandler builds up from multiple runners, but built from
// this process's own counters instead of fetched over HTTP.
type Registry struct {
	mu         sync.Mutex
	collectors []Collector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors = append(r.collectors, c)
}

// Gather collects every registered collector's families in registration
// order, the local equivalent of AggregatedMetricsHandler's
// collectAndAggregateMetrics (minus the network fetch and label-merge
// steps, since everything here is already in-process).
func (r *Registry) Gather() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	families := make([]*dto.MetricFamily, 0, len(r.collectors))
	for _, c := range r.collectors {
		families = append(families, c.collect()...)
	}
	return families
}

// WriteTo encodes every registered family to w in Prometheus text
// exposition format, the same expfmt.NewEncoder call
// writeAggregatedMetrics makes, just against a single local family set
// instead of one merged from remote runners.
func (r *Registry) WriteTo(w io.Writer) error {
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range r.Gather() {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", family.GetName(), err)
		}
	}
	return nil
}

// labelKey joins label values into a stable map key; label names are
// fixed per vec at construction time so only the values need to be
// joined here.
func labelKey(values []string) string {
	return strings.Join(values, "\xff")
}

// Counter is a single monotonically increasing value with no labels, the
// degenerate case of CounterVec used for totals that don't vary by label.
type Counter struct {
	name string
	help string
	bits uint64
}

// NewCounter builds and registers a labelless counter on r.
func (r *Registry) NewCounter(name, help string) *Counter {
	c := &Counter{name: name, help: help}
	r.register(c)
	return c
}

// Add increases the counter by delta, which must be non-negative.
func (c *Counter) Add(delta float64) {
	if delta < 0 {
		return
	}
	for {
		old := atomic.LoadUint64(&c.bits)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(&c.bits, old, next) {
			return
		}
	}
}

// Inc increases the counter by one.
func (c *Counter) Inc() { c.Add(1) }

// Value returns the counter's current value.
func (c *Counter) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.bits))
}

func (c *Counter) collect() []*dto.MetricFamily {
	value := c.Value()
	mtype := dto.MetricType_COUNTER
	return []*dto.MetricFamily{{
		Name: &c.name,
		Help: &c.help,
		Type: &mtype,
		Metric: []*dto.Metric{{
			Counter: &dto.Counter{Value: &value},
		}},
	}}
}

// Gauge is a single value that can move up or down, e.g. the number of
// connections currently open.
type Gauge struct {
	name string
	help string
	bits uint64
}

// NewGauge builds and registers a labelless gauge on r.
func (r *Registry) NewGauge(name, help string) *Gauge {
	g := &Gauge{name: name, help: help}
	r.register(g)
	return g
}

// Set assigns v to the gauge.
func (g *Gauge) Set(v float64) {
	atomic.StoreUint64(&g.bits, math.Float64bits(v))
}

// Add adjusts the gauge by delta, which may be negative.
func (g *Gauge) Add(delta float64) {
	for {
		old := atomic.LoadUint64(&g.bits)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(&g.bits, old, next) {
			return
		}
	}
}

// Inc increments the gauge by one.
func (g *Gauge) Inc() { g.Add(1) }

// Dec decrements the gauge by one.
func (g *Gauge) Dec() { g.Add(-1) }

// Value returns the gauge's current value.
func (g *Gauge) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&g.bits))
}

func (g *Gauge) collect() []*dto.MetricFamily {
	value := g.Value()
	mtype := dto.MetricType_GAUGE
	return []*dto.MetricFamily{{
		Name: &g.name,
		Help: &g.help,
		Type: &mtype,
		Metric: []*dto.Metric{{
			Gauge: &dto.Gauge{Value: &value},
		}},
	}}
}

// CounterVec is a counter family keyed by a fixed set of label names, the
// shape request_total/method/status counters need: one series per
// distinct label-value combination, all sharing one family name and help
// string the way AggregatedMetricsHandler.addLabelsAndMerge treats every
// metric under one family.
type CounterVec struct {
	mu         sync.Mutex
	name       string
	help       string
	labelNames []string
	values     map[string]*countEntry
}

type countEntry struct {
	labelValues []string
	bits        uint64
}

// NewCounterVec builds and registers a counter family with the given
// label names on r.
func (r *Registry) NewCounterVec(name, help string, labelNames ...string) *CounterVec {
	v := &CounterVec{
		name:       name,
		help:       help,
		labelNames: labelNames,
		values:     make(map[string]*countEntry),
	}
	r.register(v)
	return v
}

// WithLabelValues returns the counter for this exact label-value
// combination, creating it at zero on first use.
func (v *CounterVec) WithLabelValues(values ...string) *labeledCounter {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := labelKey(values)
	entry, ok := v.values[key]
	if !ok {
		entry = &countEntry{labelValues: append([]string(nil), values...)}
		v.values[key] = entry
	}
	return &labeledCounter{entry: entry}
}

type labeledCounter struct {
	entry *countEntry
}

// Inc increases this label combination's counter by one.
func (c *labeledCounter) Inc() { c.Add(1) }

// Add increases this label combination's counter by delta.
func (c *labeledCounter) Add(delta float64) {
	if delta < 0 {
		return
	}
	for {
		old := atomic.LoadUint64(&c.entry.bits)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(&c.entry.bits, old, next) {
			return
		}
	}
}

// Value returns this label combination's current count.
func (c *labeledCounter) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.entry.bits))
}

func (v *CounterVec) collect() []*dto.MetricFamily {
	v.mu.Lock()
	defer v.mu.Unlock()

	mtype := dto.MetricType_COUNTER
	family := &dto.MetricFamily{Name: &v.name, Help: &v.help, Type: &mtype}
	for _, entry := range v.values {
		value := math.Float64frombits(atomic.LoadUint64(&entry.bits))
		family.Metric = append(family.Metric, &dto.Metric{
			Label:   labelPairs(v.labelNames, entry.labelValues),
			Counter: &dto.Counter{Value: &value},
		})
	}
	return []*dto.MetricFamily{family}
}

func labelPairs(names, values []string) []*dto.LabelPair {
	pairs := make([]*dto.LabelPair, 0, len(names))
	for i, name := range names {
		n, v := name, values[i]
		pairs = append(pairs, &dto.LabelPair{Name: &n, Value: &v})
	}
	return pairs
}
