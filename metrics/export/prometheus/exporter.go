package prometheus

import (
	"net/http"

	"github.com/MrEthical07/clubAuth"
	"github.com/MrEthical07/clubAuth/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is what the exporter reads on every scrape. *clubAuth.Engine
// implements it.
type MetricsSource interface {
	MetricsSnapshot() clubAuth.MetricsSnapshot
	AuditDropped() uint64
	NotifyDropped() uint64
}

// Collector adapts engine snapshots to a prometheus.Collector. Values are
// read at scrape time; nothing is cached between scrapes.
type Collector struct {
	source MetricsSource

	counters      []counterDesc
	histograms    []histogramDesc
	auditDropped  *prometheus.Desc
	notifyDropped *prometheus.Desc
	bounds        []float64
}

type counterDesc struct {
	id   clubAuth.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   clubAuth.MetricID
	desc *prometheus.Desc
}

// NewCollector builds a collector over source.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source: source,
		auditDropped: prometheus.NewDesc(internaldefs.AuditDroppedName,
			"Dropped audit events due to dispatcher backpressure.", nil, nil),
		notifyDropped: prometheus.NewDesc(internaldefs.NotifyDroppedName,
			"Notifications dropped because the delivery queue was full.", nil, nil),
		bounds: internaldefs.UpperBounds(),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	for _, hd := range c.histograms {
		ch <- hd.desc
	}
	ch <- c.auditDropped
	ch <- c.notifyDropped
}

// Collect implements prometheus.Collector. Disabled metrics export nothing
// from the snapshot; the drop counters are always present.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for _, cd := range c.counters {
		v, ok := snapshot.Counters[cd.id]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(v))
	}

	for _, hd := range c.histograms {
		raw, ok := snapshot.Histograms[hd.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(c.bounds))
		for i, le := range c.bounds {
			buckets[le] = cumulative[i]
		}
		// Sum is not tracked by the engine.
		ch <- prometheus.MustNewConstHistogram(hd.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
	ch <- prometheus.MustNewConstMetric(c.notifyDropped, prometheus.CounterValue, float64(c.source.NotifyDropped()))
}

// Exporter serves engine metrics from its own registry.
type Exporter struct {
	registry *prometheus.Registry
}

// NewExporter registers a [Collector] for source. With runtime set, the Go
// runtime and process collectors are registered too.
func NewExporter(source MetricsSource, runtime bool) (*Exporter, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		return nil, err
	}
	if runtime {
		if err := reg.Register(collectors.NewGoCollector()); err != nil {
			return nil, err
		}
		if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, err
		}
	}
	return &Exporter{registry: reg}, nil
}

// Registry exposes the underlying registry for extra collectors.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
