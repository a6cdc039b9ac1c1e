package searchsync

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface using Prometheus
type PrometheusMetrics struct {
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   prometheus.Registerer
}

// NewPrometheusMetrics creates a new Prometheus metrics instance.
// If registry is nil, uses the default Prometheus registerer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

// registerDefaultMetrics registers the standard searchsync metrics
func (p *PrometheusMetrics) registerDefaultMetrics() {
	p.counters[MetricIndexUpdate] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "index",
			Name:      "updates_total",
			Help:      "Total number of documents written to the search index",
		},
		[]string{"entity_type"},
	)

	p.counters[MetricIndexRemove] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "index",
			Name:      "removals_total",
			Help:      "Total number of documents removed from the search index",
		},
		[]string{"entity_type"},
	)

	p.counters[MetricIndexErrors] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "index",
			Name:      "errors_total",
			Help:      "Total number of index update failures",
		},
		[]string{"entity_type"},
	)

	p.counters[MetricIndexSkipped] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "index",
			Name:      "skipped_total",
			Help:      "Total number of entities excluded by the inclusion predicate",
		},
		[]string{"entity_type"},
	)

	p.counters[MetricQueueEnqueued] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Total number of update requests placed on the queue",
		},
		[]string{"action"},
	)

	p.counters[MetricQueueFallback] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "queue",
			Name:      "fallbacks_total",
			Help:      "Total number of enqueue failures handled synchronously",
		},
		[]string{"action"},
	)

	p.counters[MetricConsumerAck] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "consumer",
			Name:      "acks_total",
			Help:      "Total number of acknowledged queue messages",
		},
		[]string{},
	)

	p.counters[MetricConsumerRetry] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "consumer",
			Name:      "retries_total",
			Help:      "Total number of transient failures retried once",
		},
		[]string{},
	)

	p.counters[MetricConsumerUnacked] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "consumer",
			Name:      "unacked_total",
			Help:      "Total number of messages left on the queue after retry failure",
		},
		[]string{},
	)

	p.counters[MetricConsumerRejected] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "consumer",
			Name:      "rejected_total",
			Help:      "Total number of malformed or permanently failed messages discarded",
		},
		[]string{},
	)

	p.counters[MetricSearchErrors] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "search",
			Name:      "errors_total",
			Help:      "Total number of failed search requests",
		},
		[]string{},
	)

	p.counters[MetricSetupConflicts] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "setup",
			Name:      "conflicts_total",
			Help:      "Total number of mapping conflicts detected during setup",
		},
		[]string{},
	)

	p.counters[MetricFanout] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Subsystem: "router",
			Name:      "fanout_total",
			Help:      "Total number of updates dispatched via related-source fan-out",
		},
		[]string{"related_type", "index_type"},
	)

	// Timing histograms
	p.histograms[MetricBulkDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchsync",
			Subsystem: "bulk",
			Name:      "duration_seconds",
			Help:      "Bulk index request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"index"},
	)

	p.histograms[MetricSearchDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchsync",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{},
	)

	p.histograms[MetricBulkSize] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchsync",
			Subsystem: "bulk",
			Name:      "documents",
			Help:      "Number of documents per bulk request",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"index"},
	)
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	counter, ok := p.counters[name]
	if !ok {
		counter = promauto.With(p.registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: sanitizeMetricName(name),
				Help: "Dynamic counter: " + name,
			},
			p.extractLabels(tags),
		)
		p.counters[name] = counter
	}

	labels := p.extractLabelValues(tags)
	counter.With(labels).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	gauge, ok := p.gauges[name]
	if !ok {
		gauge = promauto.With(p.registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: sanitizeMetricName(name),
				Help: "Dynamic gauge: " + name,
			},
			p.extractLabels(tags),
		)
		p.gauges[name] = gauge
	}

	labels := p.extractLabelValues(tags)
	gauge.With(labels).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	histogram, ok := p.histograms[name]
	if !ok {
		histogram = promauto.With(p.registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    sanitizeMetricName(name),
				Help:    "Dynamic histogram: " + name,
				Buckets: prometheus.DefBuckets,
			},
			p.extractLabels(tags),
		)
		p.histograms[name] = histogram
	}

	labels := p.extractLabelValues(tags)
	histogram.With(labels).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// sanitizeMetricName turns a dotted metric name into a valid
// Prometheus identifier.
func sanitizeMetricName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// extractLabels extracts label names from tags (every even index)
func (p *PrometheusMetrics) extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func (p *PrometheusMetrics) extractLabelValues(tags []string) prometheus.Labels {
	if len(tags) == 0 {
		return prometheus.Labels{}
	}

	labels := make(prometheus.Labels)
	for i := 0; i < len(tags)-1; i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}

// GetRegistry returns the underlying Prometheus registerer
func (p *PrometheusMetrics) GetRegistry() prometheus.Registerer {
	return p.registry
}
