package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/uprename/pkg/upload"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "uprename").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for batch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "uprename",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus metrics for upload batches registered with
// one registry.
type Metrics struct {
	batchesTotal   *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	bodyBytes      prometheus.Histogram
	outcomesTotal  *prometheus.CounterVec
	malformedTotal *prometheus.CounterVec
	bytesRelocated prometheus.Counter
	feedClients    prometheus.Gauge
}

// metricsKey identifies a metric set. Sets are shared per registry and name
// prefix so that registering twice never panics.
type metricsKey struct {
	registry  prometheus.Registerer
	namespace string
	subsystem string
}

// globalMetrics holds every metric set created so far.
var (
	globalMetrics   = make(map[metricsKey]*Metrics)
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *Metrics {
	factory := promauto.With(config.Registry)

	return &Metrics{
		batchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batches_total",
			Help:        "Total number of request bodies processed, by result",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_duration_seconds",
			Help:        "Time spent scanning and relocating one request body",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		bodyBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "body_bytes",
			Help:        "Size of processed request bodies in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{256, 1024, 4096, 16384, 65536, 262144}, // 256B to 256KB
		}),

		outcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "outcomes_total",
			Help:        "Total number of records by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		malformedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "malformed_total",
			Help:        "Total number of bodies that stopped at a malformed record, by field",
			ConstLabels: config.ConstLabels,
		}, []string{"field"}),

		bytesRelocated: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_relocated_total",
			Help:        "Total size of relocated uploads as declared in their size field",
			ConstLabels: config.ConstLabels,
		}),

		feedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "feed_clients",
			Help:        "Number of connected outcome feed clients",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// NewMetrics returns the metric set for the configured registry, namespace
// and subsystem, registering it on first use. Later calls with the same
// three values return the same set and ignore the remaining options.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}

	key := metricsKey{
		registry:  config.Registry,
		namespace: config.Namespace,
		subsystem: config.Subsystem,
	}

	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	m, ok := globalMetrics[key]
	if !ok {
		m = initMetrics(config)
		globalMetrics[key] = m
	}
	return m
}

// Prometheus creates middleware that collects Prometheus metrics for upload batches.
//
// Metrics collected:
//   - uprename_batches_total: Counter of batches by status (ok, partial, malformed)
//   - uprename_batch_duration_seconds: Histogram of batch processing duration
//   - uprename_body_bytes: Histogram of request body sizes
//   - uprename_outcomes_total: Counter of records by outcome kind
//   - uprename_malformed_total: Counter of malformed bodies by field
//   - uprename_bytes_relocated_total: Counter of relocated bytes
//   - uprename_feed_clients: Gauge of feed clients (when feed hooks are used)
//
// Example:
//
//	processor := upload.NewProcessor(relocator,
//	    upload.WithMiddleware(middleware.Prometheus()),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) upload.Middleware {
	return NewMetrics(opts...).Middleware()
}

// Middleware returns processor middleware that records every batch in m.
func (m *Metrics) Middleware() upload.Middleware {
	return upload.MiddlewareFunc(func(ctx context.Context, body []byte, next func(context.Context) *upload.Batch) *upload.Batch {
		start := time.Now()

		batch := next(ctx)

		m.batchDuration.Observe(time.Since(start).Seconds())
		m.bodyBytes.Observe(float64(len(body)))

		for _, o := range batch.Outcomes {
			m.outcomesTotal.WithLabelValues(o.Kind.String()).Inc()
			if o.Kind == upload.KindMoved && o.Size > 0 {
				m.bytesRelocated.Add(float64(o.Size))
			}
		}
		if batch.Err != nil {
			m.malformedTotal.WithLabelValues(malformedField(batch)).Inc()
		}
		m.batchesTotal.WithLabelValues(batchStatus(batch)).Inc()

		return batch
	})
}

// batchStatus returns a low-cardinality label for the batch result.
func batchStatus(b *upload.Batch) string {
	switch {
	case b.Err != nil:
		return "malformed"
	case b.Partial():
		return "partial"
	default:
		return "ok"
	}
}

func malformedField(b *upload.Batch) string {
	if me := b.Malformed(); me != nil {
		return me.Field.String()
	}
	return "unknown"
}

// FeedConnect records a new feed client.
func (m *Metrics) FeedConnect() {
	m.feedClients.Inc()
}

// FeedDisconnect records a feed client going away.
func (m *Metrics) FeedDisconnect() {
	m.feedClients.Dec()
}

// Describe implements prometheus.Collector, so a set can also be registered
// with another registry.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, col := range m.collectors() {
		col.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, col := range m.collectors() {
		col.Collect(ch)
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.batchesTotal,
		m.batchDuration,
		m.bodyBytes,
		m.outcomesTotal,
		m.malformedTotal,
		m.bytesRelocated,
		m.feedClients,
	}
}
