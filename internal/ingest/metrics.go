package ingest

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ingest counters of one run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	LinesTotal     prometheus.Counter
	RecordsTotal   prometheus.Counter
	ParseErrors    prometheus.Counter
	BatchesFlushed prometheus.Counter
	BatchRows      prometheus.Histogram
}

// NewMetrics registers the ingest metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LinesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "accesslog_lines_total",
			Help: "Input lines read",
		}),
		RecordsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "accesslog_records_total",
			Help: "Lines parsed into records",
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "accesslog_parse_errors_total",
			Help: "Lines rejected by the parser",
		}),
		BatchesFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "accesslog_batches_flushed_total",
			Help: "Batches appended to the store",
		}),
		BatchRows: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accesslog_batch_rows",
			Help:    "Rows per flushed batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes the registry in Prometheus text format, atomically.
func (m *Metrics) WriteFile(path string) error {
	return errors.Wrap(prometheus.WriteToTextfile(path, m.registry), "writing metrics")
}
