// Package metrics exposes loader counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/dataloader/internal/workerpool"
)

const namespace = "loader"

const (
	MetricUploads        = "uploads_total"
	MetricRowsLoaded     = "rows_loaded_total"
	MetricBytesRead      = "bytes_read_total"
	MetricChunks         = "chunks_total"
	MetricTablesCreated  = "tables_created_total"
	MetricChunkDuration  = "chunk_duration_seconds"
	MetricUploadDuration = "upload_duration_seconds"
	MetricPoolWorkers    = "pool_workers"
	MetricPoolQueued     = "pool_queued_tasks"
)

var CounterUploads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricUploads,
		Help:      "Ingestion requests by terminal status.",
	},
	[]string{"status"},
)

var CounterRowsLoaded = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRowsLoaded,
		Help:      "Rows committed to target tables.",
	},
)

var CounterBytesRead = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricBytesRead,
		Help:      "Bytes of uploaded files consumed by the parser.",
	},
)

var CounterChunks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricChunks,
		Help:      "Load units by result.",
	},
	[]string{"result"},
)

var CounterTablesCreated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricTablesCreated,
		Help:      "Target tables provisioned.",
	},
)

var HistogramChunkDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricChunkDuration,
		Help:      "Time to commit one chunk.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	},
)

var HistogramUploadDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricUploadDuration,
		Help:      "End-to-end ingestion time.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	},
)

func init() {
	prometheus.MustRegister(CounterUploads)
	prometheus.MustRegister(CounterRowsLoaded)
	prometheus.MustRegister(CounterBytesRead)
	prometheus.MustRegister(CounterChunks)
	prometheus.MustRegister(CounterTablesCreated)
	prometheus.MustRegister(HistogramChunkDuration)
	prometheus.MustRegister(HistogramUploadDuration)
}

// RegisterPool exports the size and backlog of p as gauges.
// Registering a second pool is a no-op.
func RegisterPool(p *workerpool.Pool) error {
	workers := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricPoolWorkers,
			Help:      "Live load workers.",
		},
		func() float64 { return float64(p.Stats().Workers) },
	)
	queued := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricPoolQueued,
			Help:      "Load units waiting for a worker.",
		},
		func() float64 { return float64(p.Stats().Queued) },
	)

	for _, c := range []prometheus.Collector{workers, queued} {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
