// Package prometheus provides Prometheus-backed implementations of the
// domain metrics interfaces declared in pkg/metrics. Each file registers
// its constructor with pkg/metrics via an init(), so importing this
// package anywhere (typically a single blank import from cmd/petuumclient)
// is enough to wire metrics collection into the facade.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HelloBinge/petuum/pkg/metrics"
)

type cacheMetrics struct {
	findOperations   *prometheus.CounterVec
	findDuration     *prometheus.HistogramVec
	insertOperations *prometheus.CounterVec
	insertDuration   prometheus.Histogram
	cacheSize        *prometheus.GaugeVec
}

func init() {
	metrics.RegisterCacheMetricsConstructor(newCacheMetrics)
}

func newCacheMetrics() metrics.CacheMetrics {
	reg := metrics.GetRegistry()
	return &cacheMetrics{
		findOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "petuum_storage_find_total",
				Help: "Total ProcessStorage.Find lookups by outcome",
			},
			[]string{"outcome"}, // "hit", "miss"
		),
		findDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "petuum_storage_find_duration_seconds",
				Help:    "Duration of ProcessStorage.Find lookups",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		insertOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "petuum_storage_insert_total",
				Help: "Total ProcessStorage.Insert calls by whether they evicted",
			},
			[]string{"evicted"}, // "true", "false"
		),
		insertDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "petuum_storage_insert_duration_seconds",
				Help:    "Duration of ProcessStorage.Insert calls",
				Buckets: prometheus.DefBuckets,
			},
		),
		cacheSize: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "petuum_storage_rows",
				Help: "Current number of rows cached per table",
			},
			[]string{"table_id"},
		),
	}
}

func (m *cacheMetrics) ObserveFind(hit bool, duration time.Duration) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.findOperations.WithLabelValues(outcome).Inc()
	m.findDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *cacheMetrics) ObserveInsert(evicted bool, duration time.Duration) {
	label := "false"
	if evicted {
		label = "true"
	}
	m.insertOperations.WithLabelValues(label).Inc()
	m.insertDuration.Observe(duration.Seconds())
}

func (m *cacheMetrics) RecordSize(tableID int32, rows int) {
	m.cacheSize.WithLabelValues(tableIDLabel(tableID)).Set(float64(rows))
}
