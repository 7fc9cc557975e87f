package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HelloBinge/petuum/pkg/metrics"
)

type sspMetrics struct {
	getDuration *prometheus.HistogramVec
	incTotal    *prometheus.CounterVec
}

func init() {
	metrics.RegisterSSPMetricsConstructor(newSSPMetrics)
}

func newSSPMetrics() metrics.SSPMetrics {
	reg := metrics.GetRegistry()
	return &sspMetrics{
		getDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "petuum_ssp_get_duration_seconds",
				Help:    "Duration of SSPConsistencyController.Get calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"table_id", "blocked"}, // blocked: "true", "false"
		),
		incTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "petuum_ssp_inc_columns_total",
				Help: "Total columns updated via Inc/BatchInc",
			},
			[]string{"table_id"},
		),
	}
}

func (m *sspMetrics) ObserveGet(tableID int32, blocked bool, duration time.Duration) {
	label := "false"
	if blocked {
		label = "true"
	}
	m.getDuration.WithLabelValues(tableIDLabel(tableID), label).Observe(duration.Seconds())
}

func (m *sspMetrics) RecordInc(tableID int32, numColumns int) {
	m.incTotal.WithLabelValues(tableIDLabel(tableID)).Add(float64(numColumns))
}
