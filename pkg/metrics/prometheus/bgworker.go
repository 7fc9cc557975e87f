package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HelloBinge/petuum/pkg/metrics"
)

type bgWorkerMetrics struct {
	rowRequests    *prometheus.CounterVec
	repliesApplied *prometheus.CounterVec
	flushTotal     *prometheus.CounterVec
	flushRows      *prometheus.HistogramVec
	flushBytes     *prometheus.HistogramVec
	sendBytes      *prometheus.HistogramVec
}

func init() {
	metrics.RegisterBgWorkerMetricsConstructor(newBgWorkerMetrics)
}

func newBgWorkerMetrics() metrics.BgWorkerMetrics {
	reg := metrics.GetRegistry()
	return &bgWorkerMetrics{
		rowRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "petuum_bgworker_row_requests_total",
				Help: "Total row fetch requests sent to the server",
			},
			[]string{"table_id"},
		),
		repliesApplied: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "petuum_bgworker_replies_applied_total",
				Help: "Total row replies merged into ProcessStorage",
			},
			[]string{"table_id"},
		),
		flushTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "petuum_bgworker_oplog_flushes_total",
				Help: "Total ClockAllTables oplog flushes (seal + version bump)",
			},
			[]string{"table_id"},
		),
		flushRows: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "petuum_bgworker_oplog_flush_rows",
				Help:    "Number of rows sealed per oplog flush",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"table_id"},
		),
		flushBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "petuum_bgworker_oplog_flush_bytes",
				Help:    "Serialized payload size of an oplog flush",
				Buckets: prometheus.ExponentialBuckets(64, 2, 12),
			},
			[]string{"table_id"},
		),
		sendBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "petuum_bgworker_oplog_send_bytes",
				Help:    "Serialized payload size of an unsealed oplog send (aggressive mode)",
				Buckets: prometheus.ExponentialBuckets(64, 2, 12),
			},
			[]string{"table_id"},
		),
	}
}

func (m *bgWorkerMetrics) RecordRowRequest(tableID int32) {
	m.rowRequests.WithLabelValues(tableIDLabel(tableID)).Inc()
}

func (m *bgWorkerMetrics) RecordApplyReply(tableID int32) {
	m.repliesApplied.WithLabelValues(tableIDLabel(tableID)).Inc()
}

func (m *bgWorkerMetrics) RecordOpLogFlush(tableID int32, rows, bytes int) {
	label := tableIDLabel(tableID)
	m.flushTotal.WithLabelValues(label).Inc()
	m.flushRows.WithLabelValues(label).Observe(float64(rows))
	m.flushBytes.WithLabelValues(label).Observe(float64(bytes))
}

func (m *bgWorkerMetrics) RecordOpLogSend(tableID int32, bytes int) {
	m.sendBytes.WithLabelValues(tableIDLabel(tableID)).Observe(float64(bytes))
}
