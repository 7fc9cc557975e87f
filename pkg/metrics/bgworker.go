package metrics

// BgWorkerMetrics is the observability surface pkg/bgworker calls through.
// Pass nil to disable collection with zero overhead.
type BgWorkerMetrics interface {
	// RecordRowRequest counts a RequestRow send to the server.
	RecordRowRequest(tableID int32)
	// RecordApplyReply counts a reply applied to ProcessStorage.
	RecordApplyReply(tableID int32)
	// RecordOpLogFlush counts a ClockAllTables flush, with the number of
	// rows sealed and the serialized payload size in bytes.
	RecordOpLogFlush(tableID int32, rows, bytes int)
	// RecordOpLogSend counts a SendOpLogsAllTables send (no seal, no
	// version bump) with the serialized payload size in bytes.
	RecordOpLogSend(tableID int32, bytes int)
}

// NewBgWorkerMetrics creates a new Prometheus-backed BgWorkerMetrics
// instance. Returns nil if metrics are not enabled (InitRegistry not
// called).
func NewBgWorkerMetrics() BgWorkerMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusBgWorkerMetrics()
}

// newPrometheusBgWorkerMetrics is implemented in
// pkg/metrics/prometheus/bgworker.go.
var newPrometheusBgWorkerMetrics func() BgWorkerMetrics

// RegisterBgWorkerMetricsConstructor registers the Prometheus bgworker
// metrics constructor. Called by pkg/metrics/prometheus/bgworker.go's init.
func RegisterBgWorkerMetricsConstructor(constructor func() BgWorkerMetrics) {
	newPrometheusBgWorkerMetrics = constructor
}

// RecordRowRequest is a nil-safe wrapper around BgWorkerMetrics.RecordRowRequest.
func RecordRowRequest(m BgWorkerMetrics, tableID int32) {
	if m != nil {
		m.RecordRowRequest(tableID)
	}
}

// RecordApplyReply is a nil-safe wrapper around BgWorkerMetrics.RecordApplyReply.
func RecordApplyReply(m BgWorkerMetrics, tableID int32) {
	if m != nil {
		m.RecordApplyReply(tableID)
	}
}

// RecordOpLogFlush is a nil-safe wrapper around BgWorkerMetrics.RecordOpLogFlush.
func RecordOpLogFlush(m BgWorkerMetrics, tableID int32, rows, bytes int) {
	if m != nil {
		m.RecordOpLogFlush(tableID, rows, bytes)
	}
}

// RecordOpLogSend is a nil-safe wrapper around BgWorkerMetrics.RecordOpLogSend.
func RecordOpLogSend(m BgWorkerMetrics, tableID int32, bytes int) {
	if m != nil {
		m.RecordOpLogSend(tableID, bytes)
	}
}
