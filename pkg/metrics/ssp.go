package metrics

import "time"

// SSPMetrics is the observability surface pkg/consistency calls through.
// Pass nil to disable collection with zero overhead.
type SSPMetrics interface {
	// ObserveGet records a Get call's duration and whether it had to
	// block on a row fetch rather than returning from cache immediately.
	ObserveGet(tableID int32, blocked bool, duration time.Duration)
	// RecordInc records an Inc/BatchInc call applying numColumns deltas.
	RecordInc(tableID int32, numColumns int)
}

// NewSSPMetrics creates a new Prometheus-backed SSPMetrics instance.
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewSSPMetrics() SSPMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusSSPMetrics()
}

// newPrometheusSSPMetrics is implemented in pkg/metrics/prometheus/ssp.go.
var newPrometheusSSPMetrics func() SSPMetrics

// RegisterSSPMetricsConstructor registers the Prometheus SSP metrics
// constructor. Called by pkg/metrics/prometheus/ssp.go's init.
func RegisterSSPMetricsConstructor(constructor func() SSPMetrics) {
	newPrometheusSSPMetrics = constructor
}

// ObserveGet is a nil-safe wrapper around SSPMetrics.ObserveGet.
func ObserveGet(m SSPMetrics, tableID int32, blocked bool, duration time.Duration) {
	if m != nil {
		m.ObserveGet(tableID, blocked, duration)
	}
}

// RecordInc is a nil-safe wrapper around SSPMetrics.RecordInc.
func RecordInc(m SSPMetrics, tableID int32, numColumns int) {
	if m != nil {
		m.RecordInc(tableID, numColumns)
	}
}
