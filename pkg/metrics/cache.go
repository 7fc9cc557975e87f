package metrics

import "time"

// CacheMetrics is the observability surface pkg/storage calls through for
// the ProcessStorage/ClockLRU pair. Pass nil to disable collection with
// zero overhead.
type CacheMetrics interface {
	// ObserveFind records a Find lookup outcome and its duration.
	ObserveFind(hit bool, duration time.Duration)
	// ObserveInsert records an Insert call's duration and whether it
	// evicted an existing row.
	ObserveInsert(evicted bool, duration time.Duration)
	// RecordSize records the current number of cached rows.
	RecordSize(tableID int32, rows int)
}

// NewCacheMetrics creates a new Prometheus-backed CacheMetrics instance.
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCacheMetrics() CacheMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is implemented in pkg/metrics/prometheus/cache.go.
var newPrometheusCacheMetrics func() CacheMetrics

// RegisterCacheMetricsConstructor registers the Prometheus cache metrics
// constructor. Called by pkg/metrics/prometheus/cache.go's init.
func RegisterCacheMetricsConstructor(constructor func() CacheMetrics) {
	newPrometheusCacheMetrics = constructor
}

// ObserveFind is a nil-safe wrapper around CacheMetrics.ObserveFind.
func ObserveFind(m CacheMetrics, hit bool, duration time.Duration) {
	if m != nil {
		m.ObserveFind(hit, duration)
	}
}

// ObserveInsert is a nil-safe wrapper around CacheMetrics.ObserveInsert.
func ObserveInsert(m CacheMetrics, evicted bool, duration time.Duration) {
	if m != nil {
		m.ObserveInsert(evicted, duration)
	}
}

// RecordSize is a nil-safe wrapper around CacheMetrics.RecordSize.
func RecordSize(m CacheMetrics, tableID int32, rows int) {
	if m != nil {
		m.RecordSize(tableID, rows)
	}
}
