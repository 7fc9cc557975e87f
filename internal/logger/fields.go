package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the PS client.
// Use these keys consistently across all log statements for log
// aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Thread / Cluster Identification
	// ========================================================================
	KeyClientID = "client_id" // Client id in the cluster topology
	KeyThreadID = "thread_id" // Thread id (app, bg, server, init)

	// ========================================================================
	// Table / Row Operations
	// ========================================================================
	KeyOperation = "operation"  // Get, Inc, BatchInc, RequestRow, ApplyReply, Clock
	KeyTableID   = "table_id"   // Table identifier
	KeyRowID     = "row_id"     // Row identifier
	KeyColumnID  = "column_id"  // Column identifier
	KeySlot      = "slot"       // ClockLRU slot index
	KeyClock     = "clock"      // Vector clock value
	KeyStaleness = "staleness"  // SSP staleness bound
	KeyVersion   = "version"    // Oplog / request version
	KeyCount     = "count"      // Generic count (requests coalesced, deltas replayed)

	// ========================================================================
	// Cache Layer
	// ========================================================================
	KeyCacheHit      = "cache_hit"      // Cache hit indicator
	KeyCacheSize     = "cache_size"     // Current cache occupancy
	KeyCacheCapacity = "cache_capacity" // Maximum cache capacity
	KeyEvicted       = "evicted"        // Row id evicted

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyRequestID  = "request_id"  // Transport request id
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ClientID returns a slog.Attr for the client id
func ClientID(id int32) slog.Attr {
	return slog.Int(KeyClientID, int(id))
}

// ThreadID returns a slog.Attr for the thread id
func ThreadID(id int32) slog.Attr {
	return slog.Int(KeyThreadID, int(id))
}

// Operation returns a slog.Attr for the operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// TableID returns a slog.Attr for the table id
func TableID(id int32) slog.Attr {
	return slog.Int(KeyTableID, int(id))
}

// RowID returns a slog.Attr for the row id
func RowID(id int32) slog.Attr {
	return slog.Int(KeyRowID, int(id))
}

// ColumnID returns a slog.Attr for the column id
func ColumnID(id int32) slog.Attr {
	return slog.Int(KeyColumnID, int(id))
}

// Slot returns a slog.Attr for a ClockLRU slot index
func Slot(slot int32) slog.Attr {
	return slog.Int(KeySlot, int(slot))
}

// Clock returns a slog.Attr for a vector clock value
func Clock(clock int32) slog.Attr {
	return slog.Int(KeyClock, int(clock))
}

// Staleness returns a slog.Attr for the SSP staleness bound
func Staleness(s int32) slog.Attr {
	return slog.Int(KeyStaleness, int(s))
}

// Version returns a slog.Attr for an oplog/request version
func Version(v uint32) slog.Attr {
	return slog.Any(KeyVersion, v)
}

// Count returns a slog.Attr for a generic count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// CacheHit returns a slog.Attr for cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// CacheSize returns a slog.Attr for current cache occupancy
func CacheSize(size int) slog.Attr {
	return slog.Int(KeyCacheSize, size)
}

// CacheCapacity returns a slog.Attr for maximum cache capacity
func CacheCapacity(capacity int) slog.Attr {
	return slog.Int(KeyCacheCapacity, capacity)
}

// Evicted returns a slog.Attr for the row id evicted
func Evicted(rowID int32) slog.Attr {
	return slog.Int(KeyEvicted, int(rowID))
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// RequestID returns a slog.Attr for a transport request id
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}
