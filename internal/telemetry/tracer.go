package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for PS client operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Client / thread attributes
	// ========================================================================
	AttrClientID = "ps.client_id"
	AttrThreadID = "ps.thread_id"

	// ========================================================================
	// Table / row attributes
	// ========================================================================
	AttrOperation = "ps.operation" // Get, Inc, BatchInc, RequestRow, ApplyReply, Clock
	AttrTableID   = "ps.table_id"
	AttrRowID     = "ps.row_id"
	AttrColumnID  = "ps.column_id"
	AttrSlot      = "ps.slot"
	AttrClock     = "ps.clock"
	AttrStaleness = "ps.staleness"
	AttrVersion   = "ps.version"
	AttrCount     = "ps.count"

	// ========================================================================
	// Transport attributes
	// ========================================================================
	AttrRequestID = "transport.request_id"
	AttrServerID  = "transport.server_id"
	AttrBatchSize = "transport.batch_size"

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit      = "cache.hit"
	AttrCacheSource   = "cache.source"
	AttrCacheState    = "cache.state"
	AttrCacheSize     = "cache.size"
	AttrCacheCapacity = "cache.capacity"
)

// Span names for PS client operations.
// Format: <component>.<operation>
const (
	// Consistency controller spans
	SpanSSPGet        = "ssp.get"
	SpanSSPInc        = "ssp.inc"
	SpanSSPBatchInc   = "ssp.batch_inc"
	SpanSSPFetchFresh = "ssp.fetch_fresh"

	// Background worker spans
	SpanBgRequestRow  = "bgworker.request_row"
	SpanBgApplyReply  = "bgworker.apply_reply"
	SpanBgClockTables = "bgworker.clock_all_tables"
	SpanBgSendOpLogs  = "bgworker.send_oplogs_all_tables"

	// Table group spans
	SpanTableGroupClock      = "tablegroup.clock"
	SpanTableGroupRegister   = "tablegroup.register_thread"
	SpanTableGroupDeregister = "tablegroup.deregister_thread"

	// Internal cache operations (protocol-agnostic)
	SpanCacheLookup = "cache.lookup"
	SpanCacheInsert = "cache.insert"
	SpanCacheEvict  = "cache.evict"
)

// ClientID returns an attribute for the client id
func ClientID(id int32) attribute.KeyValue {
	return attribute.Int64(AttrClientID, int64(id))
}

// ThreadID returns an attribute for the thread id
func ThreadID(id int32) attribute.KeyValue {
	return attribute.Int64(AttrThreadID, int64(id))
}

// Operation returns an attribute for the operation name
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// TableID returns an attribute for the table id
func TableID(id int32) attribute.KeyValue {
	return attribute.Int64(AttrTableID, int64(id))
}

// RowID returns an attribute for the row id
func RowID(id int32) attribute.KeyValue {
	return attribute.Int64(AttrRowID, int64(id))
}

// ColumnID returns an attribute for the column id
func ColumnID(id int32) attribute.KeyValue {
	return attribute.Int64(AttrColumnID, int64(id))
}

// Slot returns an attribute for a ClockLRU slot index
func Slot(slot int32) attribute.KeyValue {
	return attribute.Int64(AttrSlot, int64(slot))
}

// Clock returns an attribute for a vector clock value
func Clock(clock int32) attribute.KeyValue {
	return attribute.Int64(AttrClock, int64(clock))
}

// Staleness returns an attribute for the SSP staleness bound
func Staleness(s int32) attribute.KeyValue {
	return attribute.Int64(AttrStaleness, int64(s))
}

// Version returns an attribute for an oplog/request version
func Version(v uint32) attribute.KeyValue {
	return attribute.Int64(AttrVersion, int64(v))
}

// Count returns an attribute for a generic count
func Count(n int) attribute.KeyValue {
	return attribute.Int(AttrCount, n)
}

// RequestID returns an attribute for a transport request id
func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// ServerID returns an attribute for the destination server id
func ServerID(id int32) attribute.KeyValue {
	return attribute.Int64(AttrServerID, int64(id))
}

// BatchSize returns an attribute for a transport batch size
func BatchSize(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, n)
}

// CacheHit returns an attribute for cache hit indicator
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheSource returns an attribute for cache source
func CacheSource(source string) attribute.KeyValue {
	return attribute.String(AttrCacheSource, source)
}

// CacheState returns an attribute for cache state
func CacheState(state string) attribute.KeyValue {
	return attribute.String(AttrCacheState, state)
}

// CacheSize returns an attribute for current cache occupancy
func CacheSize(size int) attribute.KeyValue {
	return attribute.Int(AttrCacheSize, size)
}

// CacheCapacity returns an attribute for maximum cache capacity
func CacheCapacity(capacity int) attribute.KeyValue {
	return attribute.Int(AttrCacheCapacity, capacity)
}

// StartSSPSpan starts a span for an SSP consistency controller operation.
// This is a convenience function that sets common table/row/clock attributes.
func StartSSPSpan(ctx context.Context, spanName string, tableID, rowID, clock int32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		TableID(tableID),
		RowID(rowID),
		Clock(clock),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartBgWorkerSpan starts a span for a background worker operation.
func StartBgWorkerSpan(ctx context.Context, spanName string, tableID, rowID int32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		TableID(tableID),
		RowID(rowID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}
