package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single table
// operation (Get/Inc/BatchInc) or background-worker action.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Operation string    // Get, Inc, BatchInc, RequestRow, ApplyReply, Clock
	ClientID  int32     // Client id in the cluster topology
	ThreadID  int32     // Calling thread id (app, bg, server, or init)
	TableID   int32     // Table being accessed, -1 if not applicable
	RowID     int32     // Row being accessed, -1 if not applicable
	Clock     int32     // Thread's vector clock at the time of the call
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given thread.
func NewLogContext(clientID, threadID int32) *LogContext {
	return &LogContext{
		ClientID:  clientID,
		ThreadID:  threadID,
		TableID:   -1,
		RowID:     -1,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Operation: lc.Operation,
		ClientID:  lc.ClientID,
		ThreadID:  lc.ThreadID,
		TableID:   lc.TableID,
		RowID:     lc.RowID,
		Clock:     lc.Clock,
		StartTime: lc.StartTime,
	}
}

// WithOperation returns a copy with the operation name set
func (lc *LogContext) WithOperation(operation string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Operation = operation
	}
	return clone
}

// WithRow returns a copy with the table/row identifiers set
func (lc *LogContext) WithRow(tableID, rowID int32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TableID = tableID
		clone.RowID = rowID
	}
	return clone
}

// WithClock returns a copy with the thread's vector clock set
func (lc *LogContext) WithClock(clock int32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Clock = clock
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
