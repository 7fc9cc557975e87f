package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "petuum-ps-client", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, ClientID(1))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("ClientID", func(t *testing.T) {
		attr := ClientID(3)
		assert.Equal(t, AttrClientID, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("ThreadID", func(t *testing.T) {
		attr := ThreadID(7)
		assert.Equal(t, AttrThreadID, string(attr.Key))
		assert.Equal(t, int64(7), attr.Value.AsInt64())
	})

	t.Run("Operation", func(t *testing.T) {
		attr := Operation("Get")
		assert.Equal(t, AttrOperation, string(attr.Key))
		assert.Equal(t, "Get", attr.Value.AsString())
	})

	t.Run("TableID", func(t *testing.T) {
		attr := TableID(2)
		assert.Equal(t, AttrTableID, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})

	t.Run("RowID", func(t *testing.T) {
		attr := RowID(42)
		assert.Equal(t, AttrRowID, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("ColumnID", func(t *testing.T) {
		attr := ColumnID(5)
		assert.Equal(t, AttrColumnID, string(attr.Key))
		assert.Equal(t, int64(5), attr.Value.AsInt64())
	})

	t.Run("Slot", func(t *testing.T) {
		attr := Slot(11)
		assert.Equal(t, AttrSlot, string(attr.Key))
		assert.Equal(t, int64(11), attr.Value.AsInt64())
	})

	t.Run("Clock", func(t *testing.T) {
		attr := Clock(9)
		assert.Equal(t, AttrClock, string(attr.Key))
		assert.Equal(t, int64(9), attr.Value.AsInt64())
	})

	t.Run("Staleness", func(t *testing.T) {
		attr := Staleness(4)
		assert.Equal(t, AttrStaleness, string(attr.Key))
		assert.Equal(t, int64(4), attr.Value.AsInt64())
	})

	t.Run("Version", func(t *testing.T) {
		attr := Version(100)
		assert.Equal(t, AttrVersion, string(attr.Key))
		assert.Equal(t, int64(100), attr.Value.AsInt64())
	})

	t.Run("Count", func(t *testing.T) {
		attr := Count(6)
		assert.Equal(t, AttrCount, string(attr.Key))
		assert.Equal(t, int64(6), attr.Value.AsInt64())
	})

	t.Run("RequestID", func(t *testing.T) {
		attr := RequestID("req-abc123")
		assert.Equal(t, AttrRequestID, string(attr.Key))
		assert.Equal(t, "req-abc123", attr.Value.AsString())
	})

	t.Run("ServerID", func(t *testing.T) {
		attr := ServerID(1)
		assert.Equal(t, AttrServerID, string(attr.Key))
		assert.Equal(t, int64(1), attr.Value.AsInt64())
	})

	t.Run("BatchSize", func(t *testing.T) {
		attr := BatchSize(16)
		assert.Equal(t, AttrBatchSize, string(attr.Key))
		assert.Equal(t, int64(16), attr.Value.AsInt64())
	})

	t.Run("CacheHit", func(t *testing.T) {
		attr := CacheHit(true)
		assert.Equal(t, AttrCacheHit, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("CacheSource", func(t *testing.T) {
		attr := CacheSource("process_storage")
		assert.Equal(t, AttrCacheSource, string(attr.Key))
		assert.Equal(t, "process_storage", attr.Value.AsString())
	})

	t.Run("CacheState", func(t *testing.T) {
		attr := CacheState("stale")
		assert.Equal(t, AttrCacheState, string(attr.Key))
		assert.Equal(t, "stale", attr.Value.AsString())
	})

	t.Run("CacheSize", func(t *testing.T) {
		attr := CacheSize(128)
		assert.Equal(t, AttrCacheSize, string(attr.Key))
		assert.Equal(t, int64(128), attr.Value.AsInt64())
	})

	t.Run("CacheCapacity", func(t *testing.T) {
		attr := CacheCapacity(256)
		assert.Equal(t, AttrCacheCapacity, string(attr.Key))
		assert.Equal(t, int64(256), attr.Value.AsInt64())
	})
}

func TestStartSSPSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSSPSpan(ctx, SpanSSPGet, 1, 2, 3)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartSSPSpan(ctx, SpanSSPInc, 1, 2, 3, Staleness(4))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartBgWorkerSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartBgWorkerSpan(ctx, SpanBgRequestRow, 1, 2)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartBgWorkerSpan(ctx, SpanBgApplyReply, 1, 2, Version(7), Count(3))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartCacheSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartCacheSpan(ctx, "lookup")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartCacheSpan(ctx, "insert", CacheHit(false))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
