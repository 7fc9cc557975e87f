// Package bgworker implements the background worker thread: the one thread
// per process that actually talks to servers. App threads never touch the
// transport directly — they call through SSPConsistencyController, which
// enqueues a request here and blocks on a rowwait.Registry entry until this
// package's receive loop applies the reply and notifies it.
//
// A Worker also owns the client-side half of the clock-tick protocol:
// ClockAllTables seals each table's oplog, stamps it with a new version, and
// ships it to the server; SendOpLogsAllTables pushes the same accumulated
// deltas without sealing or advancing the version, for "aggressive" mode
// ticks that didn't cross a clock boundary.
package bgworker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/HelloBinge/petuum/internal/logger"
	"github.com/HelloBinge/petuum/internal/telemetry"
	"github.com/HelloBinge/petuum/pkg/metrics"
	"github.com/HelloBinge/petuum/pkg/oplog"
	"github.com/HelloBinge/petuum/pkg/row"
	"github.com/HelloBinge/petuum/pkg/rowrequest"
	"github.com/HelloBinge/petuum/pkg/rowwait"
	"github.com/HelloBinge/petuum/pkg/storage"
	"github.com/HelloBinge/petuum/pkg/transport"
)

// TableState bundles the per-table pieces the background worker needs to
// fetch rows and flush oplogs for one table. TableGroup constructs one of
// these per CreateTable call and registers it with the worker.
type TableState struct {
	TableID     int32
	Storage     *storage.ProcessStorage
	OpLog       *oplog.TableOpLog
	Pending     *oplog.PendingOpLogs
	RowRequests *rowrequest.Mgr
	Sample      row.Sample
	Waiters     *rowwait.Registry

	version atomic.Uint32
}

// Worker is the client-side background worker: it owns the transport
// connection to a single server and the set of tables routed through it.
type Worker struct {
	id       int32
	serverID int32
	bus      transport.Bus

	mu     sync.RWMutex
	tables map[int32]*TableState

	g      *errgroup.Group
	cancel context.CancelFunc

	metrics metrics.BgWorkerMetrics
}

// SetMetrics attaches a metrics sink. Passing nil disables collection.
func (w *Worker) SetMetrics(m metrics.BgWorkerMetrics) {
	w.metrics = m
}

// New constructs a Worker addressed as id on bus, forwarding all traffic to
// serverID.
func New(id, serverID int32, bus transport.Bus) *Worker {
	return &Worker{
		id:       id,
		serverID: serverID,
		bus:      bus,
		tables:   make(map[int32]*TableState),
	}
}

// RegisterTable adds state for a table this worker will serve requests for.
func (w *Worker) RegisterTable(state *TableState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables[state.TableID] = state
}

func (w *Worker) table(tableID int32) (*TableState, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tables[tableID]
	return t, ok
}

// CurrentVersion implements consistency.RowRequester: the oplog version a
// fetch for tableID sent right now should be stamped with.
func (w *Worker) CurrentVersion(tableID int32) uint32 {
	t, ok := w.table(tableID)
	if !ok {
		return 0
	}
	return t.version.Load()
}

// Start launches the worker's receive loop on its own goroutine, supervised
// by an errgroup so Stop can observe whether it exited with an error.
// Cancelling ctx also ends the loop, independently of Stop.
func (w *Worker) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.g, runCtx = errgroup.WithContext(runCtx)
	w.g.Go(func() error {
		return w.Run(runCtx)
	})
}

// Stop cancels the receive loop and waits for it to exit.
func (w *Worker) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	return w.g.Wait()
}

// RequestRow implements consistency.RowRequester. It sends the fetch to the
// server over the bus on the caller's goroutine and returns without waiting
// for the reply; the caller waits on a rowwait.Registry entry instead, and a
// send error is only logged, not returned.
func (w *Worker) RequestRow(ctx context.Context, tableID, rowID, clock int32, version uint32) {
	_, span := telemetry.StartBgWorkerSpan(ctx, telemetry.SpanBgRequestRow, tableID, rowID,
		telemetry.Clock(clock), telemetry.Version(version), telemetry.ServerID(w.serverID))
	defer span.End()

	msg := transport.Message{
		RequestID: newRequestID(),
		Kind:      transport.KindRowRequest,
		TableID:   tableID,
		RowID:     rowID,
		Clock:     clock,
		Version:   version,
	}
	if err := w.bus.Send(ctx, w.id, w.serverID, msg); err != nil {
		logger.ErrorCtx(ctx, "bgworker: failed to send row request",
			logger.TableID(tableID), logger.RowID(rowID), logger.Err(err))
		return
	}
	metrics.RecordRowRequest(w.metrics, tableID)
}

// Run drives the worker's receive loop until ctx is cancelled: every
// message addressed to this worker is dispatched to applyReply.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.bus.Receive(ctx, w.id)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("bgworker: receive: %w", err)
		}
		w.applyReply(ctx, msg)
	}
}

// applyReply merges a KindRowReply message into ProcessStorage, replaying
// any oplog versions the reply predates, then wakes every coalesced waiter.
func (w *Worker) applyReply(ctx context.Context, msg transport.Message) {
	ctx, span := telemetry.StartBgWorkerSpan(ctx, telemetry.SpanBgApplyReply, msg.TableID, msg.RowID,
		telemetry.Clock(msg.Clock), telemetry.Version(msg.Version))
	defer span.End()

	t, ok := w.table(msg.TableID)
	if !ok {
		logger.ErrorCtx(ctx, "bgworker: reply for unregistered table", logger.TableID(msg.TableID))
		return
	}

	r := t.Sample.NewRow()
	if len(msg.Payload) > 0 {
		if err := r.Deserialize(msg.Payload); err != nil {
			logger.ErrorCtx(ctx, "bgworker: failed to decode row reply",
				logger.TableID(msg.TableID), logger.RowID(msg.RowID), logger.Err(err))
			return
		}
	}

	w.replayPendingOpLogs(t, msg.RowID, msg.Version, r)

	t.Storage.Insert(msg.RowID, r, msg.Clock)

	currVersion := t.version.Load()
	t.RowRequests.InformReply(msg.TableID, msg.RowID, msg.Clock, currVersion)
	t.Waiters.Notify(msg.TableID, msg.RowID)
	metrics.RecordApplyReply(w.metrics, msg.TableID)
}

// replayPendingOpLogs applies every retained oplog version strictly newer
// than the version a reply was computed as of, in ascending order, so a
// server reply that predates a locally-flushed update is brought current
// before the row is trusted.
func (w *Worker) replayPendingOpLogs(t *TableState, rowID int32, replyVersion uint32, r row.Row) {
	currVersion := t.version.Load()
	versions := t.Pending.Versions()

	sortVersionsAscending(versions, currVersion)
	for _, v := range versions {
		if !oplog.VersionLess(replyVersion, v, currVersion) {
			continue // v <= replyVersion: already reflected in the reply
		}
		sealed, ok := t.Pending.Get(v)
		if !ok {
			continue
		}
		deltas, ok := sealed[rowID]
		if !ok {
			continue
		}
		columnIDs := make([]int32, 0, len(deltas))
		values := make([]float64, 0, len(deltas))
		for col, delta := range deltas {
			columnIDs = append(columnIDs, col)
			values = append(values, delta)
		}
		r.ApplyBatchUpdate(columnIDs, values)
	}
}

// sortVersionsAscending orders versions by the wrap-aware comparator
// anchored at currVersion, insertion-sort style since the slice is always
// small (bounded by in-flight requests, not table size).
func sortVersionsAscending(versions []uint32, anchor uint32) {
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && oplog.VersionLess(versions[j], versions[j-1], anchor); j-- {
			versions[j], versions[j-1] = versions[j-1], versions[j]
		}
	}
}

// ClockAllTables seals every registered table's accumulated oplog, stamps
// it with a new version, retains it in PendingOpLogs, and ships it to the
// server. Called by TableGroup on a clock-boundary crossing.
func (w *Worker) ClockAllTables(ctx context.Context) error {
	ctx, span := telemetry.StartBgWorkerSpan(ctx, telemetry.SpanBgClockTables, -1, -1)
	defer span.End()

	w.mu.RLock()
	tables := make([]*TableState, 0, len(w.tables))
	for _, t := range w.tables {
		tables = append(tables, t)
	}
	w.mu.RUnlock()

	for _, t := range tables {
		sealed := t.OpLog.Seal()
		newVersion := t.version.Add(1)
		t.Pending.Add(newVersion, sealed)

		bytes, err := w.sendOpLog(ctx, t.TableID, newVersion, sealed)
		if err != nil {
			return err
		}
		metrics.RecordOpLogFlush(w.metrics, t.TableID, len(sealed), bytes)
	}
	return nil
}

// SendOpLogsAllTables ships every registered table's currently accumulated
// oplog to the server without sealing it or advancing the table's version —
// used by aggressive-clock mode on ticks that did not cross a clock
// boundary, to push freshness without a formal flush.
func (w *Worker) SendOpLogsAllTables(ctx context.Context) error {
	ctx, span := telemetry.StartBgWorkerSpan(ctx, telemetry.SpanBgSendOpLogs, -1, -1)
	defer span.End()

	w.mu.RLock()
	tables := make([]*TableState, 0, len(w.tables))
	for _, t := range w.tables {
		tables = append(tables, t)
	}
	w.mu.RUnlock()

	for _, t := range tables {
		peeked := t.OpLog.PeekAll()
		bytes, err := w.sendOpLog(ctx, t.TableID, t.version.Load(), peeked)
		if err != nil {
			return err
		}
		metrics.RecordOpLogSend(w.metrics, t.TableID, bytes)
	}
	return nil
}

// sendOpLog serializes and ships log, returning the payload size in bytes
// for metrics purposes.
func (w *Worker) sendOpLog(ctx context.Context, tableID int32, version uint32, log oplog.RowOpLog) (int, error) {
	payload, err := log.Serialize()
	if err != nil {
		return 0, fmt.Errorf("bgworker: serialize oplog for table %d: %w", tableID, err)
	}
	msg := transport.Message{
		RequestID: newRequestID(),
		Kind:      transport.KindOpLogUpdate,
		TableID:   tableID,
		Version:   version,
		Payload:   payload,
	}
	if err := w.bus.Send(ctx, w.id, w.serverID, msg); err != nil {
		return 0, fmt.Errorf("bgworker: send oplog for table %d: %w", tableID, err)
	}
	return len(payload), nil
}

func newRequestID() uuid.UUID {
	return uuid.New()
}
