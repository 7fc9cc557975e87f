// Package consistency implements the SSP (Stale Synchronous Parallel)
// consistency controller: the component app threads actually call through
// to read and write table rows.
//
// Get enforces the SSP staleness bound by checking a row's known-fresh
// clock against the caller's thread clock before trusting the cache;
// Inc/BatchInc are fire-and-forget, buffering into the table's oplog and
// mirroring onto the cached row so a thread observes its own writes
// immediately, exactly as the SSP model promises.
package consistency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HelloBinge/petuum/internal/telemetry"
	"github.com/HelloBinge/petuum/pkg/metrics"
	"github.com/HelloBinge/petuum/pkg/oplog"
	"github.com/HelloBinge/petuum/pkg/row"
	"github.com/HelloBinge/petuum/pkg/rowrequest"
	"github.com/HelloBinge/petuum/pkg/rowwait"
	"github.com/HelloBinge/petuum/pkg/storage"
	"github.com/HelloBinge/petuum/pkg/vectorclock"
)

// Controller is the dispatch surface app threads use, kept as an interface
// so a table can be bound to a different consistency model (SSP here; a
// strict or eventual model elsewhere) without the caller branching on which
// one it holds.
type Controller interface {
	Get(ctx context.Context, threadID, rowID int32) (*storage.RowAccessor, error)
	Inc(rowID, columnID int32, delta float64)
	BatchInc(rowID int32, columnIDs []int32, deltas []float64)
}

// RowRequester is the background worker's surface as seen by the
// controller: enqueue a fetch, and report the oplog version a fetch for
// this table should be stamped with.
type RowRequester interface {
	RequestRow(ctx context.Context, tableID, rowID, clock int32, version uint32)
	CurrentVersion(tableID int32) uint32
}

// TableInfo describes the fixed shape of one table.
type TableInfo struct {
	TableID   int32
	Staleness int32
	Sample    row.Sample
}

// SSPConsistencyController implements Controller under the SSP rule: a Get
// at thread clock c may return any cached row known fresh as of clock
// c - staleness or later; anything staler triggers a fetch and blocks.
type SSPConsistencyController struct {
	tableID   int32
	staleness int32

	storage     *storage.ProcessStorage
	oplog       *oplog.TableOpLog
	rowRequests *rowrequest.Mgr
	vectorClock *vectorclock.VectorClockMT
	waiters     *rowwait.Registry
	bgWorker    RowRequester
	metrics     metrics.SSPMetrics
}

// SetMetrics attaches a metrics sink. Passing nil disables collection.
func (c *SSPConsistencyController) SetMetrics(m metrics.SSPMetrics) {
	c.metrics = m
}

// New constructs an SSPConsistencyController for one table.
func New(
	info TableInfo,
	processStorage *storage.ProcessStorage,
	tableOpLog *oplog.TableOpLog,
	rowRequests *rowrequest.Mgr,
	vc *vectorclock.VectorClockMT,
	waiters *rowwait.Registry,
	bgWorker RowRequester,
) *SSPConsistencyController {
	return &SSPConsistencyController{
		tableID:     info.TableID,
		staleness:   info.Staleness,
		storage:     processStorage,
		oplog:       tableOpLog,
		rowRequests: rowRequests,
		vectorClock: vc,
		waiters:     waiters,
		bgWorker:    bgWorker,
	}
}

// Get returns the row at rowID, blocking until the cache holds a copy
// fresh enough for the calling thread's clock under the table's staleness
// bound.
func (c *SSPConsistencyController) Get(ctx context.Context, threadID, rowID int32) (*storage.RowAccessor, error) {
	start := time.Now()
	threadClock := c.vectorClock.GetClock(threadID)
	ctx, span := telemetry.StartSSPSpan(ctx, telemetry.SpanSSPGet, c.tableID, rowID, threadClock)
	defer span.End()

	stalestIter := threadClock - c.staleness

	if acc, ok := c.fetchFreshFromProcessStorage(rowID, stalestIter); ok {
		metrics.ObserveGet(c.metrics, c.tableID, false, time.Since(start))
		return acc, nil
	}

	wait := c.waiters.Wait(c.tableID, rowID)

	minClock := c.vectorClock.GetMinClock()
	version := c.bgWorker.CurrentVersion(c.tableID)
	request := rowrequest.RowRequestInfo{
		RequestID:   uuid.New(),
		AppThreadID: threadID,
		Clock:       minClock,
		Version:     version,
	}
	if c.rowRequests.AddRowRequest(request, c.tableID, rowID) {
		c.bgWorker.RequestRow(ctx, c.tableID, rowID, minClock, version)
	}

	select {
	case <-wait:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	acc, ok := c.fetchFreshFromProcessStorage(rowID, stalestIter)
	if !ok {
		return nil, fmt.Errorf("consistency: row %d not fresh after reply wake, invariant violated", rowID)
	}
	metrics.ObserveGet(c.metrics, c.tableID, true, time.Since(start))
	return acc, nil
}

// fetchFreshFromProcessStorage looks rowID up in ProcessStorage and checks
// its known-fresh clock against stalestIter.
func (c *SSPConsistencyController) fetchFreshFromProcessStorage(rowID, stalestIter int32) (*storage.RowAccessor, bool) {
	acc, ok := c.storage.Find(rowID)
	if !ok {
		return nil, false
	}
	if acc.Clock() < stalestIter {
		acc.Release()
		return nil, false
	}
	return acc, true
}

// Inc buffers delta into the table's oplog and, if the row is already
// cached, mirrors it there too so the calling thread sees its own write
// without waiting for a clock tick to flush.
func (c *SSPConsistencyController) Inc(rowID, columnID int32, delta float64) {
	c.oplog.ApplyUpdate(rowID, columnID, delta)
	if acc, ok := c.storage.Find(rowID); ok {
		acc.Row().ApplyUpdate(columnID, delta)
		acc.Release()
	}
	metrics.RecordInc(c.metrics, c.tableID, 1)
}

// BatchInc is Inc for multiple columns of the same row in one call.
func (c *SSPConsistencyController) BatchInc(rowID int32, columnIDs []int32, deltas []float64) {
	c.oplog.ApplyBatchUpdate(rowID, columnIDs, deltas)
	if acc, ok := c.storage.Find(rowID); ok {
		acc.Row().ApplyBatchUpdate(columnIDs, deltas)
		acc.Release()
	}
	metrics.RecordInc(c.metrics, c.tableID, len(columnIDs))
}

var _ Controller = (*SSPConsistencyController)(nil)
