// Package tablegroup implements the client-facing façade: thread
// registration, the registration barrier, table creation, and the
// clock-tick dispatcher that bridges an application thread's VectorClockMT
// tick to the background worker's flush/send decision.
//
// TableGroup is process-wide state, but modeled as an explicit struct with
// Init/ShutDown lifecycle methods rather than package-level globals, so
// more than one client instance can coexist in a test binary.
package tablegroup

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/HelloBinge/petuum/internal/logger"
	"github.com/HelloBinge/petuum/internal/telemetry"
	"github.com/HelloBinge/petuum/pkg/bgworker"
	"github.com/HelloBinge/petuum/pkg/consistency"
	"github.com/HelloBinge/petuum/pkg/metrics"
	"github.com/HelloBinge/petuum/pkg/oplog"
	"github.com/HelloBinge/petuum/pkg/row"
	"github.com/HelloBinge/petuum/pkg/rowrequest"
	"github.com/HelloBinge/petuum/pkg/rowwait"
	"github.com/HelloBinge/petuum/pkg/storage"
	"github.com/HelloBinge/petuum/pkg/vectorclock"
)

// TickPolicy selects how Clock dispatches a VectorClockMT boundary crossing
// (or the lack of one) onto the background worker.
type TickPolicy int

const (
	// Conservative only flushes oplogs when the tick advances the
	// process-wide minimum clock.
	Conservative TickPolicy = iota
	// Aggressive flushes on a boundary crossing like Conservative, but also
	// sends accumulated oplogs without advancing the clock otherwise,
	// trading bandwidth for freshness.
	Aggressive
)

func (p TickPolicy) String() string {
	switch p {
	case Aggressive:
		return "aggressive"
	default:
		return "conservative"
	}
}

// Config fixes the shape of a TableGroup for its lifetime.
type Config struct {
	ClientID     int32
	LocalIDMin   int32
	LocalIDMax   int32
	NumAppThreads int32 // barrier width, fixed at CreateTableDone
	TickPolicy   TickPolicy
}

// TableGroup is the process-wide façade applications interact with.
type TableGroup struct {
	cfg Config

	vectorClock *vectorclock.VectorClockMT
	worker      *bgworker.Worker

	mu           sync.Mutex
	nextThreadID int32
	registered   map[int32]struct{}
	tables       map[int32]consistency.Controller
	barrier      *barrier

	workerCtx    context.Context
	workerCancel context.CancelFunc
}

// Init constructs a TableGroup and implicitly registers the init thread as
// participant 0.
func Init(cfg Config, worker *bgworker.Worker) (*TableGroup, error) {
	if cfg.NumAppThreads <= 0 {
		return nil, fmt.Errorf("tablegroup: num app threads must be positive, got %d", cfg.NumAppThreads)
	}
	if cfg.LocalIDMax < cfg.LocalIDMin {
		return nil, fmt.Errorf("tablegroup: local id range [%d, %d] is invalid", cfg.LocalIDMin, cfg.LocalIDMax)
	}

	ctx, cancel := context.WithCancel(context.Background())
	tg := &TableGroup{
		cfg:          cfg,
		vectorClock:  vectorclock.New(nil),
		worker:       worker,
		nextThreadID: cfg.LocalIDMin,
		registered:   make(map[int32]struct{}),
		tables:       make(map[int32]consistency.Controller),
		workerCtx:    ctx,
		workerCancel: cancel,
	}

	worker.SetMetrics(metrics.NewBgWorkerMetrics())
	worker.Start(ctx)

	// The init thread is implicitly registered first and takes the first
	// local id. It never arrives at the registration barrier, which
	// CreateTableDone sizes to the app threads alone.
	if _, err := tg.RegisterThread(); err != nil {
		cancel()
		return nil, err
	}
	return tg, nil
}

// CreateTableDone constructs the registration barrier, sized to the
// declared app-thread count. Must be called before any RegisterThread call
// beyond the implicit init-thread registration, and exactly once.
func (tg *TableGroup) CreateTableDone() error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if tg.barrier != nil {
		return fmt.Errorf("tablegroup: CreateTableDone called more than once")
	}
	tg.barrier = newBarrier(int(tg.cfg.NumAppThreads))
	return nil
}

// CreateTable registers a table under tableID, backed by an SSP consistency
// controller, and wires its per-table state into the background worker.
func (tg *TableGroup) CreateTable(tableID int32, staleness int32, sample row.Sample, capacity, lockStripes int) error {
	tg.mu.Lock()
	if _, exists := tg.tables[tableID]; exists {
		tg.mu.Unlock()
		return fmt.Errorf("tablegroup: table %d already exists", tableID)
	}
	tg.mu.Unlock()

	processStorage := storage.New(capacity, lockStripes)
	processStorage.SetMetrics(tableID, metrics.NewCacheMetrics())
	tableOpLog := oplog.New()
	pending := oplog.NewPending()
	rowRequests := rowrequest.New(pending)
	waiters := rowwait.New()

	tg.worker.RegisterTable(&bgworker.TableState{
		TableID:     tableID,
		Storage:     processStorage,
		OpLog:       tableOpLog,
		Pending:     pending,
		RowRequests: rowRequests,
		Sample:      sample,
		Waiters:     waiters,
	})

	controller := consistency.New(
		consistency.TableInfo{TableID: tableID, Staleness: staleness, Sample: sample},
		processStorage,
		tableOpLog,
		rowRequests,
		tg.vectorClock,
		waiters,
		tg.worker,
	)
	controller.SetMetrics(metrics.NewSSPMetrics())

	tg.mu.Lock()
	tg.tables[tableID] = controller
	tg.mu.Unlock()
	return nil
}

// Table returns the consistency controller for tableID.
func (tg *TableGroup) Table(tableID int32) (consistency.Controller, error) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	c, ok := tg.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("tablegroup: no such table %d", tableID)
	}
	return c, nil
}

// RegisterThread assigns the calling thread a unique id in the client's
// local id range, gives it a vector-clock slot, and waits on the
// registration barrier. Must be called before any table operation on this
// thread, and the barrier must not receive more arrivals than
// CreateTableDone declared.
func (tg *TableGroup) RegisterThread() (threadID int32, err error) {
	tg.mu.Lock()
	if tg.nextThreadID > tg.cfg.LocalIDMax {
		tg.mu.Unlock()
		return 0, fmt.Errorf("tablegroup: exhausted local id range [%d, %d]", tg.cfg.LocalIDMin, tg.cfg.LocalIDMax)
	}
	threadID = tg.nextThreadID
	tg.nextThreadID++
	tg.registered[threadID] = struct{}{}
	barrier := tg.barrier
	tg.mu.Unlock()

	tg.vectorClock.AddClock(threadID, 0)
	logger.Info("tablegroup: thread registered", logger.ThreadID(threadID))

	if barrier != nil {
		if err := barrier.arrive(); err != nil {
			return 0, fmt.Errorf("tablegroup: %w", err)
		}
	}
	return threadID, nil
}

// DeregisterThread drops threadID's vector-clock slot so it no longer holds
// back the process-wide minimum.
func (tg *TableGroup) DeregisterThread(threadID int32) {
	tg.mu.Lock()
	delete(tg.registered, threadID)
	tg.mu.Unlock()
	tg.vectorClock.RemoveClock(threadID)
	logger.Info("tablegroup: thread deregistered", logger.ThreadID(threadID))
}

// Clock advances threadID's vector clock by one tick and dispatches to the
// configured tick policy.
func (tg *TableGroup) Clock(ctx context.Context, threadID int32) error {
	newMin := tg.vectorClock.Tick(threadID)
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanTableGroupClock,
		trace.WithAttributes(telemetry.ThreadID(threadID), telemetry.Clock(newMin)))
	defer span.End()

	switch tg.cfg.TickPolicy {
	case Aggressive:
		if newMin != 0 {
			return tg.worker.ClockAllTables(ctx)
		}
		return tg.worker.SendOpLogsAllTables(ctx)
	default: // Conservative
		if newMin != 0 {
			return tg.worker.ClockAllTables(ctx)
		}
		return nil
	}
}

// ShutDown tears down the background worker. Outstanding Gets must have
// already returned.
func (tg *TableGroup) ShutDown() error {
	tg.workerCancel()
	return tg.worker.Stop()
}

// Snapshot reports the current registration/barrier/clock state, for
// introspection by pkg/debugserver. It takes a point-in-time copy; nothing
// in the returned value is shared with TableGroup's internals.
func (tg *TableGroup) Snapshot() Snapshot {
	tg.mu.Lock()
	registered := make([]int32, 0, len(tg.registered))
	for id := range tg.registered {
		registered = append(registered, id)
	}
	tableIDs := make([]int32, 0, len(tg.tables))
	for id := range tg.tables {
		tableIDs = append(tableIDs, id)
	}
	b := tg.barrier
	tg.mu.Unlock()

	snap := Snapshot{
		ClientID:      tg.cfg.ClientID,
		TickPolicy:    tg.cfg.TickPolicy,
		RegisteredIDs: registered,
		TableIDs:      tableIDs,
		MinClock:      tg.vectorClock.GetMinClock(),
		NumClockSlots: tg.vectorClock.NumThreads(),
	}
	if b != nil {
		b.mu.Lock()
		snap.BarrierSize = b.size
		snap.BarrierArrived = b.count
		b.mu.Unlock()
	}
	return snap
}

// Snapshot is a point-in-time view of a TableGroup's internal state.
type Snapshot struct {
	ClientID       int32
	TickPolicy     TickPolicy
	RegisteredIDs  []int32
	TableIDs       []int32
	MinClock       int32
	NumClockSlots  int
	BarrierSize    int
	BarrierArrived int
}

// barrier is a one-shot arrival gate sized at construction, standing in for
// pthread_barrier_t: exactly size calls to arrive() must occur before any of
// them returns, and any arrival beyond size returns an error.
type barrier struct {
	mu       sync.Mutex
	size     int
	count    int
	released chan struct{}
}

func newBarrier(size int) *barrier {
	return &barrier{size: size, released: make(chan struct{})}
}

func (b *barrier) arrive() error {
	b.mu.Lock()
	if b.count >= b.size {
		b.mu.Unlock()
		return fmt.Errorf("barrier: arrival count exceeds declared size %d", b.size)
	}
	b.count++
	last := b.count == b.size
	released := b.released
	b.mu.Unlock()

	if last {
		close(released)
		return nil
	}
	<-released
	return nil
}
