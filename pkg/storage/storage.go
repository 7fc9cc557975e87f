// Package storage implements ProcessStorage, the fixed-capacity row cache
// that sits behind the consistency controller. It pairs a ClockLRU of
// identical capacity with a row-id-keyed striped lock — a lock domain kept
// deliberately separate from ClockLRU's own slot-keyed lock, since during
// eviction the slot is known before the row id and during a miss-fill the
// row id is known before any slot exists.
package storage

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HelloBinge/petuum/pkg/clocklru"
	"github.com/HelloBinge/petuum/pkg/metrics"
	"github.com/HelloBinge/petuum/pkg/row"
	"github.com/HelloBinge/petuum/pkg/stripedlock"
)

// entry pairs a cached row with the slot ClockLRU tracks it under and a
// refcount of outstanding RowAccessors. A row with a positive refcount
// cannot be evicted even if ClockLRU's CLOCK sweep picks its slot as a
// candidate — Insert waits out the refcount before completing the evict.
type entry struct {
	row     row.Row
	slot    int32
	clock   int32 // cluster clock this row is known fresh as of
	refs    atomic.Int32
	waiters chan struct{} // closed when refs reaches zero, recreated under lock
}

// ProcessStorage is a fixed-capacity row_id -> Row map backed by ClockLRU
// for eviction order and a row-id-striped lock for membership changes.
type ProcessStorage struct {
	capacity int
	lru      *clocklru.ClockLRU
	locks    *stripedlock.Lock // keyed by row_id

	mu      sync.Mutex // guards rows and slotRow
	rows    map[int32]*entry
	slotRow map[int32]int32 // slot -> row_id, kept in step with rows; eviction takes the victim's row id from ClockLRU

	tableID int32
	metrics metrics.CacheMetrics
}

// SetMetrics attaches a metrics sink, associating recorded samples with
// tableID. Passing nil disables collection.
func (s *ProcessStorage) SetMetrics(tableID int32, m metrics.CacheMetrics) {
	s.tableID = tableID
	s.metrics = m
}

// New creates a ProcessStorage with the given capacity and lock-stripe
// width. lockStripes is typically much larger than capacity to keep
// membership-change contention low.
func New(capacity, lockStripes int) *ProcessStorage {
	return &ProcessStorage{
		capacity: capacity,
		lru:      clocklru.New(capacity),
		locks:    stripedlock.New(lockStripes),
		rows:     make(map[int32]*entry, capacity),
		slotRow:  make(map[int32]int32, capacity),
	}
}

// RowAccessor is a scoped reference to a cached row. It must be released
// exactly once; Release is idempotent so a deferred call after an early
// explicit Release is harmless.
type RowAccessor struct {
	storage  *ProcessStorage
	rowID    int32
	e        *entry
	released atomic.Bool
}

// Row returns the underlying row value. Valid until Release.
func (a *RowAccessor) Row() row.Row {
	return a.e.row
}

// Clock returns the cluster clock this row is known fresh as of — the
// clock value the background worker passed to Insert when it last wrote
// this row from a server reply.
func (a *RowAccessor) Clock() int32 {
	return a.e.clock
}

// Release drops this accessor's reference. Once the refcount reaches zero,
// any Insert waiting to evict this row's slot is unblocked.
func (a *RowAccessor) Release() {
	if a.released.Swap(true) {
		return
	}
	if a.e.refs.Add(-1) == 0 {
		a.storage.mu.Lock()
		if a.e.waiters != nil {
			close(a.e.waiters)
			a.e.waiters = nil
		}
		a.storage.mu.Unlock()
	}
}

// Find looks up row_id. On hit it returns a RowAccessor holding a reference
// (the caller must Release it) and bumps the row's recency in ClockLRU.
func (s *ProcessStorage) Find(rowID int32) (*RowAccessor, bool) {
	start := time.Now()
	s.locks.Lock(rowID)
	defer s.locks.Unlock(rowID)

	s.mu.Lock()
	e, ok := s.rows[rowID]
	if ok {
		e.refs.Add(1)
	}
	s.mu.Unlock()
	if !ok {
		metrics.ObserveFind(s.metrics, false, time.Since(start))
		return nil, false
	}

	s.lru.Reference(e.slot)
	metrics.ObserveFind(s.metrics, true, time.Since(start))
	return &RowAccessor{storage: s, rowID: rowID, e: e}, true
}

// Insert adds row_id -> r, evicting via ClockLRU if the cache is full. It
// returns the evicted row id and true if an eviction occurred. Insert
// blocks until any outstanding RowAccessor on the evicted row releases its
// reference — ClockLRU guarantees the candidate it returns is not pinned at
// the slot level, but a reader may still be mid-read at the row level.
//
// rowID and a candidate victim row id are locked together in ascending
// stripe-index order (collapsing to a single lock if they land on the same
// stripe) so this never deadlocks against a concurrent Insert/Find doing
// the reverse pairing.
//
// Inserting a row_id that is already cached replaces its row and clock
// under the slot it already holds, evicting nothing.
func (s *ProcessStorage) Insert(rowID int32, r row.Row, freshClock int32) (evictedRowID int32, evicted bool) {
	start := time.Now()
	defer func() {
		metrics.ObserveInsert(s.metrics, evicted, time.Since(start))
		metrics.RecordSize(s.metrics, s.tableID, s.Len())
	}()

	s.locks.Lock(rowID)
	s.mu.Lock()
	if old, ok := s.rows[rowID]; ok {
		s.rows[rowID] = &entry{row: r, slot: old.slot, clock: freshClock}
		s.mu.Unlock()
		s.locks.Unlock(rowID)
		return 0, false
	}
	full := len(s.rows) >= s.capacity
	s.mu.Unlock()
	s.locks.Unlock(rowID)

	if !full {
		s.locks.Lock(rowID)
		defer s.locks.Unlock(rowID)

		slot := s.lru.Insert(rowID)
		s.mu.Lock()
		s.rows[rowID] = &entry{row: r, slot: slot, clock: freshClock}
		s.slotRow[slot] = rowID
		s.mu.Unlock()
		return 0, false
	}

	victimRowID, slotNum := s.lru.FindOneToEvict()

	sameStripe := s.lockPair(rowID, victimRowID)
	defer s.unlockPair(rowID, victimRowID, sameStripe)

	s.mu.Lock()
	victim, ok := s.rows[victimRowID]
	s.mu.Unlock()

	if ok {
		s.waitForZeroRefs(victim)
	}

	s.mu.Lock()
	delete(s.rows, victimRowID)
	delete(s.slotRow, slotNum)
	s.mu.Unlock()
	s.lru.Evict(slotNum)

	slot := s.lru.Insert(rowID)
	s.mu.Lock()
	s.rows[rowID] = &entry{row: r, slot: slot, clock: freshClock}
	s.slotRow[slot] = rowID
	s.mu.Unlock()

	return victimRowID, true
}

// lockPair locks the stripes for a and b in a fixed order (lowest stripe
// index first) so that any two Insert/Find calls racing over the same two
// row ids always acquire their stripes in the same relative order.
func (s *ProcessStorage) lockPair(a, b int32) (sameStripe bool) {
	ia, ib := s.locks.Index(a), s.locks.Index(b)
	if ia == ib {
		s.locks.Lock(a)
		return true
	}
	if ia < ib {
		s.locks.Lock(a)
		s.locks.Lock(b)
	} else {
		s.locks.Lock(b)
		s.locks.Lock(a)
	}
	return false
}

func (s *ProcessStorage) unlockPair(a, b int32, sameStripe bool) {
	if sameStripe {
		s.locks.Unlock(a)
		return
	}
	s.locks.Unlock(a)
	s.locks.Unlock(b)
}

// waitForZeroRefs blocks until e's refcount reaches zero. Called with
// s.mu unheld and the victim's row-id stripe lock held, so no new RowAccessor
// on this row can be created while we wait.
func (s *ProcessStorage) waitForZeroRefs(e *entry) {
	for {
		s.mu.Lock()
		if e.refs.Load() == 0 {
			s.mu.Unlock()
			return
		}
		if e.waiters == nil {
			e.waiters = make(chan struct{})
		}
		wait := e.waiters
		s.mu.Unlock()
		<-wait
	}
}

// Len returns the number of rows currently cached.
func (s *ProcessStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
