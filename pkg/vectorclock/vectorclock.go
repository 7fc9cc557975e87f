// Package vectorclock implements the multi-threaded vector clock that gates
// SSP staleness checks and detects clock-boundary crossings for the
// background worker.
//
// Each thread registered with a TableGroup owns one slot in the vector,
// keyed by its thread id. Tick advances a single thread's clock and reports
// whether doing so moved the process-wide minimum — the signal a background
// worker uses to decide whether to flush oplogs and notify servers, without
// scanning every thread's clock on every tick.
package vectorclock

import "sync"

// VectorClockMT is a reader/writer-locked vector clock: a map from thread id
// to that thread's local clock, plus a query for the process-wide minimum.
type VectorClockMT struct {
	mu     sync.RWMutex
	clocks map[int32]int32
}

// New creates a vector clock with one slot per id in ids, all starting at 0.
func New(ids []int32) *VectorClockMT {
	vc := &VectorClockMT{
		clocks: make(map[int32]int32, len(ids)),
	}
	for _, id := range ids {
		vc.clocks[id] = 0
	}
	return vc
}

// AddClock registers a new thread id with the given starting clock value.
// Used by TableGroup when a thread registers after initialization.
func (vc *VectorClockMT) AddClock(id, clock int32) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.clocks[id] = clock
}

// RemoveClock drops a thread id from the clock, used on deregistration so it
// no longer holds back the process-wide minimum.
func (vc *VectorClockMT) RemoveClock(id int32) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	delete(vc.clocks, id)
}

// Tick advances id's clock by one and returns the new process-wide minimum
// iff id was the unique slowest thread before the tick; otherwise it returns
// 0. A caller should only act on the boundary-crossing signal when the
// returned value is non-zero — a 0 return does not mean the minimum is 0.
func (vc *VectorClockMT) Tick(id int32) int32 {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	cur, ok := vc.clocks[id]
	if !ok {
		return 0
	}

	min, count := vc.minLocked()
	wasUniqueMin := cur == min && count == 1

	vc.clocks[id] = cur + 1

	if !wasUniqueMin {
		return 0
	}
	newMin, _ := vc.minLocked()
	return newMin
}

// GetClock returns id's current clock value, or 0 if id is not registered.
func (vc *VectorClockMT) GetClock(id int32) int32 {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.clocks[id]
}

// GetMinClock returns the minimum clock value across all registered threads.
// Returns 0 if no threads are registered.
func (vc *VectorClockMT) GetMinClock() int32 {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	min, _ := vc.minLocked()
	return min
}

// NumThreads returns the number of threads currently holding a clock slot.
func (vc *VectorClockMT) NumThreads() int {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return len(vc.clocks)
}

// minLocked computes the minimum clock value and how many threads hold it.
// Callers must hold vc.mu (read or write).
func (vc *VectorClockMT) minLocked() (min int32, count int) {
	first := true
	for _, c := range vc.clocks {
		switch {
		case first:
			min = c
			count = 1
			first = false
		case c < min:
			min = c
			count = 1
		case c == min:
			count++
		}
	}
	return min, count
}
