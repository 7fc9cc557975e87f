// Package clocklru implements the CLOCK approximate-LRU eviction policy that
// backs ProcessStorage. It tracks nothing about row contents — only which
// row id occupies which slot, and a per-slot stale bit the CLOCK sweep
// sets on its way around and Reference clears.
//
// The algorithm is the textbook second-chance CLOCK: a fixed ring of slots,
// an insert hand that fills empty slots (or reuses freed ones) in order, and
// an evict hand that sweeps the ring setting stale bits until it finds a
// slot that was already stale, which becomes the victim. A referenced slot
// survives one sweep per reference.
package clocklru

import (
	"fmt"
	"sync/atomic"

	"github.com/HelloBinge/petuum/pkg/stripedlock"
)

// MaxNumRounds bounds how many full sweeps of the ring FindOneToEvict will
// make looking for a victim before giving up. Two full rounds is enough for
// CLOCK to converge under any reference pattern that doesn't pin every slot;
// hitting the bound means callers are holding more rows live than the cache
// has capacity for.
const MaxNumRounds = 2

const emptyRowID = int32(-1)

type slot struct {
	rowID int32 // emptyRowID when unoccupied
	stale atomic.Bool
}

// ClockLRU is a fixed-capacity CLOCK ring mapping slots to row ids.
type ClockLRU struct {
	capacity int
	slots    []slot
	locks    *stripedlock.Lock // keyed by slot number

	insertHand atomic.Int32
	evictHand  atomic.Int32

	free chan int32 // freed slot numbers, reused before the insert hand advances
}

// New creates a ClockLRU with room for capacity rows. All slots start empty;
// Insert fills them in ring order before any eviction is ever needed.
func New(capacity int) *ClockLRU {
	if capacity < 1 {
		panic("clocklru: capacity must be at least 1")
	}
	c := &ClockLRU{
		capacity: capacity,
		slots:    make([]slot, capacity),
		locks:    stripedlock.New(capacity),
		free:     make(chan int32, capacity),
	}
	for i := range c.slots {
		c.slots[i].rowID = emptyRowID
	}
	return c
}

// Capacity returns the fixed number of slots.
func (c *ClockLRU) Capacity() int {
	return c.capacity
}

// Insert claims a slot for rowID and returns its slot number. The caller
// must already know the slot is available — either because FindOneToEvict/
// Evict freed one, or because the ring has never filled. Insert does not
// evict on the caller's behalf.
func (c *ClockLRU) Insert(rowID int32) int32 {
	s := c.claimSlot()
	c.locks.Lock(s)
	c.slots[s].rowID = rowID
	c.slots[s].stale.Store(true)
	c.locks.Unlock(s)
	return s
}

// claimSlot returns a free slot number, preferring one an eviction just
// freed over advancing the insert hand into virgin territory.
func (c *ClockLRU) claimSlot() int32 {
	select {
	case s := <-c.free:
		return s
	default:
	}
	s := c.insertHand.Load()
	c.insertHand.Store((s + 1) % int32(c.capacity))
	return s
}

// Reference marks slot as recently used, giving it one extra reservation
// against the next eviction sweep. A reference to a slot mid-eviction is
// silently dropped rather than blocked on — the eviction scan will simply
// see it as not-stale on some later sweep, or the slot will already have a
// fresh row by the time anyone checks again.
func (c *ClockLRU) Reference(s int32) {
	if !c.locks.TryLock(s) {
		return
	}
	defer c.locks.Unlock(s)
	if c.slots[s].rowID != emptyRowID {
		c.slots[s].stale.Store(false)
	}
}

// FindOneToEvict sweeps the ring from the current evict hand, marking the
// occupied slots it passes over stale and stopping at the first occupied
// slot it finds already stale (not referenced since Insert or the last
// sweep). It returns the occupant row id and
// slot number; the caller must follow up with either Evict or NoEvict to
// release the slot's lock and commit the decision.
//
// FindOneToEvict panics if it completes MaxNumRounds full sweeps without
// finding a victim — every slot is pinned (locked or freshly referenced) on
// every pass, meaning callers are holding more rows live at once than the
// cache has room for. That is a capacity-planning bug, not a transient
// condition, so it is not worth retrying.
func (c *ClockLRU) FindOneToEvict() (rowID int32, slotNum int32) {
	rounds := 0
	scanned := 0

	for {
		s := c.evictHand.Load()
		c.evictHand.Store((s + 1) % int32(c.capacity))

		scanned++
		if scanned > c.capacity {
			scanned = 1
			rounds++
			if rounds >= MaxNumRounds {
				panic(fmt.Sprintf("clocklru: no eviction candidate found after %d rounds over %d slots; capacity exceeded by pinned rows", rounds, c.capacity))
			}
		}

		if !c.locks.TryLock(s) {
			continue
		}

		if c.slots[s].rowID == emptyRowID {
			c.locks.Unlock(s)
			continue
		}

		if c.slots[s].stale.Load() {
			return c.slots[s].rowID, s // caller holds the lock; must call Evict or NoEvict
		}

		c.slots[s].stale.Store(true)
		c.locks.Unlock(s)
	}
}

// Evict commits the eviction decided by the FindOneToEvict call that
// returned slotNum, clearing the slot, releasing its lock, and returning it
// to the free list for reuse.
func (c *ClockLRU) Evict(slotNum int32) {
	c.slots[slotNum].rowID = emptyRowID
	c.locks.Unlock(slotNum)
	c.free <- slotNum
}

// NoEvict aborts the eviction decided by the FindOneToEvict call that
// returned slotNum, leaving its row in place and releasing the lock without
// freeing the slot. Used when a caller decides the candidate shouldn't be
// evicted after all, e.g. it turns out to still be referenced elsewhere.
func (c *ClockLRU) NoEvict(slotNum int32) {
	c.locks.Unlock(slotNum)
}
