// Package oplog implements the client-local operation log: the pending
// column deltas an app thread accumulates between clock ticks (TableOpLog),
// and the sealed per-version snapshots the background worker retains until
// every outstanding row request that might need them has been answered
// (PendingOpLogs).
//
// Versions are monotone uint32 counters that wrap. All version comparisons
// in this package go through VersionLess rather than a plain `<`, since a
// version near the top of the uint32 range is still "older" than one that
// has wrapped around to a small number.
package oplog

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// RowOpLog is a sealed snapshot of pending deltas: row_id -> column_id ->
// accumulated delta.
type RowOpLog map[int32]map[int32]float64

// TableOpLog accumulates column deltas per row between clock-tick
// boundaries. ApplyUpdate/ApplyBatchUpdate are the hot path called from app
// threads on every Inc/BatchInc; Seal is called once per tick by the
// background worker to snapshot and reset.
type TableOpLog struct {
	mu     sync.Mutex
	deltas RowOpLog
}

// New returns an empty TableOpLog.
func New() *TableOpLog {
	return &TableOpLog{deltas: make(RowOpLog)}
}

// ApplyUpdate accumulates delta onto (rowID, columnID)'s pending total.
func (t *TableOpLog) ApplyUpdate(rowID, columnID int32, delta float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.deltas[rowID]
	if !ok {
		row = make(map[int32]float64)
		t.deltas[rowID] = row
	}
	row[columnID] += delta
}

// ApplyBatchUpdate accumulates each deltas[i] onto (rowID, columnIDs[i]).
// Panics if the two slices have different lengths.
func (t *TableOpLog) ApplyBatchUpdate(rowID int32, columnIDs []int32, deltas []float64) {
	if len(columnIDs) != len(deltas) {
		panic("oplog: ApplyBatchUpdate column/delta length mismatch")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.deltas[rowID]
	if !ok {
		row = make(map[int32]float64)
		t.deltas[rowID] = row
	}
	for i, col := range columnIDs {
		row[col] += deltas[i]
	}
}

// RowDeltas returns a copy of the currently pending deltas for rowID,
// without removing them. Read-your-writes for a row already cached in
// ProcessStorage is handled at write time instead, by Inc/BatchInc mirroring
// each delta directly onto the cached row; RowDeltas exists for callers that
// need the pending set itself rather than a row with it already applied.
func (t *TableOpLog) RowDeltas(rowID int32) map[int32]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.deltas[rowID]
	if !ok {
		return nil
	}
	cp := make(map[int32]float64, len(row))
	for k, v := range row {
		cp[k] = v
	}
	return cp
}

// Seal atomically returns the accumulated deltas and resets the log to
// empty. Called once per clock tick by the background worker to produce
// the oplog snapshot it ships to the server and retains in PendingOpLogs.
func (t *TableOpLog) Seal() RowOpLog {
	t.mu.Lock()
	defer t.mu.Unlock()
	sealed := t.deltas
	t.deltas = make(RowOpLog)
	return sealed
}

// PeekAll returns a deep copy of the currently accumulated deltas across
// every row, without resetting the log. Used by the "aggressive" clock
// mode to push a freshness update to the server without completing a
// formal version flush.
func (t *TableOpLog) PeekAll() RowOpLog {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(RowOpLog, len(t.deltas))
	for rowID, cols := range t.deltas {
		cpCols := make(map[int32]float64, len(cols))
		for col, delta := range cols {
			cpCols[col] = delta
		}
		cp[rowID] = cpCols
	}
	return cp
}

// PendingOpLogs retains sealed oplog snapshots by version. rowrequest.Mgr
// prunes it, keeping an oplog of version V while any unanswered request of
// version V or later exists.
type PendingOpLogs struct {
	mu   sync.Mutex
	logs map[uint32]RowOpLog
}

// NewPending returns an empty PendingOpLogs.
func NewPending() *PendingOpLogs {
	return &PendingOpLogs{logs: make(map[uint32]RowOpLog)}
}

// Add retains oplog under version.
func (p *PendingOpLogs) Add(version uint32, log RowOpLog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs[version] = log
}

// Get returns the oplog retained for version, if any.
func (p *PendingOpLogs) Get(version uint32) (RowOpLog, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	log, ok := p.logs[version]
	return log, ok
}

// Delete discards the oplog retained for version.
func (p *PendingOpLogs) Delete(version uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.logs, version)
}

// Versions returns the set of versions currently retained. Used by
// rowrequest.Mgr's pruning and the background worker's replay to walk the
// retained versions without holding p's lock across that walk.
func (p *PendingOpLogs) Versions() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint32, 0, len(p.logs))
	for v := range p.logs {
		out = append(out, v)
	}
	return out
}

// Serialize encodes a RowOpLog as the wire payload for a KindOpLogUpdate
// message: a row count, then per row its id, column count, and (column id,
// delta) pairs, all little-endian.
func (l RowOpLog) Serialize() ([]byte, error) {
	size := 4
	for _, cols := range l {
		size += 4 + 4 + len(cols)*(4+8)
	}
	buf := make([]byte, size)

	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(l)))
	off += 4
	for rowID, cols := range l {
		binary.LittleEndian.PutUint32(buf[off:], uint32(rowID))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(cols)))
		off += 4
		for colID, delta := range cols {
			binary.LittleEndian.PutUint32(buf[off:], uint32(colID))
			off += 4
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(delta))
			off += 8
		}
	}
	return buf, nil
}

// DeserializeRowOpLog decodes a payload produced by RowOpLog.Serialize.
func DeserializeRowOpLog(data []byte) (RowOpLog, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("oplog: deserialize: payload too short (%d bytes)", len(data))
	}
	off := 0
	numRows := binary.LittleEndian.Uint32(data[off:])
	off += 4

	out := make(RowOpLog, numRows)
	for i := uint32(0); i < numRows; i++ {
		if off+8 > len(data) {
			return nil, fmt.Errorf("oplog: deserialize: truncated row header at row %d", i)
		}
		rowID := int32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		numCols := binary.LittleEndian.Uint32(data[off:])
		off += 4

		cols := make(map[int32]float64, numCols)
		for c := uint32(0); c < numCols; c++ {
			if off+12 > len(data) {
				return nil, fmt.Errorf("oplog: deserialize: truncated column at row %d col %d", i, c)
			}
			colID := int32(binary.LittleEndian.Uint32(data[off:]))
			off += 4
			delta := math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
			off += 8
			cols[colID] = delta
		}
		out[rowID] = cols
	}
	if off != len(data) {
		return nil, fmt.Errorf("oplog: deserialize: %d trailing bytes", len(data)-off)
	}
	return out, nil
}

// VersionLess reports whether a is "older" than b, treating the uint32
// version space as a half-range modulo 2^32 anchored at anchor. Plain `a <
// b` breaks the moment a version wraps past 0xFFFFFFFF; anchoring at a
// version known to be within the live window (typically curr_version) keeps
// the comparison correct across the wrap.
func VersionLess(a, b, anchor uint32) bool {
	return int32(a-anchor) < int32(b-anchor)
}
