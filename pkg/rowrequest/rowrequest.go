// Package rowrequest implements row-request coalescing: when many app
// threads miss on the same (table_id, row_id) at around the same clock,
// only the first of them triggers a network fetch — later ones piggyback
// on whichever reply satisfies their clock.
//
// It also retains sealed oplogs for exactly as long as some in-flight
// request might still need to replay them: a server may answer a row
// fetch before later-sent updates have reached it, so the client replays
// any oplog version the reply predates before trusting the row.
package rowrequest

import (
	"sync"

	"github.com/google/uuid"

	"github.com/HelloBinge/petuum/pkg/oplog"
)

// RowRequestInfo describes one outstanding or satisfied row request.
type RowRequestInfo struct {
	RequestID   uuid.UUID
	AppThreadID int32
	Clock       int32
	Version     uint32
	Sent        bool
}

type tableRow struct {
	tableID int32
	rowID   int32
}

// Mgr coalesces row requests per (table_id, row_id) and retains oplogs
// until every request that might need them has been answered.
type Mgr struct {
	pendingOpLogs *oplog.PendingOpLogs

	mu              sync.Mutex
	requests        map[tableRow][]RowRequestInfo // ascending clock order
	versionReqCount map[uint32]int32
}

// New creates a Mgr backed by the given PendingOpLogs store.
func New(pendingOpLogs *oplog.PendingOpLogs) *Mgr {
	return &Mgr{
		pendingOpLogs:   pendingOpLogs,
		requests:        make(map[tableRow][]RowRequestInfo),
		versionReqCount: make(map[uint32]int32),
	}
}

// AddRowRequest adds request to the pending list for (tableID, rowID),
// kept in ascending clock order, and reports whether a network fetch
// should actually be sent: true iff the list was empty or request.Clock is
// strictly greater than every prior pending clock for that row. A false
// return means an already in-flight request at a lower-or-equal clock will
// satisfy this one when it's answered.
func (m *Mgr) AddRowRequest(request RowRequestInfo, tableID, rowID int32) (shouldSend bool) {
	key := tableRow{tableID, rowID}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.requests[key]
	shouldSend = true
	for _, existing := range list {
		if existing.Clock >= request.Clock {
			shouldSend = false
			break
		}
	}

	request.Sent = shouldSend
	i := len(list)
	for i > 0 && list[i-1].Clock > request.Clock {
		i--
	}
	list = append(list, RowRequestInfo{})
	copy(list[i+1:], list[i:])
	list[i] = request
	m.requests[key] = list
	m.versionReqCount[request.Version]++
	return shouldSend
}

// InformReply pops every pending request for (tableID, rowID) whose clock
// is <= replyClock, returning their app thread ids. currVersion is the
// oplog version the reply has been brought up to date with, used to decide
// which retained oplogs are no longer needed by anyone.
func (m *Mgr) InformReply(tableID, rowID, replyClock int32, currVersion uint32) []int32 {
	key := tableRow{tableID, rowID}

	m.mu.Lock()
	list := m.requests[key]

	var satisfied []RowRequestInfo
	var remaining []RowRequestInfo
	for _, r := range list {
		if r.Clock <= replyClock {
			satisfied = append(satisfied, r)
		} else {
			remaining = append(remaining, r)
		}
	}
	if len(remaining) == 0 {
		delete(m.requests, key)
	} else {
		m.requests[key] = remaining
	}

	appThreadIDs := make([]int32, 0, len(satisfied))
	drainedVersions := make(map[uint32]struct{})
	for _, r := range satisfied {
		appThreadIDs = append(appThreadIDs, r.AppThreadID)
		m.versionReqCount[r.Version]--
		if m.versionReqCount[r.Version] <= 0 {
			delete(m.versionReqCount, r.Version)
			drainedVersions[r.Version] = struct{}{}
		}
	}
	m.mu.Unlock()

	for v := range drainedVersions {
		m.cleanVersionOpLogs(v, currVersion)
	}
	return appThreadIDs
}

// cleanVersionOpLogs discards every retained oplog at or newer than
// reqVersion that no remaining pending request is at or past, using the
// half-range comparator anchored at currVersion to stay correct across a
// uint32 wrap.
func (m *Mgr) cleanVersionOpLogs(reqVersion, currVersion uint32) {
	m.mu.Lock()
	maxPendingVersion, havePending := m.maxPendingVersionLocked(currVersion)
	retained := m.pendingOpLogs.Versions()
	m.mu.Unlock()

	for _, v := range retained {
		if oplog.VersionLess(v, reqVersion, currVersion) {
			continue // v < reqVersion: older than the drained version
		}
		if havePending && !oplog.VersionLess(maxPendingVersion, v, currVersion) {
			continue // some pending request's version >= v; keep it
		}
		m.pendingOpLogs.Delete(v)
	}
}

// maxPendingVersionLocked returns the largest version (by the wrap-aware
// comparator anchored at currVersion) among versions with pending request
// counts. Callers must hold m.mu.
func (m *Mgr) maxPendingVersionLocked(currVersion uint32) (max uint32, ok bool) {
	first := true
	for v, count := range m.versionReqCount {
		if count <= 0 {
			continue
		}
		if first || oplog.VersionLess(max, v, currVersion) {
			max = v
			first = false
		}
	}
	return max, !first
}
