package debugserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HelloBinge/petuum/pkg/tablegroup"
)

type stubSnapshotter struct {
	snap tablegroup.Snapshot
}

func (s *stubSnapshotter) Snapshot() tablegroup.Snapshot {
	return s.snap
}

func TestTableGroupHandler_NilSnapshotter(t *testing.T) {
	handler := newTableGroupHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/debugz/tablegroup", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp tableGroupResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "unavailable" {
		t.Errorf("Status = %q, want unavailable", resp.Status)
	}
}

func TestTableGroupHandler_ReportsSnapshot(t *testing.T) {
	stub := &stubSnapshotter{snap: tablegroup.Snapshot{
		ClientID:       3,
		TickPolicy:     tablegroup.Aggressive,
		RegisteredIDs:  []int32{0, 1, 2},
		TableIDs:       []int32{0},
		MinClock:       5,
		NumClockSlots:  3,
		BarrierSize:    3,
		BarrierArrived: 2,
	}}
	handler := newTableGroupHandler(stub)
	req := httptest.NewRequest(http.MethodGet, "/debugz/tablegroup", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp tableGroupResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data == nil {
		t.Fatal("Data = nil, want populated snapshot")
	}
	if resp.Data.ClientID != 3 {
		t.Errorf("ClientID = %d, want 3", resp.Data.ClientID)
	}
	if resp.Data.TickPolicy != "aggressive" {
		t.Errorf("TickPolicy = %q, want aggressive", resp.Data.TickPolicy)
	}
	if resp.Data.MinClock != 5 {
		t.Errorf("MinClock = %d, want 5", resp.Data.MinClock)
	}
}

func TestNewServer_AppliesDefaults(t *testing.T) {
	s := NewServer(Config{}, nil)
	if s.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090 (default)", s.Port())
	}
}

func TestRouter_RootRedirectsToTableGroup(t *testing.T) {
	router := newRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loc := w.Header().Get("Location"); loc != "/debugz/tablegroup" {
		t.Errorf("Location = %q, want /debugz/tablegroup", loc)
	}
}
