package debugserver

import (
	"encoding/json"
	"net/http"
	"time"
)

// tableGroupResponse is the JSON body returned by /debugz/tablegroup.
type tableGroupResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Data      *tableGroupSnapshotDTO `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

type tableGroupSnapshotDTO struct {
	ClientID       int32   `json:"client_id"`
	TickPolicy     string  `json:"tick_policy"`
	RegisteredIDs  []int32 `json:"registered_thread_ids"`
	TableIDs       []int32 `json:"table_ids"`
	MinClock       int32   `json:"min_clock"`
	NumClockSlots  int     `json:"num_clock_slots"`
	BarrierSize    int     `json:"barrier_size"`
	BarrierArrived int     `json:"barrier_arrived"`
}

// newTableGroupHandler returns the handler for GET /debugz/tablegroup,
// reporting registration, barrier, and clock state. Reports unavailable if
// tg is nil, which happens when a process runs the debug server before a
// TableGroup has been constructed.
func newTableGroupHandler(tg Snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tg == nil {
			writeJSON(w, http.StatusServiceUnavailable, tableGroupResponse{
				Status:    "unavailable",
				Timestamp: time.Now().UTC(),
				Error:     "table group not initialized",
			})
			return
		}

		snap := tg.Snapshot()
		writeJSON(w, http.StatusOK, tableGroupResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Data: &tableGroupSnapshotDTO{
				ClientID:       snap.ClientID,
				TickPolicy:     snap.TickPolicy.String(),
				RegisteredIDs:  snap.RegisteredIDs,
				TableIDs:       snap.TableIDs,
				MinClock:       snap.MinClock,
				NumClockSlots:  snap.NumClockSlots,
				BarrierSize:    snap.BarrierSize,
				BarrierArrived: snap.BarrierArrived,
			},
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
