package handler

import (
	"encoding/json"
	"net/http"

	"github.com/chihoangvnn/sunfoods-sub018/internal/automation"
)

// ControlHandler exposes the global switchboard. The coordinator reads the
// same row before every job, so a toggle takes effect within one job's
// latency.
type ControlHandler struct {
	Store *automation.ControlStore
}

// controlDTO mirrors the switchboard row. A max_concurrent_executions of
// zero means no cap; halting all runs is the job of master_enabled,
// emergency_stop, or maintenance_mode.
type controlDTO struct {
	MasterEnabled           bool `json:"master_enabled"`
	EmergencyStop           bool `json:"emergency_stop"`
	MaintenanceMode         bool `json:"maintenance_mode"`
	MaxConcurrentExecutions int  `json:"max_concurrent_executions"`
}

func (h *ControlHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.State(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(controlDTO{
		MasterEnabled:           st.MasterEnabled,
		EmergencyStop:           st.EmergencyStop,
		MaintenanceMode:         st.MaintenanceMode,
		MaxConcurrentExecutions: st.MaxConcurrentExecutions,
	})
}

func (h *ControlHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req controlDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.MaxConcurrentExecutions < 0 {
		http.Error(w, "invalid concurrency cap", http.StatusBadRequest)
		return
	}

	err := h.Store.Update(r.Context(), automation.ControlState{
		MasterEnabled:           req.MasterEnabled,
		EmergencyStop:           req.EmergencyStop,
		MaintenanceMode:         req.MaintenanceMode,
		MaxConcurrentExecutions: req.MaxConcurrentExecutions,
	})
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
