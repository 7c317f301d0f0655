package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chihoangvnn/sunfoods-sub018/internal/automation"

	"github.com/go-chi/chi/v5"
)

// JobHandler exposes automation jobs read-only plus the owner kill switch.
// Schedules and timestamps are owned by the configuration API and the
// coordinator.
type JobHandler struct {
	Store   *automation.Store
	History *automation.ExecutionLog
}

type jobDTO struct {
	ID                uint64          `json:"id"`
	OwnerID           uint64          `json:"owner_id"`
	Name              string          `json:"name"`
	Frequency         string          `json:"frequency"`
	Params            json.RawMessage `json:"params"`
	Enabled           bool            `json:"enabled"`
	GloballyEnabled   bool            `json:"globally_enabled"`
	LastRunAt         *time.Time      `json:"last_run_at"`
	NextRunAt         *time.Time      `json:"next_run_at"`
	CumulativeOrders  int64           `json:"cumulative_orders"`
	CumulativeRevenue int64           `json:"cumulative_revenue"`
}

func toJobDTO(j automation.Job) jobDTO {
	return jobDTO{
		ID:                j.ID,
		OwnerID:           j.OwnerID,
		Name:              j.Name,
		Frequency:         string(j.Frequency),
		Params:            j.Params,
		Enabled:           j.Enabled,
		GloballyEnabled:   j.GloballyEnabled,
		LastRunAt:         j.LastRunAt,
		NextRunAt:         j.NextRunAt,
		CumulativeOrders:  j.CumulativeOrders,
		CumulativeRevenue: j.CumulativeRevenue,
	}
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.List(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobDTO(j))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *JobHandler) SetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := jobID(r)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		if err := h.Store.SetEnabled(r.Context(), id, enabled); err != nil {
			if errors.Is(err, automation.ErrJobNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type executionDTO struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	OrdersGenerated int        `json:"orders_generated"`
	Revenue         int64      `json:"revenue"`
	Error           *string    `json:"error"`
}

// HistoryForJob lists the most recent execution attempts, newest first. The
// admin UI renders failures as "automation last run failed: <reason>".
func (h *JobHandler) HistoryForJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if _, err := h.Store.Get(r.Context(), id); err != nil {
		if errors.Is(err, automation.ErrJobNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := h.History.ListForJob(r.Context(), id, limit)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]executionDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, executionDTO{
			ID:              rec.ID,
			Status:          rec.Status,
			StartedAt:       rec.StartedAt,
			CompletedAt:     rec.CompletedAt,
			OrdersGenerated: rec.OrdersGenerated,
			Revenue:         rec.Revenue,
			Error:           rec.Error,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func jobID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}
