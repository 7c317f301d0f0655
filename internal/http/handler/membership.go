package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chihoangvnn/sunfoods-sub018/internal/membership"

	"github.com/go-chi/chi/v5"
)

// MembershipHandler is the read-only tier/progress API consumed by the
// storefront pages.
type MembershipHandler struct {
	Catalog *membership.Catalog
	Store   *membership.GormStore
}

type tierDTO struct {
	Key              string   `json:"key"`
	Name             string   `json:"name"`
	RequiredSpent    int64    `json:"required_spent"`
	PointsMultiplier float64  `json:"points_multiplier"`
	Benefits         []string `json:"benefits"`
}

func toTierDTO(t membership.Tier) tierDTO {
	return tierDTO{
		Key:              t.Key,
		Name:             t.Name,
		RequiredSpent:    t.RequiredSpent,
		PointsMultiplier: t.PointsMultiplier,
		Benefits:         []string(t.Benefits),
	}
}

func (h *MembershipHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	tiers := h.Catalog.Tiers()
	out := make([]tierDTO, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, toTierDTO(t))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

type customerDTO struct {
	CustomerID           uint64     `json:"customer_id"`
	TotalSpent           int64      `json:"total_spent"`
	PointsBalance        int64      `json:"points_balance"`
	PointsEarnedLifetime int64      `json:"points_earned_lifetime"`
	Tier                 tierDTO    `json:"tier"`
	NextTier             *tierDTO   `json:"next_tier"`
	SpendToNextTier      *int64     `json:"spend_to_next_tier"`
	LastTierUpdate       *time.Time `json:"last_tier_update"`
}

// Customer renders one customer's ledger state with progress to the next tier.
func (h *MembershipHandler) Customer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	rec, err := h.Store.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, membership.ErrRecordNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	tier := h.Catalog.TierFor(rec.TotalSpent)
	dto := customerDTO{
		CustomerID:           rec.CustomerID,
		TotalSpent:           rec.TotalSpent,
		PointsBalance:        rec.PointsBalance,
		PointsEarnedLifetime: rec.PointsEarnedLifetime,
		Tier:                 toTierDTO(tier),
		LastTierUpdate:       rec.LastTierUpdate,
	}
	if next := h.Catalog.NextTierAfter(tier); next != nil {
		n := toTierDTO(*next)
		dto.NextTier = &n
		remaining := next.RequiredSpent - rec.TotalSpent
		dto.SpendToNextTier = &remaining
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dto)
}
