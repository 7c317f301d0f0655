package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chihoangvnn/sunfoods-sub018/internal/membership"
)

// OrderHandler is the order-completion trigger: the order subsystem calls it
// whenever an order reaches a state that counts toward membership. Duplicate
// deliveries are safe; the ledger applies each order id once.
type OrderHandler struct {
	Ledger *membership.Ledger
}

type orderCompletedReq struct {
	CustomerID uint64 `json:"customer_id"`
	OrderID    string `json:"order_id"`
	OrderTotal int64  `json:"order_total"`
}

func (h *OrderHandler) Completed(w http.ResponseWriter, r *http.Request) {
	var req orderCompletedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)

	out, err := h.Ledger.ApplyOrder(r.Context(), req.CustomerID, req.OrderID, req.OrderTotal)
	if err != nil {
		if errors.Is(err, membership.ErrInvalidOrder) {
			http.Error(w, "invalid order", http.StatusBadRequest)
			return
		}
		// The order subsystem retries until crediting succeeds.
		http.Error(w, "membership update pending retry", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"already_processed":  out.AlreadyProcessed,
		"previous_tier":      out.PreviousTier.Key,
		"new_tier":           out.NewTier.Key,
		"tier_upgraded":      out.TierUpgraded,
		"points_earned":      out.PointsEarned,
		"new_points_balance": out.NewPointsBalance,
		"total_spent":        out.TotalSpent,
	})
}
