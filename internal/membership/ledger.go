package membership

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var ErrInvalidOrder = errors.New("invalid order")

// Txn gives ApplyOrder access to one customer's ledger rows. Implementations
// must serialize concurrent transactions for the same customer.
type Txn interface {
	// Record returns the customer's record, creating a base-tier record if
	// none exists. The row stays locked until the transaction ends.
	Record() (*Record, error)
	OrderProcessed(orderID string) (bool, error)
	SaveRecord(rec *Record) error
	AddProcessedOrder(po *ProcessedOrder) error
	AddTierTransition(tt *TierTransition) error
}

// Store runs fn atomically against a single customer's ledger. fn returning an
// error rolls back every write made through the Txn.
type Store interface {
	WithCustomer(ctx context.Context, customerID uint64, fn func(Txn) error) error
}

// ApplyOutcome describes the effect of one ApplyOrder call.
type ApplyOutcome struct {
	PreviousTier     Tier
	NewTier          Tier
	PointsEarned     int64
	NewPointsBalance int64
	TotalSpent       int64
	TierUpgraded     bool
	// AlreadyProcessed is set when the order was applied by an earlier call
	// and this invocation changed nothing.
	AlreadyProcessed bool
}

// Ledger applies completed orders to customer membership records exactly once
// per order id.
type Ledger struct {
	store   Store
	catalog *Catalog
	now     func() time.Time
}

func NewLedger(store Store, catalog *Catalog) *Ledger {
	return &Ledger{store: store, catalog: catalog, now: time.Now}
}

// PointsFor computes earned points: one point per thousand of order value,
// scaled by the tier multiplier and floored. The multiplier belongs to the
// tier reached after the order is counted.
func PointsFor(orderTotal int64, multiplier float64) int64 {
	return int64(math.Floor(float64(orderTotal/1000) * multiplier))
}

// ApplyOrder credits orderTotal to the customer's cumulative spend, awards
// points, and recomputes the tier, all in one transaction. Calling it again
// with the same orderID is a no-op that reports the current state.
func (l *Ledger) ApplyOrder(ctx context.Context, customerID uint64, orderID string, orderTotal int64) (ApplyOutcome, error) {
	orderID = strings.TrimSpace(orderID)
	if customerID == 0 || orderID == "" {
		return ApplyOutcome{}, errors.Wrap(ErrInvalidOrder, "missing customer or order id")
	}
	if orderTotal < 0 {
		return ApplyOutcome{}, errors.Wrapf(ErrInvalidOrder, "negative order total %d", orderTotal)
	}

	var out ApplyOutcome
	err := l.store.WithCustomer(ctx, customerID, func(txn Txn) error {
		rec, err := txn.Record()
		if err != nil {
			return err
		}

		done, err := txn.OrderProcessed(orderID)
		if err != nil {
			return err
		}
		if done {
			cur := l.catalog.TierFor(rec.TotalSpent)
			out = ApplyOutcome{
				PreviousTier:     cur,
				NewTier:          cur,
				NewPointsBalance: rec.PointsBalance,
				TotalSpent:       rec.TotalSpent,
				AlreadyProcessed: true,
			}
			return nil
		}

		prev := l.catalog.TierFor(rec.TotalSpent)
		newTotal := rec.TotalSpent + orderTotal
		newTier := l.catalog.TierFor(newTotal)
		points := PointsFor(orderTotal, newTier.PointsMultiplier)
		now := l.now()

		rec.TotalSpent = newTotal
		rec.PointsBalance += points
		rec.PointsEarnedLifetime += points
		rec.TierKey = newTier.Key
		rec.UpdatedAt = now

		upgraded := newTier.Key != prev.Key
		if upgraded {
			rec.LastTierUpdate = &now
			if err := txn.AddTierTransition(&TierTransition{
				CustomerID: customerID,
				OrderID:    orderID,
				FromTier:   prev.Key,
				ToTier:     newTier.Key,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}

		if err := txn.SaveRecord(rec); err != nil {
			return err
		}
		if err := txn.AddProcessedOrder(&ProcessedOrder{
			CustomerID:   customerID,
			OrderID:      orderID,
			OrderTotal:   orderTotal,
			PointsEarned: points,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		out = ApplyOutcome{
			PreviousTier:     prev,
			NewTier:          newTier,
			PointsEarned:     points,
			NewPointsBalance: rec.PointsBalance,
			TotalSpent:       newTotal,
			TierUpgraded:     upgraded,
		}
		return nil
	})
	if err != nil {
		return ApplyOutcome{}, errors.Wrapf(err, "apply order %s for customer %d", orderID, customerID)
	}
	return out, nil
}
