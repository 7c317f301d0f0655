package membership

import "time"

// Record is the per-customer ledger: cumulative spend, points, and tier.
// It is only ever mutated through Ledger.ApplyOrder.
type Record struct {
	CustomerID           uint64     `gorm:"primaryKey"`
	TotalSpent           int64      `gorm:"not null;default:0"`
	PointsBalance        int64      `gorm:"not null;default:0"`
	PointsEarnedLifetime int64      `gorm:"not null;default:0"`
	TierKey              string     `gorm:"not null"`
	LastTierUpdate       *time.Time `gorm:"type:timestamptz"`
	CreatedAt            time.Time  `gorm:"not null;default:now()"`
	UpdatedAt            time.Time  `gorm:"index;not null;default:now()"`
}

// ProcessedOrder marks an order as already applied to a customer's ledger.
// The unique (customer_id, order_id) index is the idempotency guard.
type ProcessedOrder struct {
	ID           uint64    `gorm:"primaryKey"`
	CustomerID   uint64    `gorm:"index;not null"`
	OrderID      string    `gorm:"not null"`
	OrderTotal   int64     `gorm:"not null"`
	PointsEarned int64     `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;default:now()"`
}

// TierTransition is an append-only audit entry written when an order moves a
// customer across a tier boundary.
type TierTransition struct {
	ID         uint64    `gorm:"primaryKey"`
	CustomerID uint64    `gorm:"index;not null"`
	OrderID    string    `gorm:"not null"`
	FromTier   string    `gorm:"not null"`
	ToTier     string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;default:now()"`
}
