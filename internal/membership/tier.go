package membership

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

// Tier is one membership level, unlocked by cumulative spend.
type Tier struct {
	ID               uint64         `gorm:"primaryKey"`
	Key              string         `gorm:"uniqueIndex;not null"`
	Name             string         `gorm:"not null"`
	RequiredSpent    int64          `gorm:"not null;default:0"`
	PointsMultiplier float64        `gorm:"not null;default:1"`
	Benefits         pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	CreatedAt        time.Time      `gorm:"not null;default:now()"`
}

// Catalog is the static ordered tier table. It is built once at startup and is
// safe for concurrent reads.
type Catalog struct {
	// ascending by RequiredSpent
	tiers []Tier
}

// NewCatalog validates and orders the tier set. Exactly one tier must have a
// zero threshold (the base tier), thresholds must be strictly increasing, and
// multipliers must be at least 1.
func NewCatalog(tiers []Tier) (*Catalog, error) {
	if len(tiers) == 0 {
		return nil, errors.New("tier catalog is empty")
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RequiredSpent < sorted[j].RequiredSpent
	})

	if sorted[0].RequiredSpent != 0 {
		return nil, errors.Newf("no base tier: lowest threshold is %d, want 0", sorted[0].RequiredSpent)
	}
	for i, t := range sorted {
		if t.Key == "" {
			return nil, errors.New("tier with empty key")
		}
		if t.PointsMultiplier < 1 {
			return nil, errors.Newf("tier %q: points multiplier %v below 1", t.Key, t.PointsMultiplier)
		}
		if i > 0 && t.RequiredSpent <= sorted[i-1].RequiredSpent {
			return nil, errors.Newf("tier %q: threshold %d not above %q (%d)",
				t.Key, t.RequiredSpent, sorted[i-1].Key, sorted[i-1].RequiredSpent)
		}
	}

	return &Catalog{tiers: sorted}, nil
}

// TierFor returns the tier with the largest threshold not exceeding totalSpent.
// Negative spend maps to the base tier.
func (c *Catalog) TierFor(totalSpent int64) Tier {
	for i := len(c.tiers) - 1; i >= 0; i-- {
		if c.tiers[i].RequiredSpent <= totalSpent {
			return c.tiers[i]
		}
	}
	// Unreachable while the base threshold is 0, but defined anyway.
	return c.tiers[0]
}

// NextTierAfter returns the tier immediately above t, or nil if t is the highest.
func (c *Catalog) NextTierAfter(t Tier) *Tier {
	for i, cur := range c.tiers {
		if cur.Key == t.Key {
			if i+1 < len(c.tiers) {
				next := c.tiers[i+1]
				return &next
			}
			return nil
		}
	}
	return nil
}

// Tiers returns the catalog in ascending threshold order.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// DefaultTiers is the seed catalog used when the tiers table is empty.
func DefaultTiers() []Tier {
	return []Tier{
		{Key: "member", Name: "Thành viên", RequiredSpent: 0, PointsMultiplier: 1,
			Benefits: pq.StringArray{"Tích điểm mỗi đơn hàng"}},
		{Key: "silver", Name: "Bạc", RequiredSpent: 1_000_000, PointsMultiplier: 1.2,
			Benefits: pq.StringArray{"Tích điểm x1.2", "Ưu đãi sinh nhật"}},
		{Key: "gold", Name: "Vàng", RequiredSpent: 5_000_000, PointsMultiplier: 1.5,
			Benefits: pq.StringArray{"Tích điểm x1.5", "Ưu đãi sinh nhật", "Miễn phí giao hàng"}},
		{Key: "diamond", Name: "Kim cương", RequiredSpent: 20_000_000, PointsMultiplier: 2,
			Benefits: pq.StringArray{"Tích điểm x2", "Ưu đãi sinh nhật", "Miễn phí giao hàng", "Chăm sóc riêng"}},
	}
}
