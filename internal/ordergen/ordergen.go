// Package ordergen runs automation jobs against orders staged by the back
// office. Which catalog items an automation picks is decided upstream; this
// executor only drains what was staged for the job and reports the outcome.
package ordergen

import (
	"context"
	"time"

	"github.com/chihoangvnn/sunfoods-sub018/internal/automation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StagedOrder is one order prepared for an automation job but not yet counted
// by a run.
type StagedOrder struct {
	ID         uint64     `gorm:"primaryKey"`
	JobID      uint64     `gorm:"index;not null"`
	CustomerID uint64     `gorm:"not null"`
	OrderID    string     `gorm:"uniqueIndex;not null"`
	Total      int64      `gorm:"not null"`
	ConsumedAt *time.Time `gorm:"type:timestamptz;index"`
	CreatedAt  time.Time  `gorm:"not null;default:now()"`
}

func (StagedOrder) TableName() string { return "automation_staged_orders" }

// Executor drains staged orders for a job, once each.
type Executor struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Executor {
	return &Executor{DB: db}
}

// Execute consumes every unconsumed staged order for the job and returns them
// as the run's outcome. A run with nothing staged succeeds with an empty
// outcome.
func (e *Executor) Execute(ctx context.Context, job *automation.Job) (*automation.Outcome, error) {
	var out automation.Outcome

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var staged []StagedOrder
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("job_id = ? AND consumed_at IS NULL", job.ID).
			Order("id asc").
			Find(&staged).Error
		if err != nil {
			return err
		}
		if len(staged) == 0 {
			return nil
		}

		now := time.Now()
		ids := make([]uint64, 0, len(staged))
		for _, s := range staged {
			ids = append(ids, s.ID)
			out.Orders = append(out.Orders, automation.GeneratedOrder{
				CustomerID: s.CustomerID,
				OrderID:    s.OrderID,
				Total:      s.Total,
			})
			out.TotalRevenue += s.Total
		}

		return tx.Model(&StagedOrder{}).
			Where("id IN ?", ids).
			Update("consumed_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Stage queues one order for a job's next run.
func (e *Executor) Stage(ctx context.Context, s *StagedOrder) error {
	return e.DB.WithContext(ctx).Create(s).Error
}
