package db

import (
	"fmt"

	"github.com/chihoangvnn/sunfoods-sub018/internal/auth"
	"github.com/chihoangvnn/sunfoods-sub018/internal/automation"
	"github.com/chihoangvnn/sunfoods-sub018/internal/membership"
	"github.com/chihoangvnn/sunfoods-sub018/internal/ordergen"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&membership.Tier{},
		&membership.Record{},
		&membership.ProcessedOrder{},
		&membership.TierTransition{},
		&automation.Job{},
		&automation.ExecutionRecord{},
		&automation.ControlState{},
		&ordergen.StagedOrder{},
		&auth.Operator{},
	); err != nil {
		return err
	}

	// Ledger idempotency: one application per (customer, order).
	if err := gdb.Exec(`create unique index if not exists uq_processed_orders_customer_order on processed_orders(customer_id, order_id);`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_automation_jobs_due on automation_jobs(enabled, globally_enabled, next_run_at);`,
		`create index if not exists idx_automation_executions_job_day on automation_executions(job_id, status, started_at);`,
		`create index if not exists idx_automation_executions_stale on automation_executions(status, started_at);`,
		`create index if not exists idx_tier_transitions_customer on tier_transitions(customer_id, created_at desc);`,
		`create index if not exists idx_staged_orders_pending on automation_staged_orders(job_id, consumed_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
