// Package automation is the recurring sales-automation engine: recurrence
// calculation, run gating, global control, and the execution coordinator.
package automation

import (
	"encoding/json"
	"time"
)

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Job is one configured recurring automation. Timestamps and cumulative totals
// are written only by the coordinator; the owner toggles the flags and edits
// the schedule through the config API.
type Job struct {
	ID      uint64 `gorm:"primaryKey"`
	OwnerID uint64 `gorm:"index;not null"`
	Name    string `gorm:"type:text;not null"`

	Frequency Frequency       `gorm:"type:text;not null"`
	Params    json.RawMessage `gorm:"type:jsonb;not null;default:'{}'::jsonb"`

	// Both switches must be on for the job to run.
	Enabled         bool `gorm:"not null;default:true"`
	GloballyEnabled bool `gorm:"not null;default:true"`

	LastRunAt *time.Time `gorm:"type:timestamptz"`
	NextRunAt *time.Time `gorm:"type:timestamptz;index"`

	CumulativeOrders  int64 `gorm:"not null;default:0"`
	CumulativeRevenue int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Job) TableName() string { return "automation_jobs" }

// Schedule decodes and validates the job's schedule parameters.
func (j *Job) Schedule() (ScheduleParams, error) {
	return ParseScheduleParams(j.Frequency, j.Params)
}

// Execution statuses. A record transitions started -> completed or
// started -> failed and is never mutated afterwards.
const (
	ExecutionStarted   = "started"
	ExecutionCompleted = "completed"
	ExecutionFailed    = "failed"
)

// ExecutionRecord is the append-only audit entry for one execution attempt.
type ExecutionRecord struct {
	ID     string `gorm:"primaryKey"`
	JobID  uint64 `gorm:"index;not null"`
	Status string `gorm:"index;not null"`

	StartedAt   time.Time  `gorm:"index;not null"`
	CompletedAt *time.Time `gorm:"type:timestamptz"`

	OrdersGenerated int     `gorm:"not null;default:0"`
	Revenue         int64   `gorm:"not null;default:0"`
	Error           *string `gorm:"type:text"`
}

func (ExecutionRecord) TableName() string { return "automation_executions" }

// ControlState is the singleton operator switchboard. It is re-read before
// every job so a tripped switch takes effect within one job's latency.
type ControlState struct {
	ID                      uint64    `gorm:"primaryKey"`
	MasterEnabled           bool      `gorm:"not null;default:true"`
	EmergencyStop           bool      `gorm:"not null;default:false"`
	MaintenanceMode         bool      `gorm:"not null;default:false"`
	MaxConcurrentExecutions int       `gorm:"not null;default:0"`
	UpdatedAt               time.Time `gorm:"not null;default:now()"`
}

func (ControlState) TableName() string { return "automation_control" }

// CanRun reports whether any job may execute at all.
func (c ControlState) CanRun() bool {
	return c.MasterEnabled && !c.EmergencyStop && !c.MaintenanceMode
}

// HasCapacity reports whether another execution fits in this batch.
// A non-positive cap means unlimited.
func (c ControlState) HasCapacity(executionsSoFar int) bool {
	return c.MaxConcurrentExecutions <= 0 || executionsSoFar < c.MaxConcurrentExecutions
}
