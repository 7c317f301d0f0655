package automation

import (
	"context"
	"time"
)

// executionCounter is the slice of the history store the gate needs.
type executionCounter interface {
	CountForDay(ctx context.Context, jobID uint64, day time.Time) (int64, error)
}

// RunGate decides whether a job is due at a given instant. It only reads.
type RunGate struct {
	history executionCounter
}

func NewRunGate(history executionCounter) *RunGate {
	return &RunGate{history: history}
}

// IsDue checks, in order: allowed time windows, the per-day execution cap,
// then the job's next-run timestamp (computed on the fly when unset).
func (g *RunGate) IsDue(ctx context.Context, job *Job, p ScheduleParams, now time.Time) (bool, error) {
	if !p.InAllowedWindow(now) {
		return false, nil
	}

	if p.MaxExecutionsPerDay > 0 {
		n, err := g.history.CountForDay(ctx, job.ID, now)
		if err != nil {
			return false, err
		}
		if n >= int64(p.MaxExecutionsPerDay) {
			return false, nil
		}
	}

	next := job.NextRunAt
	if next == nil {
		computed := NextRunAfter(job, p, now)
		next = &computed
	}
	return !now.Before(*next), nil
}
