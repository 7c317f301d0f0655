package automation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("automation job not found")

// Store is the Postgres-backed automation job store.
type Store struct {
	DB *gorm.DB
}

// ListRunnable returns jobs with both kill switches on, in stable order.
func (s *Store) ListRunnable(ctx context.Context) ([]Job, error) {
	var jobs []Job
	err := s.DB.WithContext(ctx).
		Where("enabled AND globally_enabled").
		Order("id asc").
		Find(&jobs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list runnable jobs")
	}
	return jobs, nil
}

func (s *Store) List(ctx context.Context) ([]Job, error) {
	var jobs []Job
	err := s.DB.WithContext(ctx).Order("id asc").Find(&jobs).Error
	return jobs, err
}

func (s *Store) Get(ctx context.Context, id uint64) (*Job, error) {
	var job Job
	err := s.DB.WithContext(ctx).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// SetNextRun backfills next_run_at for jobs that never had one computed.
func (s *Store) SetNextRun(ctx context.Context, id uint64, next time.Time) error {
	return s.DB.WithContext(ctx).Exec(
		`update automation_jobs set next_run_at=?, updated_at=now() where id=?`,
		next, id).Error
}

// MarkExecuted records a successful execution: advances the run timestamps and
// accumulates the outcome totals. Failed executions never reach here, so a
// failing job stays due.
func (s *Store) MarkExecuted(ctx context.Context, id uint64, ranAt, next time.Time, orders int, revenue int64) error {
	return s.DB.WithContext(ctx).Exec(`
update automation_jobs
set last_run_at=?,
    next_run_at=?,
    cumulative_orders=cumulative_orders+?,
    cumulative_revenue=cumulative_revenue+?,
    updated_at=now()
where id=?`, ranAt, next, orders, revenue, id).Error
}

// SetEnabled flips the owner-facing kill switch.
func (s *Store) SetEnabled(ctx context.Context, id uint64, enabled bool) error {
	res := s.DB.WithContext(ctx).Exec(
		`update automation_jobs set enabled=?, updated_at=now() where id=?`, enabled, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ExecutionLog is the append-only execution history store.
type ExecutionLog struct {
	DB *gorm.DB
}

func (l *ExecutionLog) Create(ctx context.Context, rec *ExecutionRecord) error {
	return l.DB.WithContext(ctx).Create(rec).Error
}

// Complete transitions a started record to completed. Terminal records are
// never rewritten.
func (l *ExecutionLog) Complete(ctx context.Context, id string, at time.Time, orders int, revenue int64) error {
	return l.DB.WithContext(ctx).Exec(`
update automation_executions
set status=?, completed_at=?, orders_generated=?, revenue=?
where id=? and status=?`,
		ExecutionCompleted, at, orders, revenue, id, ExecutionStarted).Error
}

func (l *ExecutionLog) Fail(ctx context.Context, id string, at time.Time, msg string) error {
	return l.DB.WithContext(ctx).Exec(`
update automation_executions
set status=?, completed_at=?, error=?
where id=? and status=?`,
		ExecutionFailed, at, msg, id, ExecutionStarted).Error
}

// CountForDay counts started and completed attempts on day's calendar date,
// for the per-day execution cap.
func (l *ExecutionLog) CountForDay(ctx context.Context, jobID uint64, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var n int64
	err := l.DB.WithContext(ctx).Model(&ExecutionRecord{}).
		Where("job_id = ? AND started_at >= ? AND started_at < ? AND status IN ?",
			jobID, start, end, []string{ExecutionStarted, ExecutionCompleted}).
		Count(&n).Error
	return n, err
}

// HasOutstanding reports whether the job has a started-but-unresolved record
// newer than notBefore. Older ones are left for ReapStale.
func (l *ExecutionLog) HasOutstanding(ctx context.Context, jobID uint64, notBefore time.Time) (bool, error) {
	var n int64
	err := l.DB.WithContext(ctx).Model(&ExecutionRecord{}).
		Where("job_id = ? AND status = ? AND started_at >= ?", jobID, ExecutionStarted, notBefore).
		Count(&n).Error
	return n > 0, err
}

// ReapStale fails started records older than olderThan. A crashed execution
// otherwise blocks its job forever.
func (l *ExecutionLog) ReapStale(ctx context.Context, olderThan time.Time, at time.Time) (int64, error) {
	res := l.DB.WithContext(ctx).Exec(`
update automation_executions
set status=?, completed_at=?, error='execution timed out'
where status=? and started_at < ?`,
		ExecutionFailed, at, ExecutionStarted, olderThan)
	return res.RowsAffected, res.Error
}

func (l *ExecutionLog) ListForJob(ctx context.Context, jobID uint64, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var recs []ExecutionRecord
	err := l.DB.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("started_at desc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// ControlStore reads and writes the singleton control row. State is re-read
// for every check, never cached.
type ControlStore struct {
	DB *gorm.DB
}

const controlRowID = 1

// Ensure seeds the control row if it does not exist yet.
func (c *ControlStore) Ensure(ctx context.Context) error {
	var n int64
	if err := c.DB.WithContext(ctx).Model(&ControlState{}).Where("id = ?", controlRowID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return c.DB.WithContext(ctx).Create(&ControlState{
		ID:            controlRowID,
		MasterEnabled: true,
		UpdatedAt:     time.Now(),
	}).Error
}

func (c *ControlStore) State(ctx context.Context) (ControlState, error) {
	var st ControlState
	err := c.DB.WithContext(ctx).First(&st, controlRowID).Error
	if err != nil {
		return ControlState{}, errors.Wrap(err, "read control state")
	}
	return st, nil
}

func (c *ControlStore) Update(ctx context.Context, st ControlState) error {
	st.ID = controlRowID
	st.UpdatedAt = time.Now()
	return c.DB.WithContext(ctx).Save(&st).Error
}
