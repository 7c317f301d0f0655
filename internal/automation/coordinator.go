package automation

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chihoangvnn/sunfoods-sub018/internal/membership"
)

// JobSource is the slice of the job store the coordinator uses.
type JobSource interface {
	ListRunnable(ctx context.Context) ([]Job, error)
	SetNextRun(ctx context.Context, id uint64, next time.Time) error
	MarkExecuted(ctx context.Context, id uint64, ranAt, next time.Time, orders int, revenue int64) error
}

// History is the slice of the execution log the coordinator uses.
type History interface {
	Create(ctx context.Context, rec *ExecutionRecord) error
	Complete(ctx context.Context, id string, at time.Time, orders int, revenue int64) error
	Fail(ctx context.Context, id string, at time.Time, msg string) error
	CountForDay(ctx context.Context, jobID uint64, day time.Time) (int64, error)
	HasOutstanding(ctx context.Context, jobID uint64, notBefore time.Time) (bool, error)
	ReapStale(ctx context.Context, olderThan time.Time, at time.Time) (int64, error)
}

// ControlSource yields the current control state. Implementations must return
// fresh state on every call; the coordinator re-reads it before each job.
type ControlSource interface {
	State(ctx context.Context) (ControlState, error)
}

// OrderApplier credits a completed order to a customer's membership ledger.
type OrderApplier interface {
	ApplyOrder(ctx context.Context, customerID uint64, orderID string, total int64) (membership.ApplyOutcome, error)
}

// Config holds the coordinator loop knobs.
type Config struct {
	PollInterval          time.Duration
	StartupPollDelay      time.Duration
	InterJobDelay         time.Duration
	StaleExecutionTimeout time.Duration
	// Timezone anchors time-of-day slots, allowed windows, and the daily-cap
	// day boundary. Nil falls back to server-local time.
	Timezone *time.Location
}

func DefaultConfig() Config {
	return Config{
		PollInterval:          3 * time.Minute,
		StartupPollDelay:      10 * time.Second,
		InterJobDelay:         2 * time.Second,
		StaleExecutionTimeout: 30 * time.Minute,
		Timezone:              time.Local,
	}
}

// Coordinator is the polling loop: it re-derives what is due from persisted
// state each cycle, executes due jobs with per-job failure isolation, applies
// generated orders to the ledger, and reschedules.
type Coordinator struct {
	jobs     JobSource
	history  History
	control  ControlSource
	executor Executor
	ledger   OrderApplier
	gate     *RunGate
	cfg      Config
	log      *zap.SugaredLogger

	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	lastPollAt time.Time
	polls      int64
}

func NewCoordinator(jobs JobSource, history History, control ControlSource, executor Executor, ledger OrderApplier, cfg Config, log *zap.SugaredLogger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		jobs:     jobs,
		history:  history,
		control:  control,
		executor: executor,
		ledger:   ledger,
		gate:     NewRunGate(history),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the poll loop: one poll shortly after startup, then one per
// interval.
func (c *Coordinator) Start() {
	c.wg.Add(1)
	go c.run()
	c.log.Infow("automation coordinator started",
		"poll_interval", c.cfg.PollInterval,
		"startup_delay", c.cfg.StartupPollDelay)
}

// Stop cancels the loop and waits for the in-flight cycle. Already-started
// executions run to completion.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
	c.log.Infow("automation coordinator stopped")
}

func (c *Coordinator) run() {
	defer c.wg.Done()

	startup := time.NewTimer(c.cfg.StartupPollDelay)
	defer startup.Stop()
	select {
	case <-c.ctx.Done():
		return
	case <-startup.C:
		c.poll()
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.poll()
		}
	}
}

func (c *Coordinator) poll() {
	now := c.now()
	if c.cfg.Timezone != nil {
		now = now.In(c.cfg.Timezone)
	}
	c.mu.Lock()
	c.lastPollAt = now
	c.polls++
	c.mu.Unlock()

	if err := c.runCycle(c.ctx, now); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warnw("automation cycle error", "error", err)
	}
}

// runCycle is one Idle -> Scanning -> (ExecutingJob)* -> Idle pass.
func (c *Coordinator) runCycle(ctx context.Context, now time.Time) error {
	if n, err := c.history.ReapStale(ctx, now.Add(-c.cfg.StaleExecutionTimeout), now); err != nil {
		c.log.Warnw("failed to reap stale executions", "error", err)
	} else if n > 0 {
		c.log.Warnw("reaped stale executions", "count", n)
	}

	st, err := c.control.State(ctx)
	if err != nil {
		return errors.Wrap(err, "read control state")
	}
	if !st.CanRun() {
		c.log.Infow("automation paused, skipping cycle",
			"master_enabled", st.MasterEnabled,
			"emergency_stop", st.EmergencyStop,
			"maintenance_mode", st.MaintenanceMode)
		return nil
	}

	jobs, err := c.jobs.ListRunnable(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	executed := 0
	for i := range jobs {
		job := &jobs[i]

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Fresh read per job so a tripped switch halts the rest of the batch.
		st, err = c.control.State(ctx)
		if err != nil {
			return errors.Wrap(err, "read control state")
		}
		if !st.CanRun() {
			c.log.Warnw("control tripped mid-batch, halting remaining jobs",
				"remaining", len(jobs)-i)
			break
		}
		if !st.HasCapacity(executed) {
			c.log.Infow("concurrency cap reached, deferring remaining jobs",
				"cap", st.MaxConcurrentExecutions, "remaining", len(jobs)-i)
			break
		}

		params, err := job.Schedule()
		if err != nil {
			c.log.Warnw("job has invalid schedule, skipping",
				"job_id", job.ID, "job", job.Name, "error", err)
			continue
		}

		if job.NextRunAt == nil {
			next := NextRunAfter(job, params, now)
			if err := c.jobs.SetNextRun(ctx, job.ID, next); err != nil {
				c.log.Warnw("failed to schedule first run", "job_id", job.ID, "error", err)
			}
			job.NextRunAt = &next
		}

		outstanding, err := c.history.HasOutstanding(ctx, job.ID, now.Add(-c.cfg.StaleExecutionTimeout))
		if err != nil {
			c.log.Warnw("failed to check outstanding executions", "job_id", job.ID, "error", err)
			continue
		}
		if outstanding {
			c.log.Debugw("previous execution still outstanding, skipping", "job_id", job.ID)
			continue
		}

		due, err := c.gate.IsDue(ctx, job, params, now)
		if err != nil {
			c.log.Warnw("run-gate check failed", "job_id", job.ID, "error", err)
			continue
		}
		if !due {
			continue
		}

		c.execute(ctx, job, params, now)
		executed++

		if c.cfg.InterJobDelay > 0 && i < len(jobs)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.InterJobDelay):
			}
		}
	}
	return nil
}

// execute runs one job. Failures are recorded and isolated; they never abort
// the batch and never advance the job's schedule.
func (c *Coordinator) execute(ctx context.Context, job *Job, params ScheduleParams, now time.Time) {
	rec := &ExecutionRecord{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		Status:    ExecutionStarted,
		StartedAt: now,
	}
	if err := c.history.Create(ctx, rec); err != nil {
		// Without the started record there is no re-entrancy guard; defer to
		// the next cycle rather than run unaudited.
		c.log.Errorw("failed to open execution record, deferring job",
			"job_id", job.ID, "error", err)
		return
	}

	outcome, err := c.executor.Execute(ctx, job)
	finished := c.now()

	if err != nil {
		c.log.Errorw("automation run failed",
			"job_id", job.ID, "job", job.Name,
			"execution_id", rec.ID,
			"duration_ms", finished.Sub(now).Milliseconds(),
			"error", err)
		if ferr := c.history.Fail(ctx, rec.ID, finished, err.Error()); ferr != nil {
			c.log.Errorw("failed to record execution failure", "execution_id", rec.ID, "error", ferr)
		}
		return
	}

	// Credit each generated order to the owning customer's ledger. ApplyOrder
	// is idempotent, so a redelivered order is a no-op; a failed application
	// is retried through the order-completion trigger, not here.
	for _, o := range outcome.Orders {
		if _, aerr := c.ledger.ApplyOrder(ctx, o.CustomerID, o.OrderID, o.Total); aerr != nil {
			c.log.Warnw("membership update pending retry",
				"job_id", job.ID, "order_id", o.OrderID, "customer_id", o.CustomerID, "error", aerr)
		}
	}

	// The run that just finished is the new last-run basis. Computing the next
	// slot from the old one would make an on-time biweekly run look overdue
	// and pull its schedule forward to tomorrow.
	job.LastRunAt = &now
	next := NextRunAfter(job, params, now)
	if err := c.jobs.MarkExecuted(ctx, job.ID, now, next, outcome.OrdersGenerated(), outcome.TotalRevenue); err != nil {
		c.log.Errorw("failed to advance job schedule", "job_id", job.ID, "error", err)
	}
	if err := c.history.Complete(ctx, rec.ID, finished, outcome.OrdersGenerated(), outcome.TotalRevenue); err != nil {
		c.log.Errorw("failed to close execution record", "execution_id", rec.ID, "error", err)
	}

	c.log.Infow("automation run completed",
		"job_id", job.ID, "job", job.Name,
		"execution_id", rec.ID,
		"orders", outcome.OrdersGenerated(),
		"customers_affected", len(outcome.CustomersAffected()),
		"revenue", outcome.TotalRevenue,
		"duration_ms", finished.Sub(now).Milliseconds(),
		"next_run_at", next.Format(time.RFC3339))
}

// Stats reports loop counters for the health endpoint.
func (c *Coordinator) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{
		"last_poll_at": c.lastPollAt,
		"polls":        c.polls,
		"interval":     c.cfg.PollInterval.String(),
	}
}
