package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/checker"
	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
)

// Clock returns the current wall-clock time in the schedules' time zone.
type Clock func() time.Time

// InLocation returns a Clock reading time.Now in loc.
func InLocation(loc *time.Location) Clock {
	return func() time.Time { return time.Now().In(loc) }
}

// DueSource answers which users are due at a given "HH:MM".
type DueSource interface {
	ListUsersWithActiveScheduleAt(ctx context.Context, clock string) ([]string, error)
}

// Runner starts a check run for one user.
type Runner interface {
	Run(ctx context.Context, userKey string) (checker.Summary, error)
}

// Trigger fires scheduled runs once per wall-clock minute. It never waits
// for a run: each due user gets its own goroutine, and per-user overlap
// is the runner's concern.
type Trigger struct {
	due      DueSource
	runner   Runner
	clock    Clock
	logger   logger.Logger
	stopCh   chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	lastClock string // last "HH:MM" dispatched

	runs sync.WaitGroup
}

// NewTrigger creates a new schedule trigger
func NewTrigger(due DueSource, runner Runner, clock Clock, log logger.Logger) *Trigger {
	if clock == nil {
		clock = time.Now
	}
	return &Trigger{
		due:    due,
		runner: runner,
		clock:  clock,
		logger: log,
		stopCh: make(chan struct{}),
	}
}

// Start begins the minute loop
func (t *Trigger) Start(ctx context.Context) {
	go func() {
		timer := time.NewTimer(untilNextMinute(t.clock()))
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				t.Dispatch(ctx, t.clock())
				timer.Reset(untilNextMinute(t.clock()))
			case <-t.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	t.logger.Info("schedule trigger started")
}

// Stop stops the loop. Runs already dispatched keep going; use Wait.
// Calling it more than once is a no-op.
func (t *Trigger) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Dispatch starts a run for every user due at now's "HH:MM" and returns
// how many were started. A minute is dispatched at most once, and a
// failing due-user query only skips this tick.
func (t *Trigger) Dispatch(ctx context.Context, now time.Time) int {
	clock := domain.ClockTime(now)

	t.mu.Lock()
	if clock == t.lastClock {
		t.mu.Unlock()
		return 0
	}
	t.lastClock = clock
	t.mu.Unlock()

	keys, err := t.due.ListUsersWithActiveScheduleAt(ctx, clock)
	if err != nil {
		t.logger.Error("failed to query due schedules, skipping tick",
			logger.String("tick", clock),
			logger.Error(err))
		return 0
	}
	if len(keys) == 0 {
		return 0
	}

	t.logger.Info("dispatching scheduled runs",
		logger.String("tick", clock),
		logger.Int("users", len(keys)))

	for _, key := range keys {
		t.runs.Add(1)
		go t.run(ctx, key, clock)
	}
	return len(keys)
}

func (t *Trigger) run(ctx context.Context, key, clock string) {
	defer t.runs.Done()
	log := t.logger.With(logger.String("user", key), logger.String("tick", clock))
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("scheduled run panicked", logger.Any("panic", rec))
		}
	}()

	sum, err := t.runner.Run(ctx, key)
	if err != nil {
		log.Error("scheduled run failed", logger.Error(err))
		return
	}
	log.Debug("scheduled run finished", logger.String("status", string(sum.Status)))
}

// Wait blocks until dispatched runs return or ctx is done.
func (t *Trigger) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// untilNextMinute returns the delay to the next wall-clock minute boundary.
func untilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}
