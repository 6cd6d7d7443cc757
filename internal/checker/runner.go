// Package checker runs a full availability pass over one user's targets.
package checker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
	"github.com/MrSnakeDoc/playwatch/internal/notify"
	"github.com/MrSnakeDoc/playwatch/internal/probe"
	"github.com/MrSnakeDoc/playwatch/internal/report"
	"github.com/MrSnakeDoc/playwatch/internal/runguard"
)

// Status is how a run ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusNoTargets Status = "no_targets"
	// StatusSkipped means another run for the same user was in flight.
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Options tune a single run.
type Options struct {
	// UseProxy routes probes through the user's rotating proxies. When the
	// user has none, the run goes direct and says so once.
	UseProxy bool
}

// Summary describes a finished run.
type Summary struct {
	UserKey    string                `json:"user_key"`
	Status     Status                `json:"status"`
	Total      int                   `json:"total"`
	Completed  int                   `json:"completed"`
	Available  int                   `json:"available"`
	Results    []*domain.CheckResult `json:"results,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

type Config struct {
	ProbeTimeout  time.Duration
	Delay         time.Duration // pause between two targets
	Jitter        time.Duration // extra random pause in [0, Jitter)
	ProgressEvery int
	ChunkSize     int
}

// TargetStore is what a run reads and annotates.
type TargetStore interface {
	ListTargets(ctx context.Context, userKey string) ([]*domain.Target, error)
	UpdateTarget(ctx context.Context, t *domain.Target) error
}

type ResultStore interface {
	AppendResult(ctx context.Context, r *domain.CheckResult) error
}

// ProxySource hands out the next proxy for a user, nil when none.
type ProxySource interface {
	Next(ctx context.Context, userKey string) (*domain.Proxy, error)
}

type Runner struct {
	guard   *runguard.Guard
	targets TargetStore
	results ResultStore
	proxies ProxySource
	prober  probe.Prober
	sink    notify.Sink
	cfg     Config
	log     logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	inflight sync.WaitGroup
}

func New(
	guard *runguard.Guard,
	targets TargetStore,
	results ResultStore,
	proxies ProxySource,
	prober probe.Prober,
	sink notify.Sink,
	cfg Config,
	log logger.Logger,
) *Runner {
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 5
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4000
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	return &Runner{
		guard:   guard,
		targets: targets,
		results: results,
		proxies: proxies,
		prober:  prober,
		sink:    sink,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// ActiveRuns returns how many runs are in flight.
func (r *Runner) ActiveRuns() int {
	return r.guard.Active()
}

// Run checks every target of userKey through the user's proxies.
func (r *Runner) Run(ctx context.Context, userKey string) (Summary, error) {
	return r.RunWith(ctx, userKey, Options{UseProxy: true})
}

// RunWith performs one run. Concurrent calls for the same user while a run
// is in flight return StatusSkipped immediately. The returned error is
// non-nil only for an unexpected failure, after the user has been told.
//
// A started run is not cancellable: ctx only carries values.
func (r *Runner) RunWith(ctx context.Context, userKey string, opts Options) (Summary, error) {
	if !r.acquire(userKey) {
		return r.skipped(userKey), nil
	}
	return r.execute(ctx, userKey, opts)
}

// Start claims the user's run slot and performs the run in the background.
// It returns false, without starting anything, when a run for userKey is
// already in flight. A true return means the run is registered with Wait.
func (r *Runner) Start(ctx context.Context, userKey string, opts Options) bool {
	if !r.acquire(userKey) {
		r.log.Debug("run already active, not starting", logger.String("user", userKey))
		return false
	}
	go func() {
		_, _ = r.execute(ctx, userKey, opts)
	}()
	return true
}

// acquire takes the guard and registers the run with Wait. Both happen
// before any goroutine is spawned so Wait cannot miss a started run.
func (r *Runner) acquire(userKey string) bool {
	if !r.guard.TryAcquire(userKey) {
		return false
	}
	r.inflight.Add(1)
	return true
}

func (r *Runner) skipped(userKey string) Summary {
	r.log.Debug("run already active, skipping", logger.String("user", userKey))
	now := r.now()
	return Summary{UserKey: userKey, Status: StatusSkipped, StartedAt: now, FinishedAt: now}
}

// execute runs the body of an acquired run and gives the slot back.
func (r *Runner) execute(ctx context.Context, userKey string, opts Options) (sum Summary, err error) {
	defer r.inflight.Done()
	defer r.guard.Release(userKey)

	sum = Summary{UserKey: userKey, StartedAt: r.now()}
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("run panicked: %v", rec)
		}
		if err != nil {
			sum.Status = StatusFailed
			r.log.Error("check run failed", logger.String("user", userKey), logger.Error(err))
			r.notify(ctx, userKey, report.RunFailed)
		}
		sum.FinishedAt = r.now()
	}()

	err = r.run(ctx, userKey, opts, &sum)
	return sum, err
}

func (r *Runner) run(ctx context.Context, userKey string, opts Options, sum *Summary) error {
	targets, err := r.targets.ListTargets(ctx, userKey)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}

	sum.Total = len(targets)
	if sum.Total == 0 {
		r.notify(ctx, userKey, report.NothingToCheck)
		sum.Status = StatusNoTargets
		return nil
	}

	r.log.Info("check run started",
		logger.String("user", userKey),
		logger.Int("targets", sum.Total),
		logger.Bool("proxy", opts.UseProxy))

	progress := r.notify(ctx, userKey, report.Started(sum.Total))

	lines := make([]string, 0, sum.Total)
	warnedDirect := false

	for i, t := range targets {
		var proxy *domain.Proxy
		if opts.UseProxy {
			proxy, err = r.proxies.Next(ctx, userKey)
			if err != nil {
				return fmt.Errorf("next proxy: %w", err)
			}
			if proxy == nil && !warnedDirect {
				r.notify(ctx, userKey, report.NoProxiesDirect)
				warnedDirect = true
			}
		}

		res, out := r.check(ctx, t, proxy)

		if err := r.results.AppendResult(ctx, res); err != nil {
			r.log.Error("failed to persist result",
				logger.String("user", userKey),
				logger.String("target", t.ID),
				logger.Error(err))
		}
		r.observe(ctx, t, out)

		sum.Results = append(sum.Results, res)
		sum.Completed++
		if res.Available {
			sum.Available++
		}
		lines = append(lines, report.Line(t.DisplayName(), res.Available, res.ErrorMessage))

		if sum.Completed%r.cfg.ProgressEvery == 0 || sum.Completed == sum.Total {
			progress = r.update(ctx, userKey, progress, report.Progress(sum.Completed, sum.Total))
		}

		if i < len(targets)-1 {
			_ = r.sleep(ctx, r.pause())
		}
	}

	r.deliver(ctx, userKey, progress, report.Chunk(lines, r.cfg.ChunkSize, report.HeaderComplete))

	sum.Status = StatusCompleted
	r.log.Info("check run completed",
		logger.String("user", userKey),
		logger.Int("targets", sum.Total),
		logger.Int("available", sum.Available))
	return nil
}

// check probes one target. It never fails: errors, panics and timeouts
// become an unavailable result.
func (r *Runner) check(ctx context.Context, t *domain.Target, proxy *domain.Proxy) (*domain.CheckResult, probe.Outcome) {
	res := &domain.CheckResult{ID: domain.NewID(), TargetID: t.ID}
	if proxy != nil {
		res.ProxyID = proxy.ID
	}

	out, err := r.probe(ctx, t.URL, proxy)
	if err != nil {
		r.log.Warn("probe failed",
			logger.String("target", t.ID),
			logger.String("url", t.URL),
			logger.Error(err))
		out = probe.Outcome{Available: false, ErrorMessage: "Error: " + err.Error()}
	}

	res.Available = out.Available
	res.ErrorMessage = out.ErrorMessage
	res.CheckedAt = r.now()
	return res, out
}

type probeReply struct {
	out probe.Outcome
	err error
}

// probe bounds the prober by ProbeTimeout even if it ignores ctx.
func (r *Runner) probe(ctx context.Context, address string, proxy *domain.Proxy) (probe.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	ch := make(chan probeReply, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- probeReply{err: fmt.Errorf("probe panicked: %v", rec)}
			}
		}()
		out, err := r.prober.Probe(ctx, address, proxy)
		ch <- probeReply{out: out, err: err}
	}()

	select {
	case rep := <-ch:
		if rep.err != nil && errors.Is(rep.err, context.DeadlineExceeded) {
			return probe.Outcome{}, fmt.Errorf("timed out after %v", r.cfg.ProbeTimeout)
		}
		return rep.out, rep.err
	case <-ctx.Done():
		return probe.Outcome{}, fmt.Errorf("timed out after %v", r.cfg.ProbeTimeout)
	}
}

// observe records what the probe learned about the target itself.
func (r *Runner) observe(ctx context.Context, t *domain.Target, out probe.Outcome) {
	changed := false
	if t.LastActive == nil || *t.LastActive != out.Available {
		active := out.Available
		t.LastActive = &active
		changed = true
	}
	if t.AppName == "" && out.DisplayName != "" {
		t.AppName = out.DisplayName
		changed = true
	}
	if !changed {
		return
	}
	t.UpdatedAt = r.now()
	if err := r.targets.UpdateTarget(ctx, t); err != nil {
		r.log.Warn("failed to update target", logger.String("target", t.ID), logger.Error(err))
	}
}

func (r *Runner) pause() time.Duration {
	d := r.cfg.Delay
	if r.cfg.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(r.cfg.Jitter)))
	}
	return d
}

// notify sends a new message. A zero Handle means delivery failed.
func (r *Runner) notify(ctx context.Context, userKey, text string) notify.Handle {
	h, err := r.sink.Notify(ctx, userKey, text)
	if err != nil {
		r.log.Warn("failed to notify user", logger.String("user", userKey), logger.Error(err))
		return notify.Handle{}
	}
	return h
}

// update edits the progress message, or sends a fresh one when there is
// nothing to edit or the edit fails.
func (r *Runner) update(ctx context.Context, userKey string, h notify.Handle, text string) notify.Handle {
	if h.MessageID != 0 {
		err := r.sink.Update(ctx, h, text)
		if err == nil {
			return h
		}
		r.log.Warn("failed to update notice", logger.String("user", userKey), logger.Error(err))
	}
	return r.notify(ctx, userKey, text)
}

func (r *Runner) deliver(ctx context.Context, userKey string, progress notify.Handle, chunks []string) {
	plan := report.Plan(chunks)
	r.update(ctx, userKey, progress, plan.Edit)
	for _, c := range plan.Append {
		r.notify(ctx, userKey, c)
	}
}

// Wait blocks until in-flight runs finish or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
