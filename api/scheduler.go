/*
scheduler.go - Automated annual balance generation

PURPOSE:
  Periodically checks which leave year is current and generates that
  year's balances for every active employee. Generation skips existing
  balances, so repeated runs are harmless.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The current leave year is the latest one whose cutoff start has passed
  - Never regenerates: ForceRegenerate is an explicit API decision
  - Runs as actor "scheduler" so audit entries are attributable

USAGE:
  scheduler := NewGenerationScheduler(store, generator, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GenerateAnnualLeaveBalances endpoint (manual generation)
  - leave/balances.go: BalanceGenerator
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/entitlement-engine/generic"
	"github.com/warp/entitlement-engine/leave"
)

// SchedulerActor is the audit actor of scheduled runs.
const SchedulerActor = "scheduler"

// GenerationScheduler generates the current leave year's balances on a timer.
type GenerationScheduler struct {
	Store         generic.Store
	Generator     *leave.BalanceGenerator
	CheckInterval time.Duration
	Enabled       bool

	logger *zap.Logger
	now    func() generic.TimePoint

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	runMu    sync.Mutex
	lastYear string
}

// NewGenerationScheduler creates a new scheduler.
func NewGenerationScheduler(store generic.Store, generator *leave.BalanceGenerator, logger *zap.Logger) *GenerationScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationScheduler{
		Store:         store,
		Generator:     generator,
		CheckInterval: time.Hour,
		Enabled:       true,
		logger:        logger.Named("scheduler"),
		now:           generic.Today,
	}
}

// WithClock overrides the date used to pick the current leave year.
func (gs *GenerationScheduler) WithClock(now func() generic.TimePoint) *GenerationScheduler {
	gs.now = now
	return gs
}

// Start begins the scheduler.
func (gs *GenerationScheduler) Start() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if !gs.Enabled {
		gs.logger.Info("disabled, not starting")
		return
	}
	if gs.ticker != nil {
		return
	}

	gs.ticker = time.NewTicker(gs.CheckInterval)
	gs.stop = make(chan struct{})
	gs.wg.Add(1)

	go gs.run(gs.ticker, gs.stop)

	gs.logger.Info("started", zap.Duration("check_interval", gs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (gs *GenerationScheduler) Stop() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.ticker == nil {
		return
	}
	gs.ticker.Stop()
	close(gs.stop)
	gs.wg.Wait()
	gs.ticker = nil
	gs.logger.Info("stopped")
}

func (gs *GenerationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer gs.wg.Done()

	// Run immediately on start
	gs.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			gs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow generates balances for the current leave year. It returns nil when
// no leave year has started yet.
func (gs *GenerationScheduler) RunNow(ctx context.Context) *leave.GenerationResult {
	gs.runMu.Lock()
	defer gs.runMu.Unlock()

	year, ok, err := gs.currentYear(ctx)
	if err != nil {
		gs.logger.Error("failed to resolve current leave year", zap.Error(err))
		return nil
	}
	if !ok {
		gs.logger.Debug("no leave year has started", zap.Stringer("as_of", gs.now()))
		return nil
	}

	result, err := gs.Generator.GenerateAnnualBalances(generic.WithActor(ctx, SchedulerActor), leave.GenerateBalancesInput{Year: year})
	if err != nil {
		gs.logger.Error("scheduled generation failed", zap.String("year", year), zap.Error(err))
		return nil
	}

	if result.GeneratedCount > 0 || year != gs.lastYear {
		gs.logger.Info("scheduled generation completed",
			zap.String("year", year),
			zap.Int("generated", result.GeneratedCount),
			zap.Int("skipped", result.SkippedCount))
	}
	gs.lastYear = year
	return result
}

func (gs *GenerationScheduler) currentYear(ctx context.Context) (string, bool, error) {
	tx, err := gs.Store.Begin(ctx)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	years, err := tx.LeaveYears().FindAll(ctx)
	if err != nil {
		return "", false, err
	}
	current, ok := generic.NewLeaveYearCalendar(years).Current(gs.now())
	return current.Year, ok, nil
}
