package processing

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"async-transfers/internal/domain"
)

var (
	ErrSchedulerRunning    = stderrors.New("scheduler already running")
	ErrSchedulerNotRunning = stderrors.New("scheduler not running")
)

// Dispatcher hands a unit of work to a worker. It must not wait for the work
// to finish.
type Dispatcher interface {
	Dispatch(ctx context.Context, id uuid.UUID) error
}

type SchedulerConfig struct {
	Interval   time.Duration
	ClaimGrace time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// TickResult counts what one tick did.
type TickResult struct {
	Active     int
	Expired    int
	Dispatched int
	Rejected   int
}

// Scheduler runs Tick on a fixed interval.
type Scheduler struct {
	store      domain.Store
	sweeper    *Sweeper
	dispatcher Dispatcher
	interval   time.Duration
	clock      func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(store domain.Store, dispatcher Dispatcher, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Scheduler{
		store:      store,
		sweeper:    NewSweeper(store, cfg.ClaimGrace, logger),
		dispatcher: dispatcher,
		interval:   cfg.Interval,
		clock:      clock,
		logger:     logger,
	}
}

// Tick fetches active requests once, sweeps the expired ones, selects at most
// one request per source account and dispatches it. It does not wait for the
// dispatched work.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	now := s.clock()

	active, err := s.store.Transfers().ListActiveTransfers(ctx)
	if err != nil {
		return TickResult{}, err
	}

	selection := Select(active, now)
	result := TickResult{Active: len(active)}
	result.Expired = s.sweeper.Sweep(ctx, selection.Expired, now)

	for _, transfer := range selection.Dispatch {
		if err := s.dispatcher.Dispatch(ctx, transfer.ID); err != nil {
			result.Rejected++
			s.logger.Warn("Failed to dispatch transfer", "transfer_id", transfer.ID, "error", err)
			continue
		}
		result.Dispatched++
	}

	if result.Active > 0 {
		s.logger.Debug("Processing tick finished",
			"active", result.Active,
			"expired", result.Expired,
			"dispatched", result.Dispatched,
			"rejected", result.Rejected,
			"busy_accounts", len(selection.Busy))
	}
	return result, nil
}

// Start schedules Tick every interval until Stop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	ctx, cancel := context.WithCancel(context.Background())

	s.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Processing tick failed", "error", err)
		}
	}))
	s.cron.Start()

	s.cancel = cancel
	s.running = true
	s.logger.Info("Transfer processing scheduler started", "interval", s.interval)
	return nil
}

// Stop prevents new ticks and waits for a running tick to return or for ctx
// to be done, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}
	s.running = false

	stopped := s.cron.Stop()
	defer s.cancel()

	select {
	case <-stopped.Done():
		s.logger.Info("Transfer processing scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
