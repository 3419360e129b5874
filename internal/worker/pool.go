package worker

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"async-transfers/internal/processing"
)

var (
	ErrPoolRunning    = stderrors.New("worker pool already running")
	ErrPoolNotRunning = stderrors.New("worker pool not running")
	ErrQueueFull      = stderrors.New("worker queue is full")
)

type PoolConfig struct {
	Workers   int
	QueueSize int
}

// Pool executes dispatched transfers on a fixed number of goroutines fed by a
// bounded queue.
type Pool struct {
	executor TransferExecutor
	cfg      PoolConfig
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	stopping atomic.Bool
	jobs     chan uuid.UUID
	// pending holds ids queued or executing, so overlapping ticks do not
	// queue the same request twice.
	pending map[uuid.UUID]struct{}
	workers *conc.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

var _ processing.Dispatcher = (*Pool)(nil)

func NewPool(executor TransferExecutor, cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers
	}

	return &Pool{
		executor: executor,
		cfg:      cfg,
		logger:   logger,
		pending:  make(map[uuid.UUID]struct{}),
	}
}

func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPoolRunning
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.stopping.Store(false)
	p.jobs = make(chan uuid.UUID, p.cfg.QueueSize)
	p.workers = conc.NewWaitGroup()
	for i := 0; i < p.cfg.Workers; i++ {
		jobs := p.jobs
		p.workers.Go(func() { p.work(jobs) })
	}
	p.running = true

	p.logger.Info("Worker pool started", "workers", p.cfg.Workers, "queue_size", p.cfg.QueueSize)
	return nil
}

// Dispatch queues id without blocking. A request already queued or running is
// accepted without being queued again.
func (p *Pool) Dispatch(ctx context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrPoolNotRunning
	}
	if _, ok := p.pending[id]; ok {
		return nil
	}

	select {
	case p.jobs <- id:
		p.pending[id] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) work(jobs <-chan uuid.UUID) {
	for id := range jobs {
		p.run(id)
	}
}

func (p *Pool) run(id uuid.UUID) {
	defer p.done(id)

	// queued work left behind by Stop stays NEW for the next run
	if p.stopping.Load() {
		return
	}

	var result processing.Result
	if recovered := panics.Try(func() { result = p.executor.Execute(p.ctx, id) }); recovered != nil {
		p.logger.Error("Transfer execution panicked", "transfer_id", id, "panic", recovered.String())
		return
	}

	p.logger.Debug("Transfer execution finished", "transfer_id", id, "result", result.String())
}

func (p *Pool) done(id uuid.UUID) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// Stop stops accepting work and waits for running executions. Queued work
// that has not started is dropped and stays NEW. When ctx ends first, running
// executions are cancelled; their open transactions roll back.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPoolNotRunning
	}
	p.running = false
	p.stopping.Store(true)
	close(p.jobs)
	workers, cancel := p.workers, p.cancel
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		cancel()
		p.logger.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		cancel()
		<-drained
		p.logger.Warn("Worker pool stopped before running transfers finished")
		return ctx.Err()
	}
}
