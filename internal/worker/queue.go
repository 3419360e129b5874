package worker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"async-transfers/internal/processing"
)

// RedisQueue dispatches through Redis and consumes the same queue, so every
// instance running it shares the work.
type RedisQueue struct {
	distributor *RedisTaskDistributor
	processor   *RedisTaskProcessor
}

var _ processing.Dispatcher = (*RedisQueue)(nil)

func NewRedisQueue(redisAddress string, executor TransferExecutor, concurrency int, logger *slog.Logger) *RedisQueue {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddress}

	return &RedisQueue{
		distributor: NewRedisTaskDistributor(redisOpt, logger),
		processor:   NewRedisTaskProcessor(redisOpt, executor, concurrency, logger),
	}
}

func (q *RedisQueue) Dispatch(ctx context.Context, id uuid.UUID) error {
	return q.distributor.Dispatch(ctx, id)
}

func (q *RedisQueue) Start() error {
	return q.processor.Start()
}

// Stop waits for running tasks; asynq bounds the wait with its own shutdown
// timeout, so ctx is not consulted.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.processor.Shutdown()
	return q.distributor.Close()
}
