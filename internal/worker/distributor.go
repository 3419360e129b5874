package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"async-transfers/internal/processing"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

const TaskExecuteTransfer = "transfer:execute"

type PayloadExecuteTransfer struct {
	TransferID uuid.UUID `json:"transfer_id"`
}

// RedisTaskDistributor dispatches transfers to a Redis queue consumed by
// RedisTaskProcessor instances.
type RedisTaskDistributor struct {
	client *asynq.Client
	logger *slog.Logger
}

var _ processing.Dispatcher = (*RedisTaskDistributor)(nil)

func NewRedisTaskDistributor(redisOpt asynq.RedisClientOpt, logger *slog.Logger) *RedisTaskDistributor {
	return &RedisTaskDistributor{
		client: asynq.NewClient(redisOpt),
		logger: logger,
	}
}

// Dispatch enqueues the transfer. The transfer id is the task id, so a request
// still queued from an earlier tick is not enqueued again. Tasks are never
// retried by the queue.
func (d *RedisTaskDistributor) Dispatch(ctx context.Context, id uuid.UUID) error {
	task, err := NewExecuteTransferTask(id)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, task,
		asynq.TaskID(id.String()),
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(0),
	)
	if err != nil {
		if stderrors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("fail to enqueue task: %w", err)
	}

	d.logger.Debug("Enqueued task",
		"type", task.Type(),
		"queue", info.Queue,
		"transfer_id", id)
	return nil
}

func (d *RedisTaskDistributor) Close() error {
	return d.client.Close()
}

// NewExecuteTransferTask builds the task carrying id.
func NewExecuteTransferTask(id uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(PayloadExecuteTransfer{TransferID: id})
	if err != nil {
		return nil, fmt.Errorf("fail to marshal payload: %w", err)
	}
	return asynq.NewTask(TaskExecuteTransfer, payload), nil
}
