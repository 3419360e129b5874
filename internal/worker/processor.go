package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// RedisTaskProcessor consumes transfer tasks from Redis and executes them.
type RedisTaskProcessor struct {
	server   *asynq.Server
	executor TransferExecutor
	logger   *slog.Logger
}

func NewRedisTaskProcessor(redisOpt asynq.RedisClientOpt, executor TransferExecutor, concurrency int, logger *slog.Logger) *RedisTaskProcessor {
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueCritical: 10,
				QueueDefault:  5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Process task failed",
					"task_type", task.Type(),
					"task_payload", string(task.Payload()),
					"error", err)
			}),
			Logger: NewTaskLogger(logger),
		},
	)

	return &RedisTaskProcessor{
		server:   server,
		executor: executor,
		logger:   logger,
	}
}

func (processor *RedisTaskProcessor) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskExecuteTransfer, processor.ProcessTaskExecuteTransfer)

	return processor.server.Start(mux)
}

// Shutdown stops fetching tasks and waits for running ones.
func (processor *RedisTaskProcessor) Shutdown() {
	processor.server.Shutdown()
}

// ProcessTaskExecuteTransfer runs the transfer named by the task. Execution
// failures are recorded on the transfer itself, so only malformed payloads
// are reported back to the queue.
func (processor *RedisTaskProcessor) ProcessTaskExecuteTransfer(ctx context.Context, task *asynq.Task) error {
	var payload PayloadExecuteTransfer
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("fail to unmarshal payload: %w", asynq.SkipRetry)
	}
	if payload.TransferID == uuid.Nil {
		return fmt.Errorf("missing transfer id: %w", asynq.SkipRetry)
	}

	result := processor.executor.Execute(ctx, payload.TransferID)

	processor.logger.Info("Processed task",
		"type", task.Type(),
		"transfer_id", payload.TransferID,
		"result", result.String())
	return nil
}
