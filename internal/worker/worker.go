// Package worker runs transfer executions away from the scheduler tick,
// either on an in-process goroutine pool or on a Redis backed task queue.
package worker

import (
	"context"

	"github.com/google/uuid"

	"async-transfers/internal/processing"
)

// TransferExecutor runs one transfer request to completion.
type TransferExecutor interface {
	Execute(ctx context.Context, id uuid.UUID) processing.Result
}

var _ TransferExecutor = (*processing.Executor)(nil)
