package processing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"async-transfers/internal/domain"
)

// Sweeper fails requests whose deadline has passed.
type Sweeper struct {
	store domain.Store
	// claimGrace delays sweeping an expired IN_PROGRESS request so a claim
	// taken before the deadline can finish; it only reclaims abandoned claims.
	claimGrace time.Duration
	logger     *slog.Logger
}

func NewSweeper(store domain.Store, claimGrace time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		claimGrace: claimGrace,
		logger:     logger,
	}
}

// Sweep fails every expired request still NEW or IN_PROGRESS and returns how
// many it failed. Errors are logged per request and never stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context, expired []*domain.TransferRequest, now time.Time) int {
	failed := 0
	for _, transfer := range expired {
		claim, err := s.expire(ctx, transfer, now)
		if err != nil {
			s.logger.Error("Failed to expire transfer", "transfer_id", transfer.ID, "error", err)
			continue
		}
		if claim.Claimed() {
			failed++
			s.logger.Info("Transfer expired", "transfer_id", transfer.ID, "expires_at", transfer.ExpiresAt)
		}
	}
	return failed
}

// expire fails one request. The claim grace is judged on the status read
// under the row lock, not on the tick's snapshot.
func (s *Sweeper) expire(ctx context.Context, snapshot *domain.TransferRequest, now time.Time) (Claim, error) {
	var claim Claim
	err := s.store.WithTransaction(ctx, func(tx domain.Store) error {
		current, err := tx.Transfers().GetTransferForUpdate(ctx, snapshot.ID)
		if err != nil {
			return err
		}
		if current.Status == domain.StatusInProgress && now.Before(current.ExpiresAt.Add(s.claimGrace)) {
			claim = Claim{Outcome: NotClaimed, Current: current.Status}
			return nil
		}

		claim, err = transitionLocked(ctx, tx, current.ID, domain.StatusFailed, failWith(ExpiredMessage(current)))
		return err
	})
	if err != nil {
		return Claim{}, err
	}
	return claim, nil
}

// ExpiredMessage is the error message stored on an expired request.
func ExpiredMessage(transfer *domain.TransferRequest) string {
	return fmt.Sprintf("expired at %s", transfer.ExpiresAt.UTC().Format(time.RFC3339Nano))
}
