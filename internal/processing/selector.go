package processing

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"async-transfers/internal/domain"
)

// Selection is the outcome of one selector pass.
type Selection struct {
	// Expired requests have reached their deadline and are handed to the sweeper.
	Expired []*domain.TransferRequest
	// Dispatch holds at most one NEW request per source account.
	Dispatch []*domain.TransferRequest
	// Busy holds heads of account queues observed IN_PROGRESS; their accounts
	// get no new work this tick.
	Busy []*domain.TransferRequest
}

// Select partitions active requests into expired and live ones, then picks the
// oldest live request of every source account, ordered by (CreatedAt, ID). The
// pick is dispatched only when still NEW.
func Select(requests []*domain.TransferRequest, now time.Time) Selection {
	var selection Selection

	heads := make(map[uuid.UUID]*domain.TransferRequest)
	for _, request := range requests {
		if !request.Status.IsActive() {
			continue
		}
		if request.IsExpired(now) {
			selection.Expired = append(selection.Expired, request)
			continue
		}

		head, ok := heads[request.SourceAccountID]
		if !ok || request.Before(head) {
			heads[request.SourceAccountID] = request
		}
	}

	for _, head := range heads {
		if head.Status == domain.StatusNew {
			selection.Dispatch = append(selection.Dispatch, head)
		} else {
			selection.Busy = append(selection.Busy, head)
		}
	}

	// map iteration is random; keep dispatch order stable
	slices.SortFunc(selection.Dispatch, compareRequests)
	slices.SortFunc(selection.Busy, compareRequests)

	return selection
}

func compareRequests(a, b *domain.TransferRequest) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	default:
		return 0
	}
}
