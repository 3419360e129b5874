package processing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"async-transfers/internal/domain"
)

func request(source uuid.UUID, status domain.TransferStatus, created time.Time) *domain.TransferRequest {
	return &domain.TransferRequest{
		ID:              uuid.New(),
		SourceAccountID: source,
		Status:          status,
		CreatedAt:       created,
		ExpiresAt:       created.Add(10 * time.Minute),
	}
}

func TestSelect_OldestRequestPerSourceAccount(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	first := request(a, domain.StatusNew, testNow.Add(-3*time.Minute))
	second := request(a, domain.StatusNew, testNow.Add(-2*time.Minute))
	third := request(a, domain.StatusNew, testNow.Add(-1*time.Minute))
	other := request(b, domain.StatusNew, testNow.Add(-90*time.Second))

	selection := Select([]*domain.TransferRequest{third, other, second, first}, testNow)

	require.Len(t, selection.Dispatch, 2)
	assert.Equal(t, first.ID, selection.Dispatch[0].ID)
	assert.Equal(t, other.ID, selection.Dispatch[1].ID)
	assert.Empty(t, selection.Busy)
	assert.Empty(t, selection.Expired)
}

func TestSelect_TiesBrokenByID(t *testing.T) {
	source := uuid.New()
	x := request(source, domain.StatusNew, testNow.Add(-time.Minute))
	y := request(source, domain.StatusNew, testNow.Add(-time.Minute))
	want := x
	if y.ID.String() < x.ID.String() {
		want = y
	}

	selection := Select([]*domain.TransferRequest{x, y}, testNow)

	require.Len(t, selection.Dispatch, 1)
	assert.Equal(t, want.ID, selection.Dispatch[0].ID)
}

func TestSelect_InProgressHeadBlocksAccount(t *testing.T) {
	source := uuid.New()
	running := request(source, domain.StatusInProgress, testNow.Add(-2*time.Minute))
	waiting := request(source, domain.StatusNew, testNow.Add(-time.Minute))

	selection := Select([]*domain.TransferRequest{waiting, running}, testNow)

	assert.Empty(t, selection.Dispatch)
	require.Len(t, selection.Busy, 1)
	assert.Equal(t, running.ID, selection.Busy[0].ID)
}

func TestSelect_ExpiredRequestsAreNotDispatched(t *testing.T) {
	source := uuid.New()
	expired := request(source, domain.StatusNew, testNow.Add(-time.Hour))
	live := request(source, domain.StatusNew, testNow.Add(-time.Minute))
	atDeadline := request(uuid.New(), domain.StatusNew, testNow.Add(-10*time.Minute))

	selection := Select([]*domain.TransferRequest{expired, live, atDeadline}, testNow)

	require.Len(t, selection.Expired, 2)
	require.Len(t, selection.Dispatch, 1)
	assert.Equal(t, live.ID, selection.Dispatch[0].ID)
}

func TestSelect_IgnoresTerminalRequests(t *testing.T) {
	source := uuid.New()
	done := request(source, domain.StatusCompleted, testNow.Add(-time.Hour))
	failed := request(source, domain.StatusFailed, testNow.Add(-2*time.Hour))

	selection := Select([]*domain.TransferRequest{done, failed}, testNow)

	assert.Empty(t, selection.Dispatch)
	assert.Empty(t, selection.Busy)
	assert.Empty(t, selection.Expired)
}
