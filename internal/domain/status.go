package domain

import (
	"fmt"
	"slices"
)

// TransferStatus is the lifecycle state of a transfer request.
type TransferStatus string

const (
	StatusNew        TransferStatus = "NEW"
	StatusInProgress TransferStatus = "IN_PROGRESS"
	StatusCompleted  TransferStatus = "COMPLETED"
	StatusFailed     TransferStatus = "FAILED"
)

// allowedSources lists, per target status, the statuses a request may move
// from. NEW is never a target and terminal statuses are never a source.
var allowedSources = map[TransferStatus][]TransferStatus{
	StatusInProgress: {StatusNew},
	StatusCompleted:  {StatusInProgress},
	StatusFailed:     {StatusNew, StatusInProgress},
}

// ParseTransferStatus validates and converts a raw string status.
func ParseTransferStatus(raw string) (TransferStatus, error) {
	status := TransferStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid transfer status %q", raw)
	}
	return status, nil
}

func (s TransferStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

func (s TransferStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether the engine still has work to do for the status.
func (s TransferStatus) IsActive() bool {
	return s == StatusNew || s == StatusInProgress
}

// CanTransitionTo reports whether a transition from s to next is allowed.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	return slices.Contains(allowedSources[next], s)
}

// AllowedSources returns the statuses a request may hold to move to target.
func AllowedSources(target TransferStatus) []TransferStatus {
	return slices.Clone(allowedSources[target])
}

// ActiveStatuses returns the non-terminal statuses.
func ActiveStatuses() []TransferStatus {
	return []TransferStatus{StatusNew, StatusInProgress}
}

func (s TransferStatus) String() string {
	return string(s)
}
