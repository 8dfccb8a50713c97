package tasks

import (
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/workflows"
)

// lifecycle holds every transition the core performs. selected and disputed
// are entered by external moderation, never by this package.
var lifecycle = workflows.NewStateMachine(map[Status][]Status{
	StatusDraft:        {StatusPosted},
	StatusPosted:       {StatusApplications, StatusCancelled},
	StatusApplications: {StatusInProgress, StatusCancelled},
	StatusSelected:     {StatusCancelled},
	StatusInProgress:   {StatusCompleted, StatusCancelled},
	StatusCompleted:    {},
	StatusCancelled:    {},
	StatusDisputed:     {},
})

// AllStatuses lists every lifecycle state
var AllStatuses = []Status{
	StatusDraft,
	StatusPosted,
	StatusApplications,
	StatusSelected,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusDisputed,
}

// CanTransition reports whether the lifecycle allows from → to
func CanTransition(from, to Status) bool {
	return lifecycle.CanTransition(from, to)
}

// AllowedTransitions returns the states reachable from status
func AllowedTransitions(status Status) []Status {
	return lifecycle.GetAllowedTransitions(status)
}

// IsTerminal reports whether status has no way out
func IsTerminal(status Status) bool {
	return lifecycle.IsTerminal(status)
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return apperrors.InvalidTransition("task", string(from), string(to))
	}
	return nil
}

// reschedulable lists the states a booked task can be moved in
func reschedulable(status Status) bool {
	switch status {
	case StatusApplications, StatusSelected, StatusInProgress:
		return true
	}
	return false
}
