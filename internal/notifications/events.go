package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a lifecycle or verification event
type Kind string

const (
	KindTaskPosted              Kind = "TaskPosted"
	KindTaskAccepted            Kind = "TaskAccepted"
	KindTaskDeclined            Kind = "TaskDeclined"
	KindTaskCancelled           Kind = "TaskCancelled"
	KindTaskStarted             Kind = "TaskStarted"
	KindTaskCompleted           Kind = "TaskCompleted"
	KindTaskRescheduled         Kind = "TaskRescheduled"
	KindVerificationStepChanged Kind = "VerificationStepChanged"
)

// Valid reports whether k is a known event kind
func (k Kind) Valid() bool {
	switch k {
	case KindTaskPosted, KindTaskAccepted, KindTaskDeclined, KindTaskCancelled,
		KindTaskStarted, KindTaskCompleted, KindTaskRescheduled, KindVerificationStepChanged:
		return true
	}
	return false
}

// Event is the typed intent the core emits after a committed state change
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Kind       Kind           `json:"kind"`
	UserID     uuid.UUID      `json:"user_id"`
	TaskID     *uuid.UUID     `json:"task_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent builds an event addressed to userID
func NewEvent(kind Kind, userID uuid.UUID, taskID *uuid.UUID, payload map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		UserID:     userID,
		TaskID:     taskID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Dispatcher delivers events. Implementations own in-app rows and push transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// title and body shown for each kind in the in-app list and push payloads
func render(event Event) (string, string) {
	switch event.Kind {
	case KindTaskPosted:
		return "Task published", "Your task is now visible to providers."
	case KindTaskAccepted:
		return "Task accepted", "A provider accepted your task and reserved a time slot."
	case KindTaskDeclined:
		return "Task declined", "The provider declined your task."
	case KindTaskCancelled:
		return "Task cancelled", "The task has been cancelled."
	case KindTaskStarted:
		return "Task started", "The client authorised the task to start."
	case KindTaskCompleted:
		return "Task completed", "The task is done. Please rate your experience."
	case KindTaskRescheduled:
		return "Task rescheduled", "The booking was moved to a new time."
	case KindVerificationStepChanged:
		if status, ok := event.Payload["status"].(string); ok && status == "approved" {
			return "Verification approved", "One of your verification steps was approved."
		}
		return "Verification update", "One of your verification steps changed status."
	default:
		return string(event.Kind), ""
	}
}
