package tasks

import (
	"time"

	"github.com/google/uuid"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/scheduling"
)

// Status is a task lifecycle state
type Status string

const (
	StatusDraft        Status = "draft"
	StatusPosted       Status = "posted"
	StatusApplications Status = "applications"
	StatusSelected     Status = "selected"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
	StatusDisputed     Status = "disputed"
)

// Urgency is how soon the client needs the work done
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyNormal    Urgency = "normal"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyEmergency:
		return true
	}
	return false
}

// Task is a unit of requested work. RequestedProviderID is set when the client
// addressed the request to one provider; ProviderID is set on acceptance.
type Task struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	ClientID            uuid.UUID  `json:"client_id" db:"client_id"`
	RequestedProviderID *uuid.UUID `json:"requested_provider_id,omitempty" db:"requested_provider_id"`
	ProviderID          *uuid.UUID `json:"provider_id,omitempty" db:"provider_id"`
	Title               string     `json:"title" db:"title"`
	Description         string     `json:"description" db:"description"`
	Category            string     `json:"category" db:"category"`
	Status              Status     `json:"status" db:"status"`
	BudgetMin           int64      `json:"budget_min" db:"budget_min"`
	BudgetMax           int64      `json:"budget_max" db:"budget_max"`
	Urgency             Urgency    `json:"urgency" db:"urgency"`
	Address             string     `json:"address" db:"address"`
	ScheduledAt         *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
	RespondedAt         *time.Time `json:"responded_at,omitempty" db:"responded_at"`
	StartedAt           *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason  *string    `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
}

// IsClient reports whether userID posted the task
func (t *Task) IsClient(userID uuid.UUID) bool {
	return t.ClientID == userID
}

// IsProvider reports whether userID is the assigned or the requested provider
func (t *Task) IsProvider(userID uuid.UUID) bool {
	if t.ProviderID != nil {
		return *t.ProviderID == userID
	}
	return t.RequestedProviderID != nil && *t.RequestedProviderID == userID
}

// counterpart returns the other party of the task, if known
func (t *Task) counterpart(actor uuid.UUID) *uuid.UUID {
	if t.IsClient(actor) {
		if t.ProviderID != nil {
			return t.ProviderID
		}
		return t.RequestedProviderID
	}
	client := t.ClientID
	return &client
}

// CreateTaskRequest is the input of CreateTask
type CreateTaskRequest struct {
	ClientID            uuid.UUID  `json:"-"`
	RequestedProviderID *uuid.UUID `json:"requested_provider_id,omitempty"`
	Title               string     `json:"title" binding:"required"`
	Description         string     `json:"description"`
	Category            string     `json:"category" binding:"required"`
	BudgetMin           int64      `json:"budget_min" binding:"required"`
	BudgetMax           int64      `json:"budget_max" binding:"required"`
	Urgency             Urgency    `json:"urgency"`
	Address             string     `json:"address" binding:"required"`
	Publish             bool       `json:"publish"`
}

// ListFilter narrows ListTasks
type ListFilter struct {
	ClientID   *uuid.UUID
	ProviderID *uuid.UUID
	Status     *Status
	Limit      int
	Offset     int
}

// Transition is the result of a lifecycle operation
type Transition struct {
	Task    *Task               `json:"task"`
	Booking *scheduling.Booking `json:"booking,omitempty"`
}
