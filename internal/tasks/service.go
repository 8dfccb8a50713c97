package tasks

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/notifications"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/scheduling"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Bookings is the booking resolver the lifecycle drives
type Bookings interface {
	Reserve(ctx context.Context, req scheduling.ReserveRequest) (*scheduling.Booking, error)
	Release(ctx context.Context, bookingID uuid.UUID) (*scheduling.Booking, error)
	Reschedule(ctx context.Context, bookingID uuid.UUID, window scheduling.Window) (*scheduling.Booking, error)
	Complete(ctx context.Context, bookingID uuid.UUID) (*scheduling.Booking, error)
	ActiveBookingForTask(ctx context.Context, taskID uuid.UUID) (*scheduling.Booking, error)
}

// EventEmitter receives notification intents after a transition has committed
type EventEmitter interface {
	Emit(ctx context.Context, events ...notifications.Event)
}

// Service runs the task lifecycle. Each transition and its booking side effect
// commit together; notifications go out after the commit.
type Service struct {
	repo     Repository
	bookings Bookings
	tx       database.TxManager
	events   EventEmitter
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, bookings Bookings, tx database.TxManager, events EventEmitter, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		bookings: bookings,
		tx:       tx,
		events:   events,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateTask stores a new task as draft, or posted when req.Publish is set
func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	if req.BudgetMin <= 0 || req.BudgetMin > req.BudgetMax {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "Budget must be positive and the minimum must not exceed the maximum.").
			WithField("budget_min", strconv.FormatInt(req.BudgetMin, 10)).
			WithField("budget_max", strconv.FormatInt(req.BudgetMax, 10))
	}
	if req.Urgency == "" {
		req.Urgency = UrgencyNormal
	}
	if !req.Urgency.Valid() {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "Unknown urgency "+string(req.Urgency)+".")
	}
	if req.RequestedProviderID != nil && *req.RequestedProviderID == req.ClientID {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "You cannot request yourself as provider.")
	}

	now := s.now()
	task := &Task{
		ID:                  uuid.New(),
		ClientID:            req.ClientID,
		RequestedProviderID: req.RequestedProviderID,
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		Status:              StatusDraft,
		BudgetMin:           req.BudgetMin,
		BudgetMax:           req.BudgetMax,
		Urgency:             req.Urgency,
		Address:             req.Address,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.Publish {
		task.Status = StatusPosted
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, apperrors.Persistence("create task", err)
	}

	s.logger.Info("Task created",
		zap.String("task_id", task.ID.String()),
		zap.String("client_id", task.ClientID.String()),
		zap.String("status", string(task.Status)))
	if task.Status == StatusPosted {
		s.emit(ctx, s.event(notifications.KindTaskPosted, task.ClientID, task, nil))
	}
	return task, nil
}

// GetTask returns a task by id
func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.Persistence("get task", err)
	}
	if task == nil {
		return nil, apperrors.NotFound("task", id.String())
	}
	return task, nil
}

// ListTasks returns tasks matching filter, newest first
func (s *Service) ListTasks(ctx context.Context, filter ListFilter) ([]Task, error) {
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Persistence("list tasks", err)
	}
	return tasks, nil
}

// AllowedTransitions lists the states a task in status can move to
func (s *Service) AllowedTransitions(status Status) []Status {
	return AllowedTransitions(status)
}

// Publish moves a draft to posted
func (s *Service) Publish(ctx context.Context, taskID, actor uuid.UUID) (*Task, error) {
	task, err := s.advance(ctx, taskID, StatusPosted, clientOnly(actor), nil)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, s.event(notifications.KindTaskPosted, task.ClientID, task, nil))
	return task, nil
}

// Accept assigns the provider and reserves the provider's slot for window
func (s *Service) Accept(ctx context.Context, taskID, providerID uuid.UUID, window scheduling.Window) (*Transition, error) {
	if err := window.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid booking window", err)
	}

	var booking *scheduling.Booking
	authorize := func(t *Task) error {
		if t.IsClient(providerID) {
			return apperrors.New(apperrors.CodeForbidden, "You cannot accept your own task.")
		}
		if t.RequestedProviderID != nil && *t.RequestedProviderID != providerID {
			return apperrors.New(apperrors.CodeForbidden, "This request was sent to another provider.")
		}
		return nil
	}
	task, err := s.advance(ctx, taskID, StatusApplications, authorize, func(ctx context.Context, t *Task, now time.Time) error {
		// the reservation is the free-slot guard: it fails with SLOT_UNAVAILABLE
		// or SLOT_CONFLICT and nothing is written
		var err error
		booking, err = s.bookings.Reserve(ctx, scheduling.ReserveRequest{
			ProviderID: providerID,
			ClientID:   t.ClientID,
			TaskID:     t.ID,
			Window:     window,
		})
		if err != nil {
			return err
		}

		startsAt, err := window.StartsAt(time.UTC)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid booking window", err)
		}
		provider := providerID
		t.ProviderID = &provider
		t.RespondedAt = &now
		t.ScheduledAt = &startsAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.event(notifications.KindTaskAccepted, task.ClientID, task, bookingPayload(booking)))
	return &Transition{Task: task, Booking: booking}, nil
}

// Decline lets the requested provider turn a posted request down
func (s *Service) Decline(ctx context.Context, taskID, providerID uuid.UUID, reason string) (*Task, error) {
	authorize := func(t *Task) error {
		if t.RequestedProviderID == nil || *t.RequestedProviderID != providerID {
			return apperrors.New(apperrors.CodeForbidden, "Only the requested provider can decline this task.")
		}
		return onlyWhilePosted(t)
	}
	task, err := s.advance(ctx, taskID, StatusCancelled, authorize, func(ctx context.Context, t *Task, now time.Time) error {
		t.RespondedAt = &now
		stampCancellation(t, now, reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, s.event(notifications.KindTaskDeclined, task.ClientID, task, reasonPayload(reason)))
	return task, nil
}

// Withdraw lets the client take a posted task down before anyone accepts it
func (s *Service) Withdraw(ctx context.Context, taskID, clientID uuid.UUID, reason string) (*Task, error) {
	authorize := func(t *Task) error {
		if err := clientOnly(clientID)(t); err != nil {
			return err
		}
		return onlyWhilePosted(t)
	}
	task, err := s.advance(ctx, taskID, StatusCancelled, authorize, func(ctx context.Context, t *Task, now time.Time) error {
		stampCancellation(t, now, reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// An open task has nobody else to tell; the client's own sessions still need the event
	recipient := task.ClientID
	if task.RequestedProviderID != nil {
		recipient = *task.RequestedProviderID
	}
	s.emit(ctx, s.event(notifications.KindTaskCancelled, recipient, task, reasonPayload(reason)))
	return task, nil
}

// Start moves an accepted task to in_progress once its booking is confirmed
func (s *Service) Start(ctx context.Context, taskID, clientID uuid.UUID) (*Task, error) {
	task, err := s.advance(ctx, taskID, StatusInProgress, clientOnly(clientID), func(ctx context.Context, t *Task, now time.Time) error {
		booking, err := s.bookings.ActiveBookingForTask(ctx, t.ID)
		if err != nil {
			return err
		}
		if booking == nil {
			return apperrors.InvalidTransition("task", string(StatusApplications), string(StatusInProgress)).
				WithField("reason", "no active booking")
		}
		t.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if task.ProviderID != nil {
		s.emit(ctx, s.event(notifications.KindTaskStarted, *task.ProviderID, task, nil))
	}
	return task, nil
}

// Complete marks the work done. The booking is kept as history and both
// parties are asked for a rating.
func (s *Service) Complete(ctx context.Context, taskID, actor uuid.UUID) (*Transition, error) {
	var booking *scheduling.Booking
	task, err := s.advance(ctx, taskID, StatusCompleted, eitherParty(actor), func(ctx context.Context, t *Task, now time.Time) error {
		active, err := s.bookings.ActiveBookingForTask(ctx, t.ID)
		if err != nil {
			return err
		}
		if active != nil {
			if booking, err = s.bookings.Complete(ctx, active.ID); err != nil {
				return err
			}
		}
		t.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{"solicit_rating": true}
	events := []notifications.Event{s.event(notifications.KindTaskCompleted, task.ClientID, task, payload)}
	if task.ProviderID != nil {
		events = append(events, s.event(notifications.KindTaskCompleted, *task.ProviderID, task, payload))
	}
	s.emit(ctx, events...)
	return &Transition{Task: task, Booking: booking}, nil
}

// Cancel stops a task before completion and releases its booking, if any
func (s *Service) Cancel(ctx context.Context, taskID, actor uuid.UUID, reason string) (*Transition, error) {
	var booking *scheduling.Booking
	task, err := s.advance(ctx, taskID, StatusCancelled, eitherParty(actor), func(ctx context.Context, t *Task, now time.Time) error {
		active, err := s.bookings.ActiveBookingForTask(ctx, t.ID)
		if err != nil {
			return err
		}
		if active != nil {
			if booking, err = s.bookings.Release(ctx, active.ID); err != nil {
				return err
			}
		}
		stampCancellation(t, now, reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	recipient := task.ClientID
	if other := task.counterpart(actor); other != nil {
		recipient = *other
	}
	payload := reasonPayload(reason)
	if payload == nil {
		payload = map[string]any{}
	}
	payload["cancelled_by"] = actor.String()
	s.emit(ctx, s.event(notifications.KindTaskCancelled, recipient, task, payload))
	return &Transition{Task: task, Booking: booking}, nil
}

// Reschedule moves the task's booking to window without changing its status
func (s *Service) Reschedule(ctx context.Context, taskID, actor uuid.UUID, window scheduling.Window) (*Transition, error) {
	if err := window.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid booking window", err)
	}

	var task *Task
	var booking *scheduling.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := eitherParty(actor)(current); err != nil {
			return err
		}
		if !reschedulable(current.Status) {
			return apperrors.InvalidTransition("task", string(current.Status), "rescheduled")
		}

		active, err := s.bookings.ActiveBookingForTask(ctx, current.ID)
		if err != nil {
			return err
		}
		if active == nil {
			return apperrors.InvalidTransition("task", string(current.Status), "rescheduled").
				WithField("reason", "no active booking")
		}
		if booking, err = s.bookings.Reschedule(ctx, active.ID, window); err != nil {
			return err
		}

		startsAt, err := window.StartsAt(time.UTC)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid booking window", err)
		}
		updated := *current
		updated.ScheduledAt = &startsAt
		updated.UpdatedAt = s.now()
		if err := s.save(ctx, &updated, current.Status); err != nil {
			return err
		}
		task = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if other := task.counterpart(actor); other != nil {
		s.emit(ctx, s.event(notifications.KindTaskRescheduled, *other, task, bookingPayload(booking)))
	}
	return &Transition{Task: task, Booking: booking}, nil
}

type effectFunc func(ctx context.Context, task *Task, now time.Time) error

// advance applies one lifecycle transition and its side effect in a single unit of work
func (s *Service) advance(ctx context.Context, taskID uuid.UUID, to Status, authorize func(*Task) error, effect effectFunc) (*Task, error) {
	var task *Task
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := authorize(current); err != nil {
			return err
		}
		if err := checkTransition(current.Status, to); err != nil {
			return err
		}

		now := s.now()
		updated := *current
		updated.Status = to
		updated.UpdatedAt = now
		if effect != nil {
			if err := effect(ctx, &updated, now); err != nil {
				return err
			}
		}
		if err := s.save(ctx, &updated, current.Status); err != nil {
			return err
		}
		task = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task transitioned",
		zap.String("task_id", task.ID.String()),
		zap.String("status", string(task.Status)))
	return task, nil
}

// save writes task iff its stored status is still expected. The loser of a
// concurrent transition learns the status it lost to.
func (s *Service) save(ctx context.Context, task *Task, expected Status) error {
	ok, err := s.repo.Update(ctx, task, expected)
	if err != nil {
		return apperrors.Persistence("update task", err)
	}
	if ok {
		return nil
	}
	from := expected
	if current, err := s.repo.Get(ctx, task.ID); err == nil && current != nil {
		from = current.Status
	}
	return apperrors.InvalidTransition("task", string(from), string(task.Status))
}

func (s *Service) event(kind notifications.Kind, userID uuid.UUID, task *Task, payload map[string]any) notifications.Event {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = string(task.Status)
	payload["title"] = task.Title
	taskID := task.ID
	return notifications.NewEvent(kind, userID, &taskID, payload)
}

func (s *Service) emit(ctx context.Context, events ...notifications.Event) {
	s.events.Emit(context.WithoutCancel(ctx), events...)
}

func clientOnly(actor uuid.UUID) func(*Task) error {
	return func(t *Task) error {
		if !t.IsClient(actor) {
			return apperrors.New(apperrors.CodeForbidden, "Only the client can do this.")
		}
		return nil
	}
}

func eitherParty(actor uuid.UUID) func(*Task) error {
	return func(t *Task) error {
		if !t.IsClient(actor) && !t.IsProvider(actor) {
			return apperrors.New(apperrors.CodeForbidden, "You are not part of this task.")
		}
		return nil
	}
}

// onlyWhilePosted limits decline and withdraw to tasks nobody accepted yet
func onlyWhilePosted(t *Task) error {
	if t.Status != StatusPosted {
		return apperrors.InvalidTransition("task", string(t.Status), string(StatusCancelled))
	}
	return nil
}

func stampCancellation(t *Task, now time.Time, reason string) {
	t.CancelledAt = &now
	if reason != "" {
		r := reason
		t.CancellationReason = &r
	}
}

func bookingPayload(b *scheduling.Booking) map[string]any {
	if b == nil {
		return nil
	}
	return map[string]any{
		"booking_id":  b.ID.String(),
		"provider_id": b.ProviderID.String(),
		"date":        b.Date.String(),
		"start_time":  b.StartTime.String(),
		"end_time":    b.EndTime.String(),
	}
}

func reasonPayload(reason string) map[string]any {
	if reason == "" {
		return nil
	}
	return map[string]any{"reason": reason}
}
