package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
)

// Resolver is the only writer of slot availability. It reserves, releases and
// moves bookings so that a slot is never held by two active bookings.
type Resolver struct {
	repo   Repository
	tx     database.TxManager
	logger *zap.Logger
	now    func() time.Time
}

// NewResolver creates a booking conflict resolver
func NewResolver(repo Repository, tx database.TxManager, logger *zap.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		tx:     tx,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ReserveRequest identifies the window a task wants on a provider's calendar
type ReserveRequest struct {
	ProviderID uuid.UUID
	ClientID   uuid.UUID
	TaskID     uuid.UUID
	Window     Window
}

// Reserve books the provider's slot matching req.Window for the task.
// Overlap with an active booking yields SLOT_CONFLICT; a missing or blocked
// slot yields SLOT_UNAVAILABLE.
func (r *Resolver) Reserve(ctx context.Context, req ReserveRequest) (*Booking, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid booking window", err)
	}

	var booking *Booking
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.checkConflicts(ctx, req.ProviderID, req.Window, uuid.Nil); err != nil {
			return err
		}

		slot, err := r.lookupFreeSlot(ctx, req.ProviderID, req.Window)
		if err != nil {
			return err
		}

		won, err := r.repo.BookSlot(ctx, slot.ID, req.TaskID)
		if err != nil {
			return apperrors.Persistence("book slot", err)
		}
		if !won {
			return r.conflict(req.ProviderID, req.Window)
		}

		now := r.now()
		b := &Booking{
			ID:         uuid.New(),
			ProviderID: req.ProviderID,
			ClientID:   req.ClientID,
			TaskID:     req.TaskID,
			SlotID:     slot.ID,
			Date:       req.Window.Date,
			StartTime:  req.Window.Start,
			EndTime:    req.Window.End,
			Status:     BookingConfirmed,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := r.repo.CreateBooking(ctx, b); err != nil {
			r.compensate(ctx, slot.ID, "create booking failed")
			return apperrors.Persistence("create booking", err)
		}

		if err := r.verifyHeld(ctx, slot.ID, req.TaskID); err != nil {
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Slot reserved",
		zap.String("booking_id", booking.ID.String()),
		zap.String("provider_id", booking.ProviderID.String()),
		zap.String("task_id", booking.TaskID.String()),
		zap.Stringer("window", booking.Window()))
	return booking, nil
}

// Release cancels the booking and returns its slot to the provider's free
// calendar. Releasing an already cancelled booking is a no-op.
func (r *Resolver) Release(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	var booking *Booking
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := r.getBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		switch {
		case b.Status == BookingCancelled:
			booking = b
			return nil
		case !b.Active():
			return apperrors.InvalidTransition("booking", string(b.Status), string(BookingCancelled))
		}

		if err := r.repo.FreeSlot(ctx, b.SlotID); err != nil {
			return apperrors.Persistence("free slot", err)
		}
		now := r.now()
		b.Status = BookingCancelled
		b.UpdatedAt = now
		b.CancelledAt = &now
		if err := r.repo.UpdateBooking(ctx, b); err != nil {
			return apperrors.Persistence("cancel booking", err)
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Booking released",
		zap.String("booking_id", booking.ID.String()),
		zap.String("slot_id", booking.SlotID.String()))
	return booking, nil
}

// Reschedule moves an active booking to the slot matching newWindow. The
// conflict check ignores the booking being moved. On any failure the original
// booking and slot are left as they were.
func (r *Resolver) Reschedule(ctx context.Context, bookingID uuid.UUID, newWindow Window) (*Booking, error) {
	if err := newWindow.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid booking window", err)
	}

	var booking *Booking
	var previous Window
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := r.getBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Active() {
			return apperrors.InvalidTransition("booking", string(b.Status), string(BookingRescheduled))
		}
		previous = b.Window()
		if previous == newWindow {
			booking = b
			return nil
		}

		if err := r.checkConflicts(ctx, b.ProviderID, newWindow, b.ID); err != nil {
			return err
		}
		slot, err := r.lookupFreeSlot(ctx, b.ProviderID, newWindow)
		if err != nil {
			return err
		}

		oldSlotID := b.SlotID
		if err := r.repo.FreeSlot(ctx, oldSlotID); err != nil {
			return apperrors.Persistence("free previous slot", err)
		}
		won, err := r.repo.BookSlot(ctx, slot.ID, b.TaskID)
		if err != nil || !won {
			r.restore(ctx, oldSlotID, b.TaskID)
			if err != nil {
				return apperrors.Persistence("book new slot", err)
			}
			return r.conflict(b.ProviderID, newWindow)
		}

		b.SlotID = slot.ID
		b.Date = newWindow.Date
		b.StartTime = newWindow.Start
		b.EndTime = newWindow.End
		b.Status = BookingRescheduled
		b.UpdatedAt = r.now()
		if err := r.repo.UpdateBooking(ctx, b); err != nil {
			r.compensate(ctx, slot.ID, "update booking failed")
			r.restore(ctx, oldSlotID, b.TaskID)
			return apperrors.Persistence("update booking", err)
		}

		if err := r.verifyHeld(ctx, slot.ID, b.TaskID); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Booking rescheduled",
		zap.String("booking_id", booking.ID.String()),
		zap.Stringer("from", previous),
		zap.Stringer("to", booking.Window()))
	return booking, nil
}

// Complete marks an active booking as completed. The slot stays booked as history.
func (r *Resolver) Complete(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	var booking *Booking
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := r.getBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		switch {
		case b.Status == BookingCompleted:
			booking = b
			return nil
		case !b.Active():
			return apperrors.InvalidTransition("booking", string(b.Status), string(BookingCompleted))
		}
		b.Status = BookingCompleted
		b.UpdatedAt = r.now()
		if err := r.repo.UpdateBooking(ctx, b); err != nil {
			return apperrors.Persistence("complete booking", err)
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// GetBooking returns a booking by id
func (r *Resolver) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return r.getBooking(ctx, id)
}

// ActiveBookingForTask returns the booking holding a slot for the task, or nil
func (r *Resolver) ActiveBookingForTask(ctx context.Context, taskID uuid.UUID) (*Booking, error) {
	b, err := r.repo.GetActiveBookingForTask(ctx, taskID)
	if err != nil {
		return nil, apperrors.Persistence("get booking for task", err)
	}
	return b, nil
}

func (r *Resolver) getBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := r.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, apperrors.Persistence("get booking", err)
	}
	if b == nil {
		return nil, apperrors.NotFound("booking", id.String())
	}
	return b, nil
}

// checkConflicts rejects window if it overlaps an active booking other than exclude
func (r *Resolver) checkConflicts(ctx context.Context, providerID uuid.UUID, window Window, exclude uuid.UUID) error {
	bookings, err := r.repo.ListActiveBookings(ctx, providerID, window.Date)
	if err != nil {
		return apperrors.Persistence("list bookings", err)
	}
	for _, b := range bookings {
		if b.ID == exclude {
			continue
		}
		if b.Window().Overlaps(window) {
			return r.conflict(providerID, window).WithField("conflicting_booking_id", b.ID.String())
		}
	}
	return nil
}

func (r *Resolver) lookupFreeSlot(ctx context.Context, providerID uuid.UUID, window Window) (*TimeSlot, error) {
	slot, err := r.repo.FindSlot(ctx, providerID, window)
	if err != nil {
		return nil, apperrors.Persistence("find slot", err)
	}
	if slot == nil || (!slot.IsAvailable && !slot.IsBooked) {
		return nil, apperrors.New(apperrors.CodeSlotUnavailable, "no free slot for "+window.String()).
			WithField("provider_id", providerID.String())
	}
	if slot.IsBooked {
		return nil, r.conflict(providerID, window)
	}
	return slot, nil
}

func (r *Resolver) conflict(providerID uuid.UUID, window Window) *apperrors.Error {
	return apperrors.SlotConflict(providerID.String(), window.Date.String(), window.Start.String(), window.End.String())
}

// verifyHeld re-reads the slot after the write and fails if the task does not hold it
func (r *Resolver) verifyHeld(ctx context.Context, slotID, taskID uuid.UUID) error {
	slot, err := r.repo.GetSlot(ctx, slotID)
	if err != nil {
		return apperrors.Persistence("verify slot", err)
	}
	if slot == nil || !slot.IsBooked || slot.IsAvailable || slot.TaskID == nil || *slot.TaskID != taskID {
		r.logger.Warn("Slot not held after reservation",
			zap.String("slot_id", slotID.String()),
			zap.String("task_id", taskID.String()))
		return apperrors.New(apperrors.CodeSlotConflict, "slot was taken during reservation").
			WithField("slot_id", slotID.String())
	}
	return nil
}

// compensate frees a slot flipped earlier in a failed unit of work. Inside a
// database transaction the rollback already covers this.
func (r *Resolver) compensate(ctx context.Context, slotID uuid.UUID, reason string) {
	if err := r.repo.FreeSlot(ctx, slotID); err != nil {
		r.logger.Error("Failed to compensate slot",
			zap.String("slot_id", slotID.String()),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func (r *Resolver) restore(ctx context.Context, slotID, taskID uuid.UUID) {
	if _, err := r.repo.BookSlot(ctx, slotID, taskID); err != nil {
		r.logger.Error("Failed to restore previous slot",
			zap.String("slot_id", slotID.String()),
			zap.Error(err))
	}
}
