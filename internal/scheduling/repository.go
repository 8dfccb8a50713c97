package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
)

// Repository persists slots, bookings and weekly schedules. Lookups return
// nil, nil when the row does not exist. Slot flag mutations are only called by
// the Resolver.
type Repository interface {
	GetSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	FindSlot(ctx context.Context, providerID uuid.UUID, window Window) (*TimeSlot, error)
	ListSlots(ctx context.Context, providerID uuid.UUID, from, to Date, onlyFree bool) ([]TimeSlot, error)
	InsertSlots(ctx context.Context, slots []TimeSlot) error
	DeleteUnbookedSlots(ctx context.Context, providerID uuid.UUID, from, to Date) (int64, error)
	// BookSlot flips a free slot to booked and reports whether this call won it.
	BookSlot(ctx context.Context, slotID, taskID uuid.UUID) (bool, error)
	FreeSlot(ctx context.Context, slotID uuid.UUID) error

	CreateBooking(ctx context.Context, booking *Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateBooking(ctx context.Context, booking *Booking) error
	ListActiveBookings(ctx context.Context, providerID uuid.UUID, date Date) ([]Booking, error)
	GetActiveBookingForTask(ctx context.Context, taskID uuid.UUID) (*Booking, error)

	GetSchedule(ctx context.Context, providerID uuid.UUID) (*WeeklySchedule, error)
	SaveSchedule(ctx context.Context, schedule *WeeklySchedule) error
	ListScheduledProviders(ctx context.Context) ([]uuid.UUID, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewRepository creates a PostgreSQL scheduling repository
func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const slotColumns = `id, provider_id, slot_date, start_time, end_time, is_available, is_booked, task_id, created_at, updated_at`

const bookingColumns = `id, provider_id, client_id, task_id, slot_id, booking_date, start_time, end_time, status, created_at, updated_at, cancelled_at`

func (r *postgresRepository) GetSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	var slot TimeSlot
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &slot,
		`SELECT `+slotColumns+` FROM time_slots WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

func (r *postgresRepository) FindSlot(ctx context.Context, providerID uuid.UUID, window Window) (*TimeSlot, error) {
	var slot TimeSlot
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &slot, `
		SELECT `+slotColumns+` FROM time_slots
		WHERE provider_id = $1 AND slot_date = $2 AND start_time = $3 AND end_time = $4
		ORDER BY is_booked ASC
		LIMIT 1`,
		providerID, window.Date, window.Start, window.End)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

func (r *postgresRepository) ListSlots(ctx context.Context, providerID uuid.UUID, from, to Date, onlyFree bool) ([]TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots
		WHERE provider_id = $1 AND slot_date BETWEEN $2 AND $3`
	if onlyFree {
		query += ` AND is_available AND NOT is_booked`
	}
	query += ` ORDER BY slot_date, start_time`

	var slots []TimeSlot
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &slots, query, providerID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

func (r *postgresRepository) InsertSlots(ctx context.Context, slots []TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	query := `
		INSERT INTO time_slots (` + slotColumns + `)
		VALUES (:id, :provider_id, :slot_date, :start_time, :end_time, :is_available, :is_booked, :task_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, slots); err != nil {
		return fmt.Errorf("failed to insert slots: %w", err)
	}
	return nil
}

func (r *postgresRepository) DeleteUnbookedSlots(ctx context.Context, providerID uuid.UUID, from, to Date) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		DELETE FROM time_slots
		WHERE provider_id = $1 AND slot_date BETWEEN $2 AND $3 AND NOT is_booked
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.slot_id = time_slots.id AND b.status IN ('confirmed', 'rescheduled')
		  )`,
		providerID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to delete slots: %w", err)
	}
	return res.RowsAffected()
}

func (r *postgresRepository) BookSlot(ctx context.Context, slotID, taskID uuid.UUID) (bool, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE time_slots
		SET is_booked = TRUE, is_available = FALSE, task_id = $2, updated_at = NOW()
		WHERE id = $1 AND is_available AND NOT is_booked`,
		slotID, taskID)
	if err != nil {
		return false, fmt.Errorf("failed to book slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to book slot: %w", err)
	}
	return n == 1, nil
}

func (r *postgresRepository) FreeSlot(ctx context.Context, slotID uuid.UUID) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE time_slots
		SET is_booked = FALSE, is_available = TRUE, task_id = NULL, updated_at = NOW()
		WHERE id = $1`,
		slotID)
	if err != nil {
		return fmt.Errorf("failed to free slot: %w", err)
	}
	return nil
}

func (r *postgresRepository) CreateBooking(ctx context.Context, booking *Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (:id, :provider_id, :client_id, :task_id, :slot_id, :booking_date, :start_time, :end_time, :status, :created_at, :updated_at, :cancelled_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &booking,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *postgresRepository) UpdateBooking(ctx context.Context, booking *Booking) error {
	query := `
		UPDATE bookings SET
			slot_id = :slot_id,
			booking_date = :booking_date,
			start_time = :start_time,
			end_time = :end_time,
			status = :status,
			updated_at = :updated_at,
			cancelled_at = :cancelled_at
		WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, booking); err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListActiveBookings(ctx context.Context, providerID uuid.UUID, date Date) ([]Booking, error) {
	var bookings []Booking
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &bookings, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE provider_id = $1 AND booking_date = $2 AND status IN ('confirmed', 'rescheduled')
		ORDER BY start_time
		FOR UPDATE`,
		providerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *postgresRepository) GetActiveBookingForTask(ctx context.Context, taskID uuid.UUID) (*Booking, error) {
	var booking Booking
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &booking, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE task_id = $1 AND status IN ('confirmed', 'rescheduled')
		ORDER BY created_at DESC
		LIMIT 1`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking for task: %w", err)
	}
	return &booking, nil
}

func (r *postgresRepository) GetSchedule(ctx context.Context, providerID uuid.UUID) (*WeeklySchedule, error) {
	var schedule WeeklySchedule
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &schedule,
		`SELECT provider_id, days, timezone, updated_at FROM provider_schedules WHERE provider_id = $1`, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}

func (r *postgresRepository) SaveSchedule(ctx context.Context, schedule *WeeklySchedule) error {
	query := `
		INSERT INTO provider_schedules (provider_id, days, timezone, updated_at)
		VALUES (:provider_id, :days, :timezone, :updated_at)
		ON CONFLICT (provider_id) DO UPDATE SET
			days = EXCLUDED.days,
			timezone = EXCLUDED.timezone,
			updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, schedule); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListScheduledProviders(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &ids,
		`SELECT provider_id FROM provider_schedules ORDER BY provider_id`); err != nil {
		return nil, fmt.Errorf("failed to list scheduled providers: %w", err)
	}
	return ids, nil
}
