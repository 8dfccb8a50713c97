package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
)

func newTestResolver() (*Resolver, *MemoryRepository) {
	repo := NewMemoryRepository()
	txm := database.NewMemoryTxManager(repo)
	return NewResolver(repo, txm, zap.NewNop()), repo
}

func window(date, start, end string) Window {
	return Window{Date: Date(date), Start: MustClock(start), End: MustClock(end)}
}

func addSlot(t *testing.T, repo *MemoryRepository, providerID uuid.UUID, w Window) TimeSlot {
	t.Helper()
	slot := TimeSlot{
		ID:          uuid.New(),
		ProviderID:  providerID,
		Date:        w.Date,
		StartTime:   w.Start,
		EndTime:     w.End,
		IsAvailable: true,
	}
	require.NoError(t, repo.InsertSlots(context.Background(), []TimeSlot{slot}))
	return slot
}

func slotState(t *testing.T, repo *MemoryRepository, id uuid.UUID) TimeSlot {
	t.Helper()
	slot, err := repo.GetSlot(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, slot)
	return *slot
}

func TestWindowOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Window
		want bool
	}{
		{"identical", window("2025-07-20", "09:00", "11:00"), window("2025-07-20", "09:00", "11:00"), true},
		{"partial", window("2025-07-20", "09:00", "11:00"), window("2025-07-20", "10:00", "12:00"), true},
		{"contained", window("2025-07-20", "09:00", "13:00"), window("2025-07-20", "10:00", "11:00"), true},
		{"back to back", window("2025-07-20", "09:00", "11:00"), window("2025-07-20", "11:00", "13:00"), false},
		{"back to back reversed", window("2025-07-20", "11:00", "13:00"), window("2025-07-20", "09:00", "11:00"), false},
		{"disjoint", window("2025-07-20", "09:00", "10:00"), window("2025-07-20", "14:00", "15:00"), false},
		{"other date", window("2025-07-20", "09:00", "11:00"), window("2025-07-21", "09:00", "11:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestReservePairsAcceptedIffDisjoint(t *testing.T) {
	pairs := []struct {
		first, second Window
	}{
		{window("2025-07-20", "09:00", "11:00"), window("2025-07-20", "11:00", "13:00")},
		{window("2025-07-20", "09:00", "11:00"), window("2025-07-20", "10:00", "12:00")},
		{window("2025-07-20", "09:00", "11:00"), window("2025-07-20", "08:00", "09:00")},
		{window("2025-07-20", "09:00", "13:00"), window("2025-07-20", "10:00", "11:00")},
		{window("2025-07-20", "09:00", "11:00"), window("2025-07-20", "08:30", "09:30")},
		{window("2025-07-20", "09:00", "11:00"), window("2025-07-21", "09:00", "11:00")},
	}

	for _, p := range pairs {
		t.Run(p.first.String()+" vs "+p.second.String(), func(t *testing.T) {
			resolver, repo := newTestResolver()
			ctx := context.Background()
			provider := uuid.New()
			addSlot(t, repo, provider, p.first)
			addSlot(t, repo, provider, p.second)

			_, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, ClientID: uuid.New(), TaskID: uuid.New(), Window: p.first})
			require.NoError(t, err)

			_, err = resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, ClientID: uuid.New(), TaskID: uuid.New(), Window: p.second})
			if p.first.Overlaps(p.second) {
				assert.True(t, apperrors.Is(err, apperrors.CodeSlotConflict), "expected conflict, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReserveFlipsSlotAndCreatesBooking(t *testing.T) {
	resolver, repo := newTestResolver()
	ctx := context.Background()
	provider, client, task := uuid.New(), uuid.New(), uuid.New()
	slot := addSlot(t, repo, provider, window("2025-07-20", "09:00", "11:00"))

	booking, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, ClientID: client, TaskID: task, Window: slot.Window()})
	require.NoError(t, err)

	assert.Equal(t, BookingConfirmed, booking.Status)
	assert.Equal(t, slot.ID, booking.SlotID)

	after := slotState(t, repo, slot.ID)
	assert.True(t, after.IsBooked)
	assert.False(t, after.IsAvailable)
	require.NotNil(t, after.TaskID)
	assert.Equal(t, task, *after.TaskID)

	active, err := resolver.ActiveBookingForTask(ctx, task)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, booking.ID, active.ID)
}

func TestReserveMissingOrBlockedSlotIsUnavailable(t *testing.T) {
	resolver, repo := newTestResolver()
	ctx := context.Background()
	provider := uuid.New()

	_, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, TaskID: uuid.New(), Window: window("2025-07-20", "09:00", "11:00")})
	assert.True(t, apperrors.Is(err, apperrors.CodeSlotUnavailable))

	blocked := TimeSlot{ID: uuid.New(), ProviderID: provider, Date: "2025-07-20", StartTime: MustClock("13:00"), EndTime: MustClock("15:00")}
	require.NoError(t, repo.InsertSlots(ctx, []TimeSlot{blocked}))
	_, err = resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, TaskID: uuid.New(), Window: blocked.Window()})
	assert.True(t, apperrors.Is(err, apperrors.CodeSlotUnavailable))

	_, err = resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, TaskID: uuid.New(), Window: window("2025-07-20", "11:00", "09:00")})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidArgument))
}

func TestConcurrentReservationsYieldOneBooking(t *testing.T) {
	resolver, repo := newTestResolver()
	ctx := context.Background()
	provider := uuid.New()
	slot := addSlot(t, repo, provider, window("2025-07-20", "09:00", "11:00"))

	const competitors = 8
	var wg sync.WaitGroup
	results := make(chan error, competitors)
	for i := 0; i < competitors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, ClientID: uuid.New(), TaskID: uuid.New(), Window: slot.Window()})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else if apperrors.Is(err, apperrors.CodeSlotConflict) {
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, competitors-1, conflicts)

	bookings, err := repo.ListActiveBookings(ctx, provider, slot.Date)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestReleaseIsIdempotent(t *testing.T) {
	resolver, repo := newTestResolver()
	ctx := context.Background()
	provider := uuid.New()
	slot := addSlot(t, repo, provider, window("2025-07-20", "09:00", "11:00"))

	booking, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, ClientID: uuid.New(), TaskID: uuid.New(), Window: slot.Window()})
	require.NoError(t, err)

	released, err := resolver.Release(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingCancelled, released.Status)
	assert.NotNil(t, released.CancelledAt)

	again, err := resolver.Release(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingCancelled, again.Status)

	after := slotState(t, repo, slot.ID)
	assert.True(t, after.IsAvailable)
	assert.False(t, after.IsBooked)
	assert.Nil(t, after.TaskID)

	stored, err := repo.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.NotNil(t, stored, "history is kept")

	_, err = resolver.Release(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestReleaseCompletedBookingIsInvalid(t *testing.T) {
	resolver, repo := newTestResolver()
	ctx := context.Background()
	provider := uuid.New()
	slot := addSlot(t, repo, provider, window("2025-07-20", "09:00", "11:00"))

	booking, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, TaskID: uuid.New(), Window: slot.Window()})
	require.NoError(t, err)
	_, err = resolver.Complete(ctx, booking.ID)
	require.NoError(t, err)

	_, err = resolver.Release(ctx, booking.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidTransition))
	assert.True(t, slotState(t, repo, slot.ID).IsBooked, "completed booking keeps its slot")
}

func TestRescheduleRoundTripRestoresSlots(t *testing.T) {
	resolver, repo := newTestResolver()
	ctx := context.Background()
	provider, task := uuid.New(), uuid.New()
	oldSlot := addSlot(t, repo, provider, window("2025-07-20", "09:00", "11:00"))
	newSlot := addSlot(t, repo, provider, window("2025-07-21", "14:00", "16:00"))

	booking, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, ClientID: uuid.New(), TaskID: task, Window: oldSlot.Window()})
	require.NoError(t, err)
	before := slotState(t, repo, oldSlot.ID)
	newBefore := slotState(t, repo, newSlot.ID)

	moved, err := resolver.Reschedule(ctx, booking.ID, newSlot.Window())
	require.NoError(t, err)
	assert.Equal(t, BookingRescheduled, moved.Status)
	assert.Equal(t, newSlot.ID, moved.SlotID)
	assert.True(t, slotState(t, repo, newSlot.ID).IsBooked)
	assert.False(t, slotState(t, repo, oldSlot.ID).IsBooked)

	back, err := resolver.Reschedule(ctx, booking.ID, oldSlot.Window())
	require.NoError(t, err)
	assert.Equal(t, oldSlot.ID, back.SlotID)

	restored := slotState(t, repo, oldSlot.ID)
	assert.Equal(t, before.IsAvailable, restored.IsAvailable)
	assert.Equal(t, before.IsBooked, restored.IsBooked)
	assert.Equal(t, before.TaskID, restored.TaskID)

	newAfter := slotState(t, repo, newSlot.ID)
	assert.Equal(t, newBefore.IsAvailable, newAfter.IsAvailable)
	assert.Equal(t, newBefore.IsBooked, newAfter.IsBooked)
	assert.Nil(t, newAfter.TaskID)
}

func TestRescheduleConflictLeavesBookingUntouched(t *testing.T) {
	resolver, repo := newTestResolver()
	ctx := context.Background()
	provider := uuid.New()
	mine := addSlot(t, repo, provider, window("2025-07-20", "09:00", "11:00"))
	theirs := addSlot(t, repo, provider, window("2025-07-20", "13:00", "15:00"))

	booking, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, TaskID: uuid.New(), Window: mine.Window()})
	require.NoError(t, err)
	_, err = resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, TaskID: uuid.New(), Window: theirs.Window()})
	require.NoError(t, err)

	_, err = resolver.Reschedule(ctx, booking.ID, theirs.Window())
	assert.True(t, apperrors.Is(err, apperrors.CodeSlotConflict))

	stored, err := repo.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingConfirmed, stored.Status)
	assert.Equal(t, mine.ID, stored.SlotID)
	assert.True(t, slotState(t, repo, mine.ID).IsBooked)
}

func TestRescheduleIgnoresOwnBookingWhenChecking(t *testing.T) {
	resolver, repo := newTestResolver()
	ctx := context.Background()
	provider := uuid.New()
	current := addSlot(t, repo, provider, window("2025-07-20", "09:00", "11:00"))
	shifted := addSlot(t, repo, provider, window("2025-07-20", "10:00", "12:00"))

	booking, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, TaskID: uuid.New(), Window: current.Window()})
	require.NoError(t, err)

	moved, err := resolver.Reschedule(ctx, booking.ID, shifted.Window())
	require.NoError(t, err)
	assert.Equal(t, shifted.ID, moved.SlotID)
	assert.False(t, slotState(t, repo, current.ID).IsBooked)
}

// failingRepo fails CreateBooking to exercise compensation
type failingRepo struct {
	*MemoryRepository
}

func (f failingRepo) CreateBooking(ctx context.Context, booking *Booking) error {
	return errors.New("disk full")
}

// noTx applies writes immediately, as a store without cross-row transactions would
type noTx struct{}

func (noTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestReservePersistenceFailureCompensates(t *testing.T) {
	mem := NewMemoryRepository()
	resolver := NewResolver(failingRepo{mem}, noTx{}, zap.NewNop())
	ctx := context.Background()
	provider := uuid.New()
	slot := addSlot(t, mem, provider, window("2025-07-20", "09:00", "11:00"))

	_, err := resolver.Reserve(ctx, ReserveRequest{ProviderID: provider, TaskID: uuid.New(), Window: slot.Window()})
	assert.True(t, apperrors.Is(err, apperrors.CodePersistenceFailure))

	after := slotState(t, mem, slot.ID)
	assert.True(t, after.IsAvailable)
	assert.False(t, after.IsBooked)
}
