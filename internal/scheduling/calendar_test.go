package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
)

// 2025-07-21 is a Monday
var monday = time.Date(2025, 7, 21, 8, 0, 0, 0, time.UTC)

func windowsOf(slots []TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Window().String())
	}
	return out
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{"09:00", 540, false},
		{"09:30:00", 570, false},
		{"24:00", 1440, false},
		{"00:00", 0, false},
		{"25:00", 0, true},
		{"nine", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "09:05", ClockTime(545).String())
}

func TestGenerateSlots(t *testing.T) {
	provider := uuid.New()
	template := WeekTemplate{
		"monday": {
			{Start: MustClock("09:00"), End: MustClock("13:00"), IsAvailable: true},
			{Start: MustClock("14:00"), End: MustClock("15:30"), IsAvailable: true},
		},
		"wednesday": {
			{Start: MustClock("10:00"), End: MustClock("12:00"), IsAvailable: false},
		},
	}

	slots := GenerateSlots(provider, template, monday, 7, 2*time.Hour)

	assert.Equal(t, []string{
		"2025-07-21 09:00-11:00",
		"2025-07-21 11:00-13:00",
		"2025-07-23 10:00-12:00",
	}, windowsOf(slots))
	assert.True(t, slots[0].Free())
	assert.False(t, slots[2].IsAvailable, "blocked windows produce unavailable slots")
	for _, s := range slots {
		assert.Equal(t, provider, s.ProviderID)
		assert.False(t, s.IsBooked)
	}

	assert.Len(t, GenerateSlots(provider, template, monday, 14, 2*time.Hour), 6)
	assert.Empty(t, GenerateSlots(provider, template, monday, 0, 2*time.Hour))
	assert.Empty(t, GenerateSlots(provider, WeekTemplate{}, monday, 30, 2*time.Hour))
}

func newTestCalendar() (*Calendar, *Resolver, *MemoryRepository) {
	repo := NewMemoryRepository()
	txm := database.NewMemoryTxManager(repo)
	cal := NewCalendar(repo, txm, CalendarConfig{SlotLength: 2 * time.Hour, HorizonDays: 7}, zap.NewNop())
	cal.now = func() time.Time { return monday }
	return cal, NewResolver(repo, txm, zap.NewNop()), repo
}

func TestSetScheduleGeneratesHorizon(t *testing.T) {
	cal, _, _ := newTestCalendar()
	ctx := context.Background()
	provider := uuid.New()

	schedule, generated, err := cal.SetSchedule(ctx, provider, WeekTemplate{
		"monday": {{Start: MustClock("09:00"), End: MustClock("13:00"), IsAvailable: true}},
	}, "UTC")
	require.NoError(t, err)
	assert.Equal(t, 2, generated)
	assert.Equal(t, provider, schedule.ProviderID)

	slots, err := cal.ListSlots(ctx, provider, "2025-07-21", "2025-07-27", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-21 09:00-11:00", "2025-07-21 11:00-13:00"}, windowsOf(slots))

	stored, err := cal.GetSchedule(ctx, provider)
	require.NoError(t, err)
	assert.Len(t, stored.Template()["monday"], 1)
}

func TestSetScheduleRejectsInvalidInput(t *testing.T) {
	cal, _, _ := newTestCalendar()
	ctx := context.Background()

	_, _, err := cal.SetSchedule(ctx, uuid.New(), WeekTemplate{"funday": nil}, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidArgument))

	_, _, err = cal.SetSchedule(ctx, uuid.New(), WeekTemplate{
		"monday": {{Start: MustClock("13:00"), End: MustClock("09:00"), IsAvailable: true}},
	}, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidArgument))

	_, _, err = cal.SetSchedule(ctx, uuid.New(), WeekTemplate{}, "Mars/Olympus")
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidArgument))
}

func TestWeekTemplateRejectsOverlappingWindows(t *testing.T) {
	tests := []struct {
		name    string
		windows []DayWindow
		wantErr bool
	}{
		{"overlap", []DayWindow{
			{Start: MustClock("09:00"), End: MustClock("13:00"), IsAvailable: true},
			{Start: MustClock("11:00"), End: MustClock("15:00"), IsAvailable: true},
		}, true},
		{"nested out of order", []DayWindow{
			{Start: MustClock("10:00"), End: MustClock("11:00"), IsAvailable: true},
			{Start: MustClock("08:00"), End: MustClock("12:00"), IsAvailable: true},
		}, true},
		{"back to back", []DayWindow{
			{Start: MustClock("09:00"), End: MustClock("11:00"), IsAvailable: true},
			{Start: MustClock("11:00"), End: MustClock("13:00"), IsAvailable: true},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WeekTemplate{"wednesday": tt.windows}.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	cal, _, _ := newTestCalendar()
	_, _, err := cal.SetSchedule(context.Background(), uuid.New(), WeekTemplate{"wednesday": tests[0].windows}, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidArgument))
}

func TestRegenerateKeepsBookedSlots(t *testing.T) {
	cal, resolver, repo := newTestCalendar()
	ctx := context.Background()
	provider := uuid.New()

	_, _, err := cal.SetSchedule(ctx, provider, WeekTemplate{
		"monday": {{Start: MustClock("09:00"), End: MustClock("13:00"), IsAvailable: true}},
	}, "")
	require.NoError(t, err)

	booking, err := resolver.Reserve(ctx, ReserveRequest{
		ProviderID: provider,
		ClientID:   uuid.New(),
		TaskID:     uuid.New(),
		Window:     window("2025-07-21", "09:00", "11:00"),
	})
	require.NoError(t, err)

	// new template shifts the morning by an hour
	_, generated, err := cal.SetSchedule(ctx, provider, WeekTemplate{
		"monday": {{Start: MustClock("10:00"), End: MustClock("14:00"), IsAvailable: true}},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, generated, "10:00-12:00 overlaps the booked slot and is skipped")

	slots, err := repo.ListSlots(ctx, provider, "2025-07-21", "2025-07-21", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-21 09:00-11:00", "2025-07-21 12:00-14:00"}, windowsOf(slots))

	held := slotState(t, repo, booking.SlotID)
	assert.True(t, held.IsBooked)
}

func TestRegenerateHorizonWithoutSchedule(t *testing.T) {
	cal, _, _ := newTestCalendar()
	_, err := cal.RegenerateHorizon(context.Background(), uuid.New(), monday)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestRollForwardCoversEveryProvider(t *testing.T) {
	cal, _, repo := newTestCalendar()
	ctx := context.Background()
	template := WeekTemplate{"tuesday": {{Start: MustClock("08:00"), End: MustClock("10:00"), IsAvailable: true}}}

	first, second := uuid.New(), uuid.New()
	_, _, err := cal.SetSchedule(ctx, first, template, "")
	require.NoError(t, err)
	_, _, err = cal.SetSchedule(ctx, second, template, "")
	require.NoError(t, err)

	cal.now = func() time.Time { return monday.AddDate(0, 0, 7) }
	done, err := cal.RollForward(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, done)

	slots, err := repo.ListSlots(ctx, first, "2025-07-28", "2025-08-03", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-29 08:00-10:00"}, windowsOf(slots))
}

func TestListSlotsRejectsReversedRange(t *testing.T) {
	cal, _, _ := newTestCalendar()
	_, err := cal.ListSlots(context.Background(), uuid.New(), "2025-07-22", "2025-07-21", false)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidArgument))
}
