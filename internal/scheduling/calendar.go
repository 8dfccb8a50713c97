package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
)

// CalendarConfig controls slot generation
type CalendarConfig struct {
	SlotLength  time.Duration
	HorizonDays int
}

// DefaultCalendarConfig returns 2-hour slots over a 30-day horizon
func DefaultCalendarConfig() CalendarConfig {
	return CalendarConfig{
		SlotLength:  DefaultSlotLength,
		HorizonDays: DefaultHorizonDays,
	}
}

// Calendar owns providers' weekly templates and the slots generated from them
type Calendar struct {
	repo   Repository
	tx     database.TxManager
	config CalendarConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewCalendar creates a calendar service
func NewCalendar(repo Repository, tx database.TxManager, config CalendarConfig, logger *zap.Logger) *Calendar {
	if config.SlotLength <= 0 {
		config.SlotLength = DefaultSlotLength
	}
	if config.HorizonDays <= 0 {
		config.HorizonDays = DefaultHorizonDays
	}
	return &Calendar{
		repo:   repo,
		tx:     tx,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetSchedule stores the provider's weekly template and regenerates the horizon from today
func (c *Calendar) SetSchedule(ctx context.Context, providerID uuid.UUID, template WeekTemplate, timezone string) (*WeeklySchedule, int, error) {
	if err := template.Validate(); err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid weekly schedule", err)
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, 0, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid timezone", err)
		}
	}

	schedule := &WeeklySchedule{
		ProviderID: providerID,
		Days:       datatypes.NewJSONType(template),
		Timezone:   timezone,
		UpdatedAt:  c.now().UTC(),
	}

	var generated int
	err := c.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := c.repo.SaveSchedule(ctx, schedule); err != nil {
			return apperrors.Persistence("save schedule", err)
		}
		n, err := c.regenerate(ctx, schedule, c.now().In(schedule.Location()))
		generated = n
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return schedule, generated, nil
}

// RegenerateHorizon rebuilds the provider's unbooked slots for the horizon
// starting at from. Slots held by an active booking are kept and generated
// slots overlapping them are skipped.
func (c *Calendar) RegenerateHorizon(ctx context.Context, providerID uuid.UUID, from time.Time) (int, error) {
	var generated int
	err := c.tx.WithinTx(ctx, func(ctx context.Context) error {
		schedule, err := c.repo.GetSchedule(ctx, providerID)
		if err != nil {
			return apperrors.Persistence("get schedule", err)
		}
		if schedule == nil {
			return apperrors.NotFound("schedule", providerID.String())
		}
		n, err := c.regenerate(ctx, schedule, from.In(schedule.Location()))
		generated = n
		return err
	})
	return generated, err
}

func (c *Calendar) regenerate(ctx context.Context, schedule *WeeklySchedule, from time.Time) (int, error) {
	fromDate := DateOf(from)
	toDate := DateOf(from.AddDate(0, 0, c.config.HorizonDays-1))

	removed, err := c.repo.DeleteUnbookedSlots(ctx, schedule.ProviderID, fromDate, toDate)
	if err != nil {
		return 0, apperrors.Persistence("delete unbooked slots", err)
	}
	kept, err := c.repo.ListSlots(ctx, schedule.ProviderID, fromDate, toDate, false)
	if err != nil {
		return 0, apperrors.Persistence("list kept slots", err)
	}

	slots := GenerateSlots(schedule.ProviderID, schedule.Template(), from, c.config.HorizonDays, c.config.SlotLength)
	slots = withoutOverlaps(slots, kept)
	if err := c.repo.InsertSlots(ctx, slots); err != nil {
		return 0, apperrors.Persistence("insert slots", err)
	}

	c.logger.Info("Slot horizon regenerated",
		zap.String("provider_id", schedule.ProviderID.String()),
		zap.String("from", fromDate.String()),
		zap.String("to", toDate.String()),
		zap.Int64("removed", removed),
		zap.Int("kept", len(kept)),
		zap.Int("generated", len(slots)))
	return len(slots), nil
}

// RollForward regenerates every scheduled provider's horizon from now.
// Failures are logged per provider and do not stop the run.
func (c *Calendar) RollForward(ctx context.Context) (int, error) {
	providers, err := c.repo.ListScheduledProviders(ctx)
	if err != nil {
		return 0, apperrors.Persistence("list scheduled providers", err)
	}
	done := 0
	for _, providerID := range providers {
		if _, err := c.RegenerateHorizon(ctx, providerID, c.now()); err != nil {
			c.logger.Error("Failed to roll provider horizon forward",
				zap.String("provider_id", providerID.String()),
				zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}

// GetSchedule returns the provider's weekly template
func (c *Calendar) GetSchedule(ctx context.Context, providerID uuid.UUID) (*WeeklySchedule, error) {
	schedule, err := c.repo.GetSchedule(ctx, providerID)
	if err != nil {
		return nil, apperrors.Persistence("get schedule", err)
	}
	if schedule == nil {
		return nil, apperrors.NotFound("schedule", providerID.String())
	}
	return schedule, nil
}

// ListSlots returns the provider's slots between two dates inclusive
func (c *Calendar) ListSlots(ctx context.Context, providerID uuid.UUID, from, to Date, onlyFree bool) ([]TimeSlot, error) {
	if from > to {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "from must not be after to")
	}
	slots, err := c.repo.ListSlots(ctx, providerID, from, to, onlyFree)
	if err != nil {
		return nil, apperrors.Persistence("list slots", err)
	}
	return slots, nil
}
