package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	SlotRollForwardJob     = "slot-roll-forward"
	NotificationRetryJob   = "notification-retry"
	slotRollForwardTimeout = 30 * time.Minute
	notificationTimeout    = 2 * time.Minute
)

// SlotRoller extends every provider's slot horizon
type SlotRoller interface {
	RollForward(ctx context.Context) (int, error)
}

// NotificationRetrier redelivers queued notification events
type NotificationRetrier interface {
	RetryPending(ctx context.Context) int
	Pending() int
}

// RollForward keeps each provider's generated slots a full horizon ahead
func RollForward(roller SlotRoller, spec string, logger *zap.Logger) Job {
	return Job{
		Name:    SlotRollForwardJob,
		Spec:    spec,
		Timeout: slotRollForwardTimeout,
		Run: func(ctx context.Context) error {
			generated, err := roller.RollForward(ctx)
			if err != nil {
				return err
			}
			logger.Info("Rolled slot horizon forward", zap.Int("generated", generated))
			return nil
		},
	}
}

// RetryNotifications drains the emitter's retry queue
func RetryNotifications(retrier NotificationRetrier, spec string, logger *zap.Logger) Job {
	return Job{
		Name:    NotificationRetryJob,
		Spec:    spec,
		Timeout: notificationTimeout,
		Run: func(ctx context.Context) error {
			if retrier.Pending() == 0 {
				return nil
			}
			delivered := retrier.RetryPending(ctx)
			logger.Info("Retried pending notifications",
				zap.Int("delivered", delivered),
				zap.Int("still_pending", retrier.Pending()))
			return nil
		},
	}
}
