package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/notifications/websocket"
)

// RealtimeSender pushes a message to a user's live connections
type RealtimeSender interface {
	SendToUser(userID string, message websocket.Message) error
}

// Service is the Dispatcher used in production: it writes the in-app row,
// forwards the event to realtime subscribers and sends a mobile push.
type Service struct {
	store       Store
	realtime    RealtimeSender
	pusher      Pusher
	preferences PreferenceStore
	logger      *zap.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithPreferences lets users silence realtime and push delivery
func WithPreferences(store PreferenceStore) ServiceOption {
	return func(s *Service) {
		s.preferences = store
	}
}

// NewService creates a notification service. realtime and pusher may be nil.
func NewService(store Store, realtime RealtimeSender, pusher Pusher, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		realtime: realtime,
		pusher:   pusher,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch delivers event through every configured channel. The in-app row is
// keyed by the event id, so re-dispatching a failed event does not duplicate it.
func (s *Service) Dispatch(ctx context.Context, event Event) error {
	title, body := render(event)

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	row := &Notification{
		ID:        event.ID,
		UserID:    event.UserID,
		Kind:      string(event.Kind),
		TaskID:    event.TaskID,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: event.OccurredAt,
	}

	statuses := make([]ChannelStatus, 0, 3)
	if err := s.store.Create(ctx, row); err != nil {
		return fmt.Errorf("in-app delivery of %s: %w", event.Kind, err)
	}
	statuses = append(statuses, ChannelStatus{Channel: ChannelInApp, Status: StatusDelivered})

	prefs := s.preferencesFor(ctx, event.UserID)
	muted := prefs.Mutes(event.Kind)

	switch {
	case s.realtime == nil:
	case muted || !prefs.Realtime:
		statuses = append(statuses, ChannelStatus{Channel: ChannelRealtime, Status: StatusSkipped})
	default:
		msg := websocket.Message{
			Type:      websocket.MessageTypeEvent,
			Kind:      string(event.Kind),
			Data:      event.Payload,
			Timestamp: event.OccurredAt,
		}
		if event.TaskID != nil {
			msg.TaskID = event.TaskID.String()
		}
		// Realtime is best effort: clients re-sync from the in-app list on reconnect.
		if err := s.realtime.SendToUser(event.UserID.String(), msg); err != nil {
			statuses = append(statuses, ChannelStatus{Channel: ChannelRealtime, Status: StatusFailed, Error: err.Error()})
		} else {
			statuses = append(statuses, ChannelStatus{Channel: ChannelRealtime, Status: StatusDelivered})
		}
	}

	var pushErr error
	switch {
	case s.pusher == nil:
	case muted || !prefs.Push:
		statuses = append(statuses, ChannelStatus{Channel: ChannelPush, Status: StatusSkipped})
	default:
		if pushErr = s.pusher.Push(ctx, event, title, body); pushErr != nil {
			statuses = append(statuses, ChannelStatus{Channel: ChannelPush, Status: StatusFailed, Error: pushErr.Error()})
		} else {
			statuses = append(statuses, ChannelStatus{Channel: ChannelPush, Status: StatusDelivered})
		}
	}

	s.logger.Debug("Notification dispatched",
		zap.String("event_id", event.ID.String()),
		zap.String("kind", string(event.Kind)),
		zap.String("user_id", event.UserID.String()),
		zap.Any("channels", statuses))

	if pushErr != nil {
		return fmt.Errorf("push delivery of %s: %w", event.Kind, pushErr)
	}
	return nil
}

// GetPreferences returns the user's preferences, or the defaults when none were saved
func (s *Service) GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	if s.preferences == nil {
		p := DefaultPreferences(userID)
		return &p, nil
	}
	p, err := s.preferences.GetPreferences(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("get notification preferences", err)
	}
	if p == nil {
		defaults := DefaultPreferences(userID)
		return &defaults, nil
	}
	return p, nil
}

// UpdatePreferences replaces the user's preferences
func (s *Service) UpdatePreferences(ctx context.Context, p Preferences) (*Preferences, error) {
	if s.preferences == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "notification preferences are not enabled")
	}
	if err := p.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid notification preferences", err)
	}
	if p.MutedKinds == nil {
		p.MutedKinds = datatypes.JSONSlice[Kind]{}
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.preferences.SavePreferences(ctx, &p); err != nil {
		return nil, apperrors.Persistence("save notification preferences", err)
	}
	return &p, nil
}

// preferencesFor falls back to the defaults when preferences cannot be read,
// so a preference outage never blocks delivery
func (s *Service) preferencesFor(ctx context.Context, userID uuid.UUID) Preferences {
	p, err := s.GetPreferences(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load notification preferences, using defaults",
			zap.String("user_id", userID.String()), zap.Error(err))
		return DefaultPreferences(userID)
	}
	return *p
}

// ListForUser returns a page of in-app notifications, newest first
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListForUser(ctx, userID, limit, offset)
}

// MarkRead marks one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.store.MarkRead(ctx, id, userID)
}
