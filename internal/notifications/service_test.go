package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/notifications/websocket"
)

// MockRealtime is a mock implementation of RealtimeSender
type MockRealtime struct {
	mock.Mock
}

func (m *MockRealtime) SendToUser(userID string, message websocket.Message) error {
	args := m.Called(userID, message)
	return args.Error(0)
}

// MockPusher is a mock implementation of Pusher
type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(ctx context.Context, event Event, title, body string) error {
	args := m.Called(ctx, event, title, body)
	return args.Error(0)
}

// MockDispatcher is a mock implementation of Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestDispatchWritesInAppRowAndFansOut(t *testing.T) {
	store := NewMemoryStore()
	realtime := new(MockRealtime)
	pusher := new(MockPusher)
	service := NewService(store, realtime, pusher, zap.NewNop())

	ctx := context.Background()
	userID := uuid.New()
	taskID := uuid.New()
	event := NewEvent(KindTaskAccepted, userID, &taskID, map[string]any{"provider_id": "p1"})

	realtime.On("SendToUser", userID.String(), mock.MatchedBy(func(msg websocket.Message) bool {
		return msg.Kind == string(KindTaskAccepted) && msg.TaskID == taskID.String()
	})).Return(nil)
	pusher.On("Push", ctx, event, "Task accepted", mock.Anything).Return(nil)

	require.NoError(t, service.Dispatch(ctx, event))

	rows, err := service.ListForUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, string(KindTaskAccepted), rows[0].Kind)
	assert.Equal(t, &taskID, rows[0].TaskID)
	assert.JSONEq(t, `{"provider_id":"p1"}`, string(rows[0].Payload))

	realtime.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestDispatchIsIdempotentPerEvent(t *testing.T) {
	store := NewMemoryStore()
	pusher := new(MockPusher)
	service := NewService(store, nil, pusher, zap.NewNop())

	ctx := context.Background()
	event := NewEvent(KindTaskPosted, uuid.New(), nil, nil)

	pusher.On("Push", ctx, event, mock.Anything, mock.Anything).Return(errors.New("sns throttled")).Once()
	pusher.On("Push", ctx, event, mock.Anything, mock.Anything).Return(nil).Once()

	assert.Error(t, service.Dispatch(ctx, event))
	assert.NoError(t, service.Dispatch(ctx, event))

	rows, err := service.ListForUser(ctx, event.UserID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRealtimeFailureDoesNotFailDispatch(t *testing.T) {
	realtime := new(MockRealtime)
	service := NewService(NewMemoryStore(), realtime, nil, zap.NewNop())

	realtime.On("SendToUser", mock.Anything, mock.Anything).Return(errors.New("buffer full"))

	assert.NoError(t, service.Dispatch(context.Background(), NewEvent(KindTaskStarted, uuid.New(), nil, nil)))
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	service := NewService(NewMemoryStore(), nil, nil, zap.NewNop())

	owner := uuid.New()
	event := NewEvent(KindTaskPosted, owner, nil, nil)
	require.NoError(t, service.Dispatch(ctx, event))

	err := service.MarkRead(ctx, uuid.New(), owner)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	err = service.MarkRead(ctx, event.ID, uuid.New())
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err), "another user cannot mark the row")

	rows, err := service.ListForUser(ctx, owner, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].ReadAt)

	require.NoError(t, service.MarkRead(ctx, event.ID, owner))
	rows, err = service.ListForUser(ctx, owner, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, rows[0].ReadAt)
}

func TestEmitterQueuesFailuresAndRetries(t *testing.T) {
	dispatcher := new(MockDispatcher)
	emitter := NewEmitter(dispatcher, zap.NewNop(),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }, 2))

	ctx := context.Background()
	ok := NewEvent(KindTaskPosted, uuid.New(), nil, nil)
	flaky := NewEvent(KindTaskAccepted, uuid.New(), nil, nil)

	dispatcher.On("Dispatch", ctx, ok).Return(nil).Once()
	dispatcher.On("Dispatch", ctx, flaky).Return(errors.New("down")).Once()

	emitter.Emit(ctx, ok, flaky)
	assert.Equal(t, 1, emitter.Pending())

	dispatcher.On("Dispatch", ctx, flaky).Return(nil).Once()
	assert.Equal(t, 1, emitter.RetryPending(ctx))
	assert.Equal(t, 0, emitter.Pending())

	dispatcher.AssertExpectations(t)
}

func TestEmitterRequeuesWhenRetriesExhausted(t *testing.T) {
	dispatcher := new(MockDispatcher)
	emitter := NewEmitter(dispatcher, zap.NewNop(),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }, 2),
		WithMaxPending(1))

	ctx := context.Background()
	dispatcher.On("Dispatch", ctx, mock.Anything).Return(errors.New("down"))

	emitter.Emit(ctx, NewEvent(KindTaskPosted, uuid.New(), nil, nil), NewEvent(KindTaskPosted, uuid.New(), nil, nil))
	assert.Equal(t, 1, emitter.Pending())

	assert.Equal(t, 0, emitter.RetryPending(ctx))
	assert.Equal(t, 1, emitter.Pending())
}

func TestPreferencesSilenceRealtimeAndPush(t *testing.T) {
	ctx := context.Background()
	realtime := new(MockRealtime)
	pusher := new(MockPusher)
	prefs := NewMemoryPreferenceStore()
	service := NewService(NewMemoryStore(), realtime, pusher, zap.NewNop(), WithPreferences(prefs))

	userID := uuid.New()
	got, err := service.GetPreferences(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.Push)
	assert.True(t, got.Realtime)

	_, err = service.UpdatePreferences(ctx, Preferences{
		UserID:     userID,
		Push:       false,
		Realtime:   true,
		MutedKinds: []Kind{KindTaskPosted},
	})
	require.NoError(t, err)

	accepted := NewEvent(KindTaskAccepted, userID, nil, nil)
	realtime.On("SendToUser", userID.String(), mock.Anything).Return(nil).Once()
	require.NoError(t, service.Dispatch(ctx, accepted))

	posted := NewEvent(KindTaskPosted, userID, nil, nil)
	require.NoError(t, service.Dispatch(ctx, posted))

	rows, err := service.ListForUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "the in-app row is written even for muted kinds")

	realtime.AssertExpectations(t)
	pusher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdatePreferencesValidates(t *testing.T) {
	ctx := context.Background()
	service := NewService(NewMemoryStore(), nil, nil, zap.NewNop(), WithPreferences(NewMemoryPreferenceStore()))

	_, err := service.UpdatePreferences(ctx, Preferences{UserID: uuid.New(), MutedKinds: []Kind{"TaskExploded"}})
	assert.Error(t, err)

	withoutStore := NewService(NewMemoryStore(), nil, nil, zap.NewNop())
	_, err = withoutStore.UpdatePreferences(ctx, DefaultPreferences(uuid.New()))
	assert.Error(t, err)
}
