package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRoller is a mock implementation of SlotRoller
type MockRoller struct {
	mock.Mock
}

func (m *MockRoller) RollForward(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockRetrier is a mock implementation of NotificationRetrier
type MockRetrier struct {
	mock.Mock
}

func (m *MockRetrier) RetryPending(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

func (m *MockRetrier) Pending() int {
	return m.Called().Int(0)
}

func TestRegisterValidatesJobs(t *testing.T) {
	m := NewManager(zap.NewNop())
	noop := func(context.Context) error { return nil }

	assert.Error(t, m.Register(Job{Spec: "@every 1m", Run: noop}))
	assert.Error(t, m.Register(Job{Name: "x", Spec: "@every 1m"}))
	assert.Error(t, m.Register(Job{Name: "x", Spec: "not a cron", Run: noop}))
	assert.Error(t, m.Register(Job{Name: "x", Spec: "0 2 * * *", Run: noop}), "five-field specs need seconds")
	require.NoError(t, m.Register(Job{Name: "x", Spec: "0 15 2 * * *", Run: noop}))
}

func TestRunNowRecordsOutcome(t *testing.T) {
	m := NewManager(zap.NewNop())
	var calls atomic.Int32
	failing := errors.New("database unavailable")
	require.NoError(t, m.Register(Job{
		Name: "flaky",
		Spec: "@every 1h",
		Run: func(context.Context) error {
			if calls.Add(1) == 1 {
				return failing
			}
			return nil
		},
	}))

	err := m.RunNow(context.Background(), "flaky")
	assert.ErrorIs(t, err, failing)
	status, err := m.Status("flaky")
	require.NoError(t, err)
	assert.Equal(t, "database unavailable", status.LastError)
	assert.False(t, status.LastRun.IsZero())

	require.NoError(t, m.RunNow(context.Background(), "flaky"))
	status, err = m.Status("flaky")
	require.NoError(t, err)
	assert.Empty(t, status.LastError)

	assert.Error(t, m.RunNow(context.Background(), "missing"))
	_, err = m.Status("missing")
	assert.Error(t, err)
}

func TestJobDoesNotOverlapItself(t *testing.T) {
	m := NewManager(zap.NewNop())
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, m.Register(Job{
		Name: "slow",
		Spec: "@every 1h",
		Run: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))

	done := make(chan error, 1)
	go func() { done <- m.RunNow(context.Background(), "slow") }()
	<-started

	assert.Error(t, m.RunNow(context.Background(), "slow"))
	close(release)
	assert.NoError(t, <-done)
}

func TestStartStop(t *testing.T) {
	m := NewManager(zap.NewNop())
	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	m.Stop()
	m.Stop()
}

func TestMarketplaceJobs(t *testing.T) {
	ctx := context.Background()
	m := NewManager(zap.NewNop())

	roller := new(MockRoller)
	roller.On("RollForward", mock.Anything).Return(12, nil).Once()
	roller.On("RollForward", mock.Anything).Return(0, errors.New("boom")).Once()
	require.NoError(t, m.Register(RollForward(roller, "0 15 2 * * *", zap.NewNop())))

	require.NoError(t, m.RunNow(ctx, SlotRollForwardJob))
	assert.Error(t, m.RunNow(ctx, SlotRollForwardJob))
	roller.AssertExpectations(t)

	retrier := new(MockRetrier)
	retrier.On("Pending").Return(0).Once()
	require.NoError(t, m.Register(RetryNotifications(retrier, "@every 1m", zap.NewNop())))
	require.NoError(t, m.RunNow(ctx, NotificationRetryJob))
	retrier.AssertNotCalled(t, "RetryPending", mock.Anything)

	retrier.On("Pending").Return(2).Once()
	retrier.On("RetryPending", mock.Anything).Return(1).Once()
	retrier.On("Pending").Return(1).Once()
	require.NoError(t, m.RunNow(ctx, NotificationRetryJob))
	retrier.AssertExpectations(t)
}
