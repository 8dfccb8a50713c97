package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
)

type counterStore struct {
	mu    sync.Mutex
	value int
}

func (s *counterStore) Snapshot() func() {
	s.mu.Lock()
	saved := s.value
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.value = saved
		s.mu.Unlock()
	}
}

func (s *counterStore) add(n int) {
	s.mu.Lock()
	s.value += n
	s.mu.Unlock()
}

func TestMemoryTxManagerRollsBackOnError(t *testing.T) {
	store := &counterStore{}
	txm := NewMemoryTxManager(store)

	err := txm.WithinTx(context.Background(), func(ctx context.Context) error {
		store.add(5)
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, store.value)

	err = txm.WithinTx(context.Background(), func(ctx context.Context) error {
		store.add(3)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, store.value)
}

func TestMemoryTxManagerNestedJoinsOuter(t *testing.T) {
	store := &counterStore{}
	txm := NewMemoryTxManager()
	txm.Register(store)

	err := txm.WithinTx(context.Background(), func(ctx context.Context) error {
		store.add(1)
		if err := txm.WithinTx(ctx, func(ctx context.Context) error {
			store.add(1)
			return nil
		}); err != nil {
			return err
		}
		return errors.New("outer failed")
	})
	require.Error(t, err)
	assert.Equal(t, 0, store.value)
}

func TestSQLTxManagerReportsPersistenceFailure(t *testing.T) {
	db, err := sqlx.Open("postgres", "postgres://nobody@localhost:1/none?sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	called := false
	err = NewTxManager(db).WithinTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, apperrors.CodePersistenceFailure, apperrors.CodeOf(err))
}
