// Package database carries transactions through context so that repositories of
// different domains can take part in one unit of work.
package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
)

// TxManager runs fn inside a transaction. Nested calls join the outer one.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// SQLTxManager implements TxManager over a sqlx database handle
type SQLTxManager struct {
	db *sqlx.DB
}

// NewTxManager creates a transaction manager for db
func NewTxManager(db *sqlx.DB) *SQLTxManager {
	return &SQLTxManager{db: db}
}

func (m *SQLTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Persistence("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Persistence("commit transaction", err)
	}
	return nil
}

// Conn returns the transaction bound to ctx, falling back to db.
func Conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// Snapshotter is an in-memory store that can roll itself back.
type Snapshotter interface {
	Snapshot() (restore func())
}

type memTxKey struct{}

// MemoryTxManager serialises units of work over in-memory stores and restores
// every registered store when fn fails.
type MemoryTxManager struct {
	mu           sync.Mutex
	participants []Snapshotter
}

// NewMemoryTxManager creates a memory transaction manager over the given stores
func NewMemoryTxManager(participants ...Snapshotter) *MemoryTxManager {
	return &MemoryTxManager{participants: participants}
}

// Register adds a store to every future transaction
func (m *MemoryTxManager) Register(p Snapshotter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = append(m.participants, p)
}

func (m *MemoryTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(memTxKey{}).(*MemoryTxManager); ok && owner == m {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restores := make([]func(), 0, len(m.participants))
	for _, p := range m.participants {
		restores = append(restores, p.Snapshot())
	}

	if err := fn(context.WithValue(ctx, memTxKey{}, m)); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}
