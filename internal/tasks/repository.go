package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
)

// Repository persists tasks. Get returns nil, nil for a missing task.
type Repository interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id uuid.UUID) (*Task, error)
	List(ctx context.Context, filter ListFilter) ([]Task, error)
	// Update writes task if its stored status is still expected
	Update(ctx context.Context, task *Task, expected Status) (bool, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewRepository creates a PostgreSQL task repository
func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const taskColumns = `id, client_id, requested_provider_id, provider_id, title, description, category, status,
	budget_min, budget_max, urgency, address, scheduled_at, created_at, updated_at,
	responded_at, started_at, completed_at, cancelled_at, cancellation_reason`

func (r *postgresRepository) Create(ctx context.Context, task *Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (:id, :client_id, :requested_provider_id, :provider_id, :title, :description, :category, :status,
			:budget_min, :budget_max, :urgency, :address, :scheduled_at, :created_at, :updated_at,
			:responded_at, :started_at, :completed_at, :cancelled_at, :cancellation_reason)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	var task Task
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &task,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []interface{}
	argCount := 1

	if filter.ClientID != nil {
		query += fmt.Sprintf(" AND client_id = $%d", argCount)
		args = append(args, *filter.ClientID)
		argCount++
	}
	if filter.ProviderID != nil {
		query += fmt.Sprintf(" AND (provider_id = $%d OR requested_provider_id = $%d)", argCount, argCount)
		args = append(args, *filter.ProviderID)
		argCount++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filter.Limit, filter.Offset)

	var tasks []Task
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (r *postgresRepository) Update(ctx context.Context, task *Task, expected Status) (bool, error) {
	query, args, err := sqlx.Named(`
		UPDATE tasks SET
			provider_id = :provider_id, status = :status, scheduled_at = :scheduled_at, updated_at = :updated_at,
			responded_at = :responded_at, started_at = :started_at, completed_at = :completed_at,
			cancelled_at = :cancelled_at, cancellation_reason = :cancellation_reason
		WHERE id = :id AND status = :expected`,
		struct {
			*Task
			Expected Status `db:"expected"`
		}{task, expected})
	if err != nil {
		return false, fmt.Errorf("failed to bind task update: %w", err)
	}

	conn := database.Conn(ctx, r.db)
	res, err := conn.ExecContext(ctx, conn.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update task: %w", err)
	}
	return n == 1, nil
}
