package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
)

// Repository persists verification steps and trust profile projections
type Repository interface {
	// ListSteps returns the user's steps, locking them for the current transaction
	ListSteps(ctx context.Context, userID uuid.UUID) ([]Step, error)
	// InsertSteps adds steps, ignoring ones the user already has
	InsertSteps(ctx context.Context, steps []Step) error
	// UpdateStep writes step if its stored status is still expected
	UpdateStep(ctx context.Context, step *Step, expected StepStatus) (bool, error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*TrustProfile, error)
	SaveProfile(ctx context.Context, profile *TrustProfile) error
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewRepository creates a PostgreSQL verification repository
func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const stepColumns = `user_id, step_id, title, tier, required, document_type, status, rejection_reason, confidence, document_key, submitted_at, reviewed_at, expires_at, updated_at`

func (r *postgresRepository) ListSteps(ctx context.Context, userID uuid.UUID) ([]Step, error) {
	var steps []Step
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &steps,
		`SELECT `+stepColumns+` FROM verification_steps WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verification steps: %w", err)
	}
	return steps, nil
}

func (r *postgresRepository) InsertSteps(ctx context.Context, steps []Step) error {
	if len(steps) == 0 {
		return nil
	}
	query := `
		INSERT INTO verification_steps (` + stepColumns + `)
		VALUES (:user_id, :step_id, :title, :tier, :required, :document_type, :status, :rejection_reason,
			:confidence, :document_key, :submitted_at, :reviewed_at, :expires_at, :updated_at)
		ON CONFLICT (user_id, step_id) DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, steps); err != nil {
		return fmt.Errorf("failed to insert verification steps: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateStep(ctx context.Context, step *Step, expected StepStatus) (bool, error) {
	query, args, err := sqlx.Named(`
		UPDATE verification_steps SET
			status = :status, rejection_reason = :rejection_reason, confidence = :confidence,
			document_key = :document_key, submitted_at = :submitted_at, reviewed_at = :reviewed_at,
			expires_at = :expires_at, updated_at = :updated_at
		WHERE user_id = :user_id AND step_id = :step_id AND status = :expected`,
		struct {
			*Step
			Expected StepStatus `db:"expected"`
		}{step, expected})
	if err != nil {
		return false, fmt.Errorf("failed to bind step update: %w", err)
	}

	conn := database.Conn(ctx, r.db)
	res, err := conn.ExecContext(ctx, conn.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to update verification step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update verification step: %w", err)
	}
	return n == 1, nil
}

func (r *postgresRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*TrustProfile, error) {
	var p TrustProfile
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &p,
		`SELECT user_id, trust_score, verification_tier, updated_at FROM trust_profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trust profile: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) SaveProfile(ctx context.Context, profile *TrustProfile) error {
	query := `
		INSERT INTO trust_profiles (user_id, trust_score, verification_tier, updated_at)
		VALUES (:user_id, :trust_score, :verification_tier, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			trust_score = EXCLUDED.trust_score,
			verification_tier = EXCLUDED.verification_tier,
			updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, profile); err != nil {
		return fmt.Errorf("failed to save trust profile: %w", err)
	}
	return nil
}
