package verification

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/notifications"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
)

// EventEmitter receives notification intents after a change has committed
type EventEmitter interface {
	Emit(ctx context.Context, events ...notifications.Event)
}

// SubmitRequest carries the optional document proving a step
type SubmitRequest struct {
	Document    io.Reader
	ContentType string
}

// Service runs step transitions and keeps the trust profile projection current
type Service struct {
	repo      Repository
	tx        database.TxManager
	documents *DocumentStore
	events    EventEmitter
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, tx database.TxManager, documents *DocumentStore, events EventEmitter, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		documents: documents,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LoadProfile returns the user's steps and trust profile. Missing catalog steps
// are created as pending and lapsed approvals are demoted to pending.
func (s *Service) LoadProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var profile *Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		steps, demoted, err := s.evaluate(ctx, userID, now)
		if err != nil {
			return err
		}
		profile, err = s.project(ctx, userID, steps, demoted, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.emitDemotions(ctx, profile)
	return profile, nil
}

// SubmitStep moves a pending step to submitted, storing the document if one is given
func (s *Service) SubmitStep(ctx context.Context, userID uuid.UUID, stepID StepID, req SubmitRequest) (*Profile, error) {
	var uploaded string
	profile, err := s.transition(ctx, userID, stepID, StatusSubmitted, func(ctx context.Context, step *Step, now time.Time) error {
		if req.Document != nil {
			key, err := s.documents.Put(ctx, userID, stepID, req.ContentType, req.Document)
			if err != nil {
				return apperrors.Persistence("store verification document", err)
			}
			uploaded = key
			step.DocumentKey = &key
		}
		step.SubmittedAt = &now
		step.RejectionReason = nil
		return nil
	})
	if err != nil {
		if uploaded != "" {
			if rmErr := s.documents.Remove(context.WithoutCancel(ctx), uploaded); rmErr != nil {
				s.logger.Warn("Failed to remove orphaned verification document",
					zap.String("key", uploaded),
					zap.Error(rmErr))
			}
		}
		return nil, err
	}

	s.logger.Info("Verification step submitted",
		zap.String("user_id", userID.String()),
		zap.String("step_id", string(stepID)))
	return profile, nil
}

// ApplyResult records the verifier's decision on a submitted step and
// recomputes the trust profile.
func (s *Service) ApplyResult(ctx context.Context, userID uuid.UUID, result VerifierResult) (*Profile, error) {
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "confidence must be between 0 and 1")
	}
	if result.ExpiresAt != nil && !result.ExpiresAt.After(s.now()) {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "expires_at must be in the future")
	}

	to := StatusRejected
	if result.Approved {
		to = StatusApproved
	}
	profile, err := s.transition(ctx, userID, result.StepID, to, func(ctx context.Context, step *Step, now time.Time) error {
		confidence := result.Confidence
		step.Confidence = &confidence
		step.ReviewedAt = &now
		step.ExpiresAt = nil
		step.RejectionReason = nil
		if result.Approved {
			step.ExpiresAt = result.ExpiresAt
		} else if result.RejectionReason != "" {
			reason := result.RejectionReason
			step.RejectionReason = &reason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"step_id":           string(result.StepID),
		"status":            string(to),
		"confidence":        result.Confidence,
		"trust_score":       profile.TrustScore,
		"verification_tier": string(profile.VerificationTier),
	}
	if result.RejectionReason != "" && !result.Approved {
		payload["rejection_reason"] = result.RejectionReason
	}
	s.events.Emit(context.WithoutCancel(ctx), notifications.NewEvent(notifications.KindVerificationStepChanged, userID, nil, payload))

	s.logger.Info("Verification result applied",
		zap.String("user_id", userID.String()),
		zap.String("step_id", string(result.StepID)),
		zap.String("status", string(to)),
		zap.Int("trust_score", profile.TrustScore),
		zap.String("verification_tier", string(profile.VerificationTier)))
	return profile, nil
}

// ResubmitStep returns a rejected step to pending so it can be submitted again
func (s *Service) ResubmitStep(ctx context.Context, userID uuid.UUID, stepID StepID) (*Profile, error) {
	return s.transition(ctx, userID, stepID, StatusPending, func(ctx context.Context, step *Step, now time.Time) error {
		step.RejectionReason = nil
		step.Confidence = nil
		step.DocumentKey = nil
		step.SubmittedAt = nil
		step.ReviewedAt = nil
		return nil
	})
}

type applyFunc func(ctx context.Context, step *Step, now time.Time) error

func (s *Service) transition(ctx context.Context, userID uuid.UUID, stepID StepID, to StepStatus, apply applyFunc) (*Profile, error) {
	if _, ok := Lookup(stepID); !ok {
		return nil, apperrors.NotFound("verification step", string(stepID))
	}

	var profile *Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		steps, demoted, err := s.evaluate(ctx, userID, now)
		if err != nil {
			return err
		}

		idx := indexOf(steps, stepID)
		if idx < 0 {
			return apperrors.NotFound("verification step", string(stepID))
		}
		current := steps[idx]
		if !CanTransition(current.Status, to) {
			return apperrors.InvalidTransition("verification step", string(current.Status), string(to))
		}

		updated := current
		updated.Status = to
		updated.UpdatedAt = now
		if err := apply(ctx, &updated, now); err != nil {
			return err
		}
		if err := s.save(ctx, &updated, current.Status); err != nil {
			return err
		}
		steps[idx] = updated

		profile, err = s.project(ctx, userID, steps, demoted, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.emitDemotions(ctx, profile)
	return profile, nil
}

// evaluate loads the user's steps, seeds missing catalog entries and demotes
// lapsed approvals.
func (s *Service) evaluate(ctx context.Context, userID uuid.UUID, now time.Time) ([]Step, []Demotion, error) {
	steps, err := s.repo.ListSteps(ctx, userID)
	if err != nil {
		return nil, nil, apperrors.Persistence("list verification steps", err)
	}

	var missing []Step
	for _, def := range catalog {
		if indexOf(steps, def.ID) < 0 {
			missing = append(missing, def.NewStep(userID, now))
		}
	}
	if len(missing) > 0 {
		if err := s.repo.InsertSteps(ctx, missing); err != nil {
			return nil, nil, apperrors.Persistence("seed verification steps", err)
		}
		steps = append(steps, missing...)
	}

	var demoted []Demotion
	for i, step := range steps {
		if !step.Expired(now) {
			continue
		}
		expiredAt := *step.ExpiresAt
		step.Status = StatusPending
		step.ExpiresAt = nil
		step.Confidence = nil
		step.ReviewedAt = nil
		step.UpdatedAt = now
		if err := s.save(ctx, &step, StatusApproved); err != nil {
			return nil, nil, err
		}
		steps[i] = step
		demoted = append(demoted, Demotion{
			StepID:    step.ID,
			ExpiredAt: expiredAt,
			Code:      apperrors.CodeStaleVerificationStep,
		})
	}
	return steps, demoted, nil
}

func (s *Service) save(ctx context.Context, step *Step, expected StepStatus) error {
	ok, err := s.repo.UpdateStep(ctx, step, expected)
	if err != nil {
		return apperrors.Persistence("update verification step", err)
	}
	if !ok {
		return apperrors.InvalidTransition("verification step", string(expected), string(step.Status)).
			WithField("step_id", string(step.ID))
	}
	return nil
}

// project recomputes the trust profile from steps and persists it
func (s *Service) project(ctx context.Context, userID uuid.UUID, steps []Step, demoted []Demotion, now time.Time) (*Profile, error) {
	score := Compute(steps)
	tp := TrustProfile{
		UserID:           userID,
		TrustScore:       score.TrustScore,
		VerificationTier: score.Tier,
		UpdatedAt:        now,
	}
	if err := s.repo.SaveProfile(ctx, &tp); err != nil {
		return nil, apperrors.Persistence("save trust profile", err)
	}

	sorted := append([]Step(nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return catalogIndex(sorted[i].ID) < catalogIndex(sorted[j].ID) })
	return &Profile{TrustProfile: tp, Steps: sorted, Demoted: demoted}, nil
}

func (s *Service) emitDemotions(ctx context.Context, profile *Profile) {
	for _, d := range profile.Demoted {
		s.logger.Info("Verification step expired",
			zap.String("user_id", profile.UserID.String()),
			zap.String("step_id", string(d.StepID)),
			zap.Time("expired_at", d.ExpiredAt))
		s.events.Emit(context.WithoutCancel(ctx), notifications.NewEvent(notifications.KindVerificationStepChanged, profile.UserID, nil, map[string]any{
			"step_id":           string(d.StepID),
			"status":            string(StatusPending),
			"reason":            "expired",
			"trust_score":       profile.TrustScore,
			"verification_tier": string(profile.VerificationTier),
		}))
	}
}

func indexOf(steps []Step, id StepID) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}
