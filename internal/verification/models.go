package verification

import (
	"time"

	"github.com/google/uuid"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
)

// StepID identifies a catalog step
type StepID string

const (
	StepPhone                  StepID = "phone"
	StepEmail                  StepID = "email"
	StepIdentityDocument       StepID = "identity_document"
	StepAddressProof           StepID = "address_proof"
	StepBackgroundCheck        StepID = "background_check"
	StepProfessionalReferences StepID = "professional_references"
	StepCommunityValidation    StepID = "community_validation"
)

// Tier ranks a step from 1 (basic contact proof) to 4 (community validation)
type Tier int

// StepStatus is the review state of one step
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusSubmitted StepStatus = "submitted"
	StatusApproved  StepStatus = "approved"
	StatusRejected  StepStatus = "rejected"
)

// VerificationTier is the banded read of a trust score
type VerificationTier string

const (
	TierBasic      VerificationTier = "basic"
	TierGovernment VerificationTier = "government"
	TierEnhanced   VerificationTier = "enhanced"
	TierCommunity  VerificationTier = "community"
)

// Step is one user's progress on a catalog step
type Step struct {
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	ID              StepID     `json:"id" db:"step_id"`
	Title           string     `json:"title" db:"title"`
	Tier            Tier       `json:"tier" db:"tier"`
	Required        bool       `json:"required" db:"required"`
	DocumentType    string     `json:"document_type" db:"document_type"`
	Status          StepStatus `json:"status" db:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Confidence      *float64   `json:"confidence,omitempty" db:"confidence"`
	DocumentKey     *string    `json:"document_key,omitempty" db:"document_key"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Expired reports whether an approved step has lapsed at now
func (s Step) Expired(now time.Time) bool {
	return s.Status == StatusApproved && s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// TrustProfile is the persisted projection of a user's approved steps
type TrustProfile struct {
	UserID           uuid.UUID        `json:"user_id" db:"user_id"`
	TrustScore       int              `json:"trust_score" db:"trust_score"`
	VerificationTier VerificationTier `json:"verification_tier" db:"verification_tier"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// Demotion records an approved step that lapsed and went back to pending
type Demotion struct {
	StepID    StepID         `json:"step_id"`
	ExpiredAt time.Time      `json:"expired_at"`
	Code      apperrors.Code `json:"code"`
}

// Profile is what callers get back from every verification operation
type Profile struct {
	TrustProfile
	Steps   []Step     `json:"steps"`
	Demoted []Demotion `json:"demoted,omitempty"`
}

// Step returns the user's step with the given id
func (p *Profile) Step(id StepID) (Step, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// VerifierResult is a decision from the external document or identity verifier
type VerifierResult struct {
	StepID          StepID     `json:"step_id" binding:"required"`
	Approved        bool       `json:"approved"`
	Confidence      float64    `json:"confidence"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}
