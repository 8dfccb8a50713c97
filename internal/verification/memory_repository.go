package verification

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type stepKey struct {
	userID uuid.UUID
	stepID StepID
}

// MemoryRepository is an in-process Repository used for local runs and tests
type MemoryRepository struct {
	mu       sync.RWMutex
	steps    map[stepKey]Step
	profiles map[uuid.UUID]TrustProfile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		steps:    make(map[stepKey]Step),
		profiles: make(map[uuid.UUID]TrustProfile),
	}
}

// Snapshot captures the current state and returns a function restoring it
func (r *MemoryRepository) Snapshot() func() {
	r.mu.RLock()
	steps := make(map[stepKey]Step, len(r.steps))
	for k, v := range r.steps {
		steps[k] = v
	}
	profiles := make(map[uuid.UUID]TrustProfile, len(r.profiles))
	for k, v := range r.profiles {
		profiles[k] = v
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		r.steps = steps
		r.profiles = profiles
		r.mu.Unlock()
	}
}

func (r *MemoryRepository) ListSteps(ctx context.Context, userID uuid.UUID) ([]Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Step
	for k, s := range r.steps {
		if k.userID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepository) InsertSteps(ctx context.Context, steps []Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range steps {
		key := stepKey{s.UserID, s.ID}
		if _, exists := r.steps[key]; !exists {
			r.steps[key] = s
		}
	}
	return nil
}

func (r *MemoryRepository) UpdateStep(ctx context.Context, step *Step, expected StepStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := stepKey{step.UserID, step.ID}
	current, ok := r.steps[key]
	if !ok || current.Status != expected {
		return false, nil
	}
	r.steps[key] = *step
	return true, nil
}

func (r *MemoryRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*TrustProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *MemoryRepository) SaveProfile(ctx context.Context, profile *TrustProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = *profile
	return nil
}
