package tasks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used for local runs and tests
type MemoryRepository struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]Task
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tasks: make(map[uuid.UUID]Task)}
}

// Snapshot captures the current state and returns a function restoring it
func (r *MemoryRepository) Snapshot() func() {
	r.mu.RLock()
	saved := make(map[uuid.UUID]Task, len(r.tasks))
	for k, v := range r.tasks {
		saved[k] = v
	}
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.tasks = saved
		r.mu.Unlock()
	}
}

func (r *MemoryRepository) Create(ctx context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = *task
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) ([]Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Task
	for _, t := range r.tasks {
		if filter.ClientID != nil && t.ClientID != *filter.ClientID {
			continue
		}
		if filter.ProviderID != nil && !t.IsProvider(*filter.ProviderID) &&
			!(t.RequestedProviderID != nil && *t.RequestedProviderID == *filter.ProviderID) {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, task *Task, expected Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tasks[task.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	r.tasks[task.ID] = *task
	return true, nil
}
