package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used for local runs and tests
type MemoryRepository struct {
	mu        sync.RWMutex
	slots     map[uuid.UUID]TimeSlot
	bookings  map[uuid.UUID]Booking
	schedules map[uuid.UUID]WeeklySchedule
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		slots:     make(map[uuid.UUID]TimeSlot),
		bookings:  make(map[uuid.UUID]Booking),
		schedules: make(map[uuid.UUID]WeeklySchedule),
	}
}

// Snapshot captures the current state and returns a function restoring it
func (r *MemoryRepository) Snapshot() func() {
	r.mu.RLock()
	slots := make(map[uuid.UUID]TimeSlot, len(r.slots))
	for k, v := range r.slots {
		slots[k] = v
	}
	bookings := make(map[uuid.UUID]Booking, len(r.bookings))
	for k, v := range r.bookings {
		bookings[k] = v
	}
	schedules := make(map[uuid.UUID]WeeklySchedule, len(r.schedules))
	for k, v := range r.schedules {
		schedules[k] = v
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		r.slots = slots
		r.bookings = bookings
		r.schedules = schedules
		r.mu.Unlock()
	}
}

func (r *MemoryRepository) GetSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slot, ok := r.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (r *MemoryRepository) FindSlot(ctx context.Context, providerID uuid.UUID, window Window) (*TimeSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *TimeSlot
	for _, slot := range r.slots {
		if slot.ProviderID != providerID || slot.Window() != window {
			continue
		}
		s := slot
		if found == nil || (found.IsBooked && !s.IsBooked) {
			found = &s
		}
	}
	return found, nil
}

func (r *MemoryRepository) ListSlots(ctx context.Context, providerID uuid.UUID, from, to Date, onlyFree bool) ([]TimeSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []TimeSlot
	for _, slot := range r.slots {
		if slot.ProviderID != providerID || slot.Date < from || slot.Date > to {
			continue
		}
		if onlyFree && !slot.Free() {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r *MemoryRepository) InsertSlots(ctx context.Context, slots []TimeSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, slot := range slots {
		r.slots[slot.ID] = slot
	}
	return nil
}

func (r *MemoryRepository) DeleteUnbookedSlots(ctx context.Context, providerID uuid.UUID, from, to Date) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	held := make(map[uuid.UUID]bool)
	for _, b := range r.bookings {
		if b.Active() {
			held[b.SlotID] = true
		}
	}
	var n int64
	for id, slot := range r.slots {
		if slot.ProviderID != providerID || slot.Date < from || slot.Date > to {
			continue
		}
		if slot.IsBooked || held[id] {
			continue
		}
		delete(r.slots, id)
		n++
	}
	return n, nil
}

func (r *MemoryRepository) BookSlot(ctx context.Context, slotID, taskID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[slotID]
	if !ok || !slot.Free() {
		return false, nil
	}
	slot.IsBooked = true
	slot.IsAvailable = false
	tid := taskID
	slot.TaskID = &tid
	slot.UpdatedAt = time.Now()
	r.slots[slotID] = slot
	return true, nil
}

func (r *MemoryRepository) FreeSlot(ctx context.Context, slotID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[slotID]
	if !ok {
		return nil
	}
	slot.IsBooked = false
	slot.IsAvailable = true
	slot.TaskID = nil
	slot.UpdatedAt = time.Now()
	r.slots[slotID] = slot
	return nil
}

func (r *MemoryRepository) CreateBooking(ctx context.Context, booking *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[booking.ID] = *booking
	return nil
}

func (r *MemoryRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *MemoryRepository) UpdateBooking(ctx context.Context, booking *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[booking.ID] = *booking
	return nil
}

func (r *MemoryRepository) ListActiveBookings(ctx context.Context, providerID uuid.UUID, date Date) ([]Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.ProviderID == providerID && b.Date == date && b.Active() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (r *MemoryRepository) GetActiveBookingForTask(ctx context.Context, taskID uuid.UUID) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.bookings {
		if b.TaskID == taskID && b.Active() {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetSchedule(ctx context.Context, providerID uuid.UUID) (*WeeklySchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schedules[providerID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemoryRepository) SaveSchedule(ctx context.Context, schedule *WeeklySchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[schedule.ProviderID] = *schedule
	return nil
}

func (r *MemoryRepository) ListScheduledProviders(ctx context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.schedules))
	for id := range r.schedules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
