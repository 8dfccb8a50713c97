package notifications

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Preferences controls which channels besides the in-app list reach a user.
// The in-app row is always written so clients can re-sync.
type Preferences struct {
	UserID     uuid.UUID                 `json:"user_id" gorm:"primaryKey;type:uuid"`
	Push       bool                      `json:"push" gorm:"not null"`
	Realtime   bool                      `json:"realtime" gorm:"not null"`
	MutedKinds datatypes.JSONSlice[Kind] `json:"muted_kinds" gorm:"type:jsonb"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// TableName pins the table name used by gorm
func (Preferences) TableName() string {
	return "notification_preferences"
}

// DefaultPreferences enables every channel
func DefaultPreferences(userID uuid.UUID) Preferences {
	return Preferences{UserID: userID, Push: true, Realtime: true, MutedKinds: datatypes.JSONSlice[Kind]{}}
}

// Mutes reports whether kind is silenced outside the in-app list
func (p Preferences) Mutes(kind Kind) bool {
	return slices.Contains(p.MutedKinds, kind)
}

// Validate rejects unknown event kinds
func (p Preferences) Validate() error {
	for _, k := range p.MutedKinds {
		if !k.Valid() {
			return fmt.Errorf("unknown notification kind %q", k)
		}
	}
	return nil
}

// PreferenceStore persists per-user channel preferences
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error)
	SavePreferences(ctx context.Context, p *Preferences) error
}

type gormPreferenceStore struct {
	db *gorm.DB
}

// NewGormPreferenceStore creates a gorm-backed preference store and migrates its table
func NewGormPreferenceStore(db *gorm.DB) (PreferenceStore, error) {
	if err := db.AutoMigrate(&Preferences{}); err != nil {
		return nil, fmt.Errorf("failed to migrate notification preferences: %w", err)
	}
	return &gormPreferenceStore{db: db}, nil
}

func (s *gormPreferenceStore) GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	var p Preferences
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}
	return &p, nil
}

func (s *gormPreferenceStore) SavePreferences(ctx context.Context, p *Preferences) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to save notification preferences: %w", err)
	}
	return nil
}

// MemoryPreferenceStore keeps preferences in process memory
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[uuid.UUID]Preferences
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: make(map[uuid.UUID]Preferences)}
}

func (s *MemoryPreferenceStore) GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, nil
	}
	p.MutedKinds = slices.Clone(p.MutedKinds)
	return &p, nil
}

func (s *MemoryPreferenceStore) SavePreferences(ctx context.Context, p *Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *p
	saved.MutedKinds = slices.Clone(p.MutedKinds)
	s.prefs[p.UserID] = saved
	return nil
}
