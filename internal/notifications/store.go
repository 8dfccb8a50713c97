package notifications

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
)

// Store persists in-app notification rows
type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error)
	// MarkRead only touches a row owned by userID; any other row reads as not found
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a gorm-backed store and migrates its table
func NewGormStore(db *gorm.DB) (Store, error) {
	if err := db.AutoMigrate(&Notification{}); err != nil {
		return nil, fmt.Errorf("failed to migrate notifications: %w", err)
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Create(ctx context.Context, n *Notification) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(n).Error
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *gormStore) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error) {
	var rows []Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return rows, nil
}

func (s *gormStore) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification as read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("notification", id.String())
	}
	return nil
}

// MemoryStore keeps notifications in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	rows []Notification
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.ID == n.ID {
			return nil
		}
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.rows = append(s.rows, *n)
	return nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, n := range s.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Notification{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].UserID == userID {
			now := time.Now()
			s.rows[i].ReadAt = &now
			return nil
		}
	}
	return apperrors.NotFound("notification", id.String())
}
