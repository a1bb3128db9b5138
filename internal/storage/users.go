// Package storage holds the persistence adapters behind authentication: the
// user record store and the session record stores.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"ventureflow/internal/models"
)

var (
	// ErrDuplicateUsername is returned by Create when the username is taken.
	ErrDuplicateUsername = errors.New("username already exists")
)

// NewUser is the input to UserStore.Create. PasswordHash must already be
// derived; stores never see plaintext.
type NewUser struct {
	Username     string
	PasswordHash string
	Name         string
	Role         string
	ProfileImage *string
}

// UserStore looks users up by exact, case-sensitive match. Lookups return
// (nil, nil) when no user matches.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// Create assigns a new identifier. It is the final arbiter of username
	// uniqueness and fails with ErrDuplicateUsername even when two creates race.
	Create(ctx context.Context, u NewUser) (*models.User, error)
}

// GormUserStore persists users in the users table; the unique index on
// username rejects duplicates.
type GormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

func (s *GormUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	// The column collation is binary on every dialect, so this match is
	// case-sensitive.
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &user, nil
}

func (s *GormUserStore) Create(ctx context.Context, u NewUser) (*models.User, error) {
	user := &models.User{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// MemoryUserStore keeps users in process memory. Identifiers start at 1 and
// are never reused.
type MemoryUserStore struct {
	mu         sync.RWMutex
	byID       map[uint]*models.User
	byUsername map[string]uint
	nextID     uint
	now        func() time.Time
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:       make(map[uint]*models.User),
		byUsername: make(map[string]uint),
		nextID:     1,
		now:        time.Now,
	}
}

func (s *MemoryUserStore) GetByID(_ context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, nil
	}
	copied := *s.byID[id]
	return &copied, nil
}

func (s *MemoryUserStore) Create(_ context.Context, u NewUser) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[u.Username]; exists {
		return nil, ErrDuplicateUsername
	}

	user := &models.User{
		ID:           s.nextID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
		CreatedAt:    s.now(),
	}
	s.nextID++
	s.byID[user.ID] = user
	s.byUsername[user.Username] = user.ID

	copied := *user
	return &copied, nil
}

// Count returns the number of stored users.
func (s *MemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
