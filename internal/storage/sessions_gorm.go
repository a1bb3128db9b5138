package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ventureflow/internal/metrics"
	"ventureflow/internal/models"
)

// GormSessionStore keeps sessions in the sessions table so they survive a
// restart and can be shared by several processes on one database.
type GormSessionStore struct {
	db          *gorm.DB
	maxSessions int
}

func NewGormSessionStore(db *gorm.DB, maxSessions int) *GormSessionStore {
	return &GormSessionStore{db: db, maxSessions: maxSessions}
}

func (s *GormSessionStore) Create(ctx context.Context, sess *models.Session) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sess).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if s.maxSessions <= 0 {
			return nil
		}

		var count int64
		if err := tx.Model(&models.Session{}).Count(&count).Error; err != nil {
			return fmt.Errorf("count sessions: %w", err)
		}
		excess := int(count) - s.maxSessions
		if excess <= 0 {
			return nil
		}

		var ids []string
		if err := tx.Model(&models.Session{}).
			Where("id <> ?", sess.ID).
			Order("last_touched_at asc").
			Limit(excess).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("select sessions to evict: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("evict sessions: %w", err)
		}
		metrics.SessionOperations.WithLabelValues("evicted").Add(float64(len(ids)))
		return nil
	})
}

func (s *GormSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	var sessions []models.Session
	if err := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// Touch is a single conditional UPDATE; a deleted row matches nothing.
func (s *GormSessionStore) Touch(ctx context.Context, id string, touchedAt, expiresAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_touched_at": touchedAt,
			"expires_at":      expiresAt,
		}).Error
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *GormSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *GormSessionStore) ListByUser(ctx context.Context, userID uint) ([]models.Session, error) {
	var sessions []models.Session
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_touched_at desc").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *GormSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *GormSessionStore) Close() error { return nil }
