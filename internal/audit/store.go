package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"ventureflow/internal/models"
)

// GormStore appends events to the audit_logs table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, event *Event) error {
	details := ""
	if len(event.Fields) > 0 {
		data, err := json.Marshal(event.Fields)
		if err != nil {
			return fmt.Errorf("marshal audit fields: %w", err)
		}
		details = string(data)
	}

	row := &models.AuditLog{
		EventID:   event.ID,
		Category:  string(event.Category),
		Actor:     event.Actor,
		Details:   details,
		IPAddress: event.IPAddress,
		UserAgent: truncate(event.UserAgent, 500),
		RequestID: event.RequestID,
		CreatedAt: event.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// MemoryStore keeps the most recent events in memory. When full, the oldest
// tenth is dropped.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
}

func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{events: make([]Event, 0, maxLen), maxLen: maxLen}
}

func (s *MemoryStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxLen {
		drop := s.maxLen / 10
		if drop == 0 {
			drop = 1
		}
		s.events = append(s.events[:0], s.events[drop:]...)
	}
	s.events = append(s.events, *event)
	return nil
}

// Events returns a copy of the stored events, oldest first, optionally
// filtered to one category.
func (s *MemoryStore) Events(category Category) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if category == "" || e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
