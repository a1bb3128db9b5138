package storage

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"ventureflow/internal/metrics"
	"ventureflow/internal/models"
)

// SessionStore persists session records. Implementations must make Touch and
// Delete atomic per session id so a Touch racing a Delete never brings the
// record back.
type SessionStore interface {
	// Create stores a new record, evicting the least recently touched
	// records when the store is at its ceiling.
	Create(ctx context.Context, s *models.Session) error
	// Get returns (nil, nil) when the id is unknown. Expiry is judged by
	// the caller.
	Get(ctx context.Context, id string) (*models.Session, error)
	// Touch updates the last-touch time and expiry of an existing record.
	// It is a no-op when the record is gone.
	Touch(ctx context.Context, id string, touchedAt, expiresAt time.Time) error
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID uint) ([]models.Session, error)
	// DeleteExpired removes every record whose expiry is not after now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// MemorySessionStore is an in-process store with an LRU ceiling: once
// maxSessions records exist, creating another evicts the least recently
// touched one.
type MemorySessionStore struct {
	mu          sync.Mutex
	entries     map[string]*list.Element
	lru         *list.List // front = most recently touched
	maxSessions int
}

func NewMemorySessionStore(maxSessions int) *MemorySessionStore {
	return &MemorySessionStore{
		entries:     make(map[string]*list.Element),
		lru:         list.New(),
		maxSessions: maxSessions,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[sess.ID]; ok {
		s.lru.Remove(el)
	}
	copied := *sess
	s.entries[sess.ID] = s.lru.PushFront(&copied)

	for s.maxSessions > 0 && s.lru.Len() > s.maxSessions {
		oldest := s.lru.Back()
		s.lru.Remove(oldest)
		delete(s.entries, oldest.Value.(*models.Session).ID)
		metrics.SessionOperations.WithLabelValues("evicted").Inc()
	}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	copied := *el.Value.(*models.Session)
	return &copied, nil
}

func (s *MemorySessionStore) Touch(_ context.Context, id string, touchedAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[id]
	if !ok {
		return nil
	}
	sess := el.Value.(*models.Session)
	sess.LastTouchedAt = touchedAt
	sess.ExpiresAt = expiresAt
	s.lru.MoveToFront(el)
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[id]; ok {
		s.lru.Remove(el)
		delete(s.entries, id)
	}
	return nil
}

func (s *MemorySessionStore) ListByUser(_ context.Context, userID uint) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Session
	for el := s.lru.Front(); el != nil; el = el.Next() {
		if sess := el.Value.(*models.Session); sess.UserID == userID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *MemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for el := s.lru.Front(); el != nil; {
		next := el.Next()
		if sess := el.Value.(*models.Session); sess.Expired(now) {
			s.lru.Remove(el)
			delete(s.entries, sess.ID)
			count++
		}
		el = next
	}
	return count, nil
}

// Len returns the number of stored records, expired or not.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *MemorySessionStore) Close() error { return nil }

// sortByLastTouch orders sessions most recently touched first.
func sortByLastTouch(sessions []models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastTouchedAt.After(sessions[j].LastTouchedAt)
	})
}
