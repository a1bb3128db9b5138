package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"ventureflow/internal/metrics"
	"ventureflow/internal/models"
)

const sessionKeyPrefix = "session:"

// BadgerSessionStore keeps sessions in an embedded badger database. Every
// entry carries a TTL equal to its remaining lifetime, so badger drops
// expired sessions on its own; the sweep only catches the sub-second tail.
type BadgerSessionStore struct {
	db          *badger.DB
	maxSessions int
	now         func() time.Time
}

// OpenBadgerSessionStore opens (or creates) a store at path. An empty path
// opens an in-memory database.
func OpenBadgerSessionStore(path string, maxSessions int) (*BadgerSessionStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerSessionStore{db: db, maxSessions: maxSessions, now: time.Now}, nil
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

func (s *BadgerSessionStore) entry(sess *models.Session) (*badger.Entry, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return badger.NewEntry(sessionKey(sess.ID), data).WithTTL(ttl), nil
}

func (s *BadgerSessionStore) Create(_ context.Context, sess *models.Session) error {
	e, err := s.entry(sess)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if s.maxSessions > 0 {
			existing, err := scanSessions(txn)
			if err != nil {
				return err
			}
			if excess := len(existing) + 1 - s.maxSessions; excess > 0 {
				sortByLastTouch(existing)
				for _, old := range existing[len(existing)-excess:] {
					if err := txn.Delete(sessionKey(old.ID)); err != nil {
						return fmt.Errorf("evict session: %w", err)
					}
				}
				metrics.SessionOperations.WithLabelValues("evicted").Add(float64(excess))
			}
		}
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		return nil
	})
}

func (s *BadgerSessionStore) Get(_ context.Context, id string) (*models.Session, error) {
	var sess *models.Session
	err := s.db.View(func(txn *badger.Txn) error {
		got, err := readSession(txn, id)
		sess = got
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Touch reads and rewrites inside one transaction. A concurrent Delete makes
// the commit fail with a conflict instead of writing the record back.
func (s *BadgerSessionStore) Touch(_ context.Context, id string, touchedAt, expiresAt time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		sess, err := readSession(txn, id)
		if err != nil || sess == nil {
			return err
		}
		sess.LastTouchedAt = touchedAt
		sess.ExpiresAt = expiresAt

		e, err := s.entry(sess)
		if err != nil {
			return err
		}
		return txn.SetEntry(e)
	})
}

func (s *BadgerSessionStore) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *BadgerSessionStore) ListByUser(_ context.Context, userID uint) ([]models.Session, error) {
	var out []models.Session
	err := s.db.View(func(txn *badger.Txn) error {
		all, err := scanSessions(txn)
		if err != nil {
			return err
		}
		for _, sess := range all {
			if sess.UserID == userID {
				out = append(out, sess)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByLastTouch(out)
	return out, nil
}

func (s *BadgerSessionStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	count := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		all, err := scanSessions(txn)
		if err != nil {
			return err
		}
		for _, sess := range all {
			if !sess.Expired(now) {
				continue
			}
			if err := txn.Delete(sessionKey(sess.ID)); err != nil {
				return fmt.Errorf("delete expired session: %w", err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *BadgerSessionStore) Close() error {
	return s.db.Close()
}

func readSession(txn *badger.Txn, id string) (*models.Session, error) {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess models.Session
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sess)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func scanSessions(txn *badger.Txn) ([]models.Session, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(sessionKeyPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []models.Session
	for it.Rewind(); it.Valid(); it.Next() {
		var sess models.Session
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		}); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		out = append(out, sess)
	}
	return out, nil
}
