// Package session issues, renews and destroys server-side sessions and
// binds them to a signed cookie.
//
// Expiry is rolling with a hard window: every Touch moves the expiry to
// now + MaxAge, and a session not touched for MaxAge is gone.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"ventureflow/internal/config"
	"ventureflow/internal/logging"
	"ventureflow/internal/metrics"
	"ventureflow/internal/models"
	"ventureflow/internal/storage"
)

const idBytes = 32

type Manager struct {
	store      storage.SessionStore
	codec      *TokenCodec
	cookieName string
	maxAge     time.Duration
	secure     bool
	now        func() time.Time
}

type Option func(*Manager)

// WithClock replaces time.Now; tests use it to move time forward.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a manager over store. secure sets the cookie Secure
// flag and should be true whenever the site is served over TLS.
func NewManager(store storage.SessionStore, cfg config.SessionConfig, secure bool, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		codec:      NewTokenCodec(cfg.Secret),
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     secure,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) CookieName() string { return m.cookieName }

// Create allocates a new session bound to userID.
func (m *Manager) Create(ctx context.Context, userID uint) (*models.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	sess := &models.Session{
		ID:            id,
		UserID:        userID,
		CreatedAt:     now,
		LastTouchedAt: now,
		ExpiresAt:     now.Add(m.maxAge),
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionOperations.WithLabelValues("create").Inc()
	logging.Ctx(ctx).Debug().
		Str("session", logging.ShortID(id)).
		Uint("user_id", userID).
		Msg("Session created")
	return sess, nil
}

// Touch resets the expiry window of a live session. Unknown ids are ignored.
func (m *Manager) Touch(ctx context.Context, sessionID string) error {
	now := m.now()
	if err := m.store.Touch(ctx, sessionID, now, now.Add(m.maxAge)); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Destroy removes the record. Destroying an absent session is not an error.
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	metrics.SessionOperations.WithLabelValues("destroy").Inc()
	return nil
}

// Resolve returns the owning user id of a live session. Expired records
// found on the way are deleted.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (uint, bool, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return 0, false, fmt.Errorf("resolve session: %w", err)
	}
	if sess == nil {
		return 0, false, nil
	}
	if sess.Expired(m.now()) {
		if err := m.store.Delete(ctx, sessionID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to delete expired session")
		}
		return 0, false, nil
	}
	return sess.UserID, true, nil
}

// SessionIDFromCookie verifies the cookie value and extracts the session id.
func (m *Manager) SessionIDFromCookie(value string) (string, error) {
	return m.codec.Decode(value)
}

// ListByUser returns the user's live sessions, most recently touched first.
func (m *Manager) ListByUser(ctx context.Context, userID uint) ([]models.Session, error) {
	all, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	now := m.now()
	live := make([]models.Session, 0, len(all))
	for _, sess := range all {
		if !sess.Expired(now) {
			live = append(live, sess)
		}
	}
	return live, nil
}

// Sweep purges expired records.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	metrics.SessionOperations.WithLabelValues("swept").Add(float64(n))
	return n, nil
}

// Cookie returns the session cookie for sessionID with a full MaxAge.
func (m *Manager) Cookie(sessionID string) (*http.Cookie, error) {
	now := m.now()
	token, err := m.codec.Encode(sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("sign session cookie: %w", err)
	}
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.maxAge / time.Second),
		Expires:  now.Add(m.maxAge),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}, nil
}

// ClearCookie instructs the client to discard the session cookie.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func newSessionID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
