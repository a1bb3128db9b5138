// Package audit records security-relevant events. Records are append-only:
// stores expose no update or delete.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ventureflow/internal/logging"
	"ventureflow/internal/metrics"
)

type Category string

const (
	CategoryLoginSuccess    Category = "login-success"
	CategoryLoginFailure    Category = "login-failure"
	CategoryLogout          Category = "logout"
	CategoryRegistration    Category = "registration"
	CategorySensitiveAccess Category = "sensitive-access"
)

// Anonymous is the actor of events without an identified user.
const Anonymous = "anonymous"

// Fields is free-form event context, e.g. a resource name or a truncated
// query.
type Fields map[string]string

type Event struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Fields    Fields    `json:"fields,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

type Store interface {
	Save(ctx context.Context, event *Event) error
}

type Logger struct {
	store Store
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewLogger(store Store) *Logger {
	return &Logger{store: store, now: time.Now}
}

// Record writes one event. It never returns an error and never panics:
// a failing store is logged and counted, and the request carries on.
func (l *Logger) Record(ctx context.Context, category Category, actor string, fields Fields) {
	if actor == "" {
		actor = Anonymous
	}

	src := SourceFromContext(ctx)
	event := &Event{
		ID:        uuid.New().String(),
		Category:  category,
		Actor:     actor,
		Timestamp: l.timestamp(),
		Fields:    fields,
		IPAddress: src.IPAddress,
		UserAgent: src.UserAgent,
		RequestID: logging.RequestIDFromContext(ctx),
	}

	logEvent := logging.Ctx(ctx).Info().
		Str("audit", string(category)).
		Str("actor", actor).
		Str("ip", src.IPAddress)
	for k, v := range fields {
		logEvent = logEvent.Str(k, v)
	}
	logEvent.Msg("Audit event")

	metrics.AuditEvents.WithLabelValues(string(category)).Inc()
	l.save(ctx, event)
}

func (l *Logger) save(ctx context.Context, event *Event) {
	if l.store == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.AuditFailures.Inc()
			logging.Ctx(ctx).Error().Interface("panic", r).Msg("Audit store panicked")
		}
	}()

	if err := l.store.Save(ctx, event); err != nil {
		metrics.AuditFailures.Inc()
		logging.Ctx(ctx).Error().Err(err).
			Str("audit", string(event.Category)).
			Msg("Failed to save audit event")
	}
}

// timestamp never goes backwards within the process.
func (l *Logger) timestamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	if now.Before(l.last) {
		now = l.last
	}
	l.last = now
	return now
}

type sourceKey struct{}

// Source is the client address and agent attached to events.
type Source struct {
	IPAddress string
	UserAgent string
}

func ContextWithSource(ctx context.Context, src Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, src)
}

func SourceFromContext(ctx context.Context) Source {
	src, _ := ctx.Value(sourceKey{}).(Source)
	return src
}
