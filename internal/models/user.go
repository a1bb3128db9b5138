package models

import (
	"time"
)

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password;type:varchar(255);not null"`
	Name         string    `json:"name" gorm:"type:varchar(255)"`
	Role         string    `json:"role" gorm:"type:varchar(50);default:'User'"`
	ProfileImage *string   `json:"profileImage" gorm:"type:varchar(1024)"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is the server-side record behind a session cookie. ID is the
// random session identifier; the cookie carries it inside a signed token.
type Session struct {
	ID            string    `json:"id" gorm:"type:varchar(128);primaryKey"`
	UserID        uint      `json:"userId" gorm:"not null;index"`
	ExpiresAt     time.Time `json:"expiresAt" gorm:"not null;index"`
	CreatedAt     time.Time `json:"createdAt"`
	LastTouchedAt time.Time `json:"lastTouchedAt" gorm:"index"`
}

// Expired reports whether the session is past its absolute expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type AuditLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	EventID   string    `json:"eventId" gorm:"type:varchar(64);uniqueIndex"`
	Category  string    `json:"category" gorm:"type:varchar(50);not null;index"`
	Actor     string    `json:"actor" gorm:"type:varchar(255);not null;index"`
	Details   string    `json:"details" gorm:"type:text"` // JSON encoded context
	IPAddress string    `json:"ipAddress" gorm:"type:varchar(45)"`
	UserAgent string    `json:"userAgent" gorm:"type:varchar(500)"`
	RequestID string    `json:"requestId" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}
