package core

import (
	"time"
)

// DefaultSessionDuration is the default lifetime for a session.
const DefaultSessionDuration = 24 * time.Hour

// LocalUserID is the user every session belongs to; the server has no
// accounts.
const LocalUserID = "local"

// Session is a server-side session. Its UserID selects the output folder.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession creates a session for the local user that expires after duration.
func NewSession(id string, duration time.Duration) Session {
	now := time.Now()
	return Session{
		ID:        id,
		UserID:    LocalUserID,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
	}
}

// IsExpired reports whether the session is past its expiry.
func (s Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// TimeRemaining is negative once expired.
func (s Session) TimeRemaining() time.Duration {
	return time.Until(s.ExpiresAt)
}
