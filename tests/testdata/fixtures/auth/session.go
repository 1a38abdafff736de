package auth

import (
	"errors"
	"time"
)

var ErrSessionExpired = errors.New("session expired")

// Session tracks an authenticated user between requests.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Valid reports whether the session can still be used.
func (s *Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Refresh extends the session lifetime by the given duration.
func (s *Session) Refresh(now time.Time, ttl time.Duration) error {
	if !s.Valid(now) {
		return ErrSessionExpired
	}
	s.ExpiresAt = now.Add(ttl)
	return nil
}
