package identity

import (
	"context"
	"errors"
	"time"
)

// SessionTTL is the lifetime of a staff session from issuance.
const SessionTTL = 8 * time.Hour

// Session is a successful-login artifact. LocationSessionID is set for
// PIN logins on bound tablets (location-bound) and empty for
// free-floating sessions.
type Session struct {
	Token             string
	UserID            string
	TenantID          string
	RestaurantID      string
	DeviceFingerprint string
	LocationSessionID string
	ExpiresAt         time.Time
	CreatedAt         time.Time
}

// Validate checks session invariants.
func (s Session) Validate() error {
	if s.Token == "" {
		return errors.New("session: empty token")
	}
	if s.UserID == "" {
		return errors.New("session: empty user id")
	}
	if s.ExpiresAt.IsZero() {
		return errors.New("session: zero expiry")
	}
	return nil
}

// SessionRepository manages user session persistence.
type SessionRepository interface {
	Insert(ctx context.Context, session *Session) error
	// GetActive resolves an unexpired session and its owning user.
	GetActive(ctx context.Context, token string) (*Session, *User, error)
	Delete(ctx context.Context, token string) error
}
