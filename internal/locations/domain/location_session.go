package locations

import (
	"context"
	"errors"
	"time"
)

// SessionTTL is the fixed lifetime of a device binding.
const SessionTTL = 8 * time.Hour

// LocationSession binds one physical tablet to one restaurant for a
// fixed window. A session is never resurrected: rebinding a device
// deactivates the prior session and creates a new row.
type LocationSession struct {
	ID                string
	TenantID          string
	RestaurantID      string
	DeviceFingerprint string
	BoundBy           string
	Token             string
	Active            bool
	ExpiresAt         time.Time
	LastStaffLoginAt  time.Time
	LastStaffLoginBy  string
	CreatedAt         time.Time
}

// Validate checks session invariants.
func (s LocationSession) Validate() error {
	if s.ID == "" {
		return errors.New("location session: empty id")
	}
	if s.TenantID == "" {
		return errors.New("location session: empty tenant id")
	}
	if s.RestaurantID == "" {
		return errors.New("location session: empty restaurant id")
	}
	if s.DeviceFingerprint == "" {
		return errors.New("location session: empty device fingerprint")
	}
	if s.ExpiresAt.IsZero() {
		return errors.New("location session: zero expiry")
	}
	return nil
}

// ValidFor reports whether the session accepts logins from the given
// device at the given instant. All three conditions collapse into one
// answer so callers cannot leak which one failed.
func (s LocationSession) ValidFor(fingerprint string, now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.DeviceFingerprint != fingerprint {
		return false
	}
	return s.ExpiresAt.After(now)
}

// LocationSessionRepository manages location session persistence.
type LocationSessionRepository interface {
	Get(ctx context.Context, id string) (*LocationSession, error)
	Insert(ctx context.Context, session *LocationSession) error
	DeactivateForDevice(ctx context.Context, deviceFingerprint string, now time.Time) error
	TouchStaffLogin(ctx context.Context, id, userID string, now time.Time) error
	CountActiveByTenant(ctx context.Context, tenantID string) (int, error)
}
