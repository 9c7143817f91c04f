package identity

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// User is an account scoped to one tenant, optionally pinned to one
// restaurant. Staff authenticate with a 4-digit PIN on bound tablets;
// managers and admins authenticate with email and password.
type User struct {
	ID           string
	TenantID     string
	RestaurantID string
	Email        string
	Role         string
	FirstName    string
	LastName     string
	DisplayName  string
	PINHash      string
	PasswordHash string
	Active       bool
	LastLoginAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// ValidPIN reports whether a raw PIN is exactly 4 numeric digits.
func ValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

// Profile is the public projection returned after login.
type Profile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	DisplayName  string `json:"display_name"`
	RestaurantID string `json:"restaurant_id"`
}

// PublicProfile strips credential material from a user.
func (u User) PublicProfile() Profile {
	return Profile{
		ID:           u.ID,
		Email:        u.Email,
		Role:         u.Role,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		DisplayName:  u.DisplayName,
		RestaurantID: u.RestaurantID,
	}
}

// Validate checks user invariants.
func (u User) Validate() error {
	if u.ID == "" {
		return errors.New("user: empty id")
	}
	if u.TenantID == "" {
		return errors.New("user: empty tenant id")
	}
	if u.Email == "" {
		return errors.New("user: empty email")
	}
	if u.Role == "" {
		return errors.New("user: empty role")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*User, error)
	// ListActiveStaffByRestaurant returns active staff-role users in
	// stored order. The PIN login flow scans this list linearly; rosters
	// are small (tens of rows) so no PIN-derived index exists, and must
	// not: the comparison stays hash-based per row.
	ListActiveStaffByRestaurant(ctx context.Context, restaurantID string) ([]User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
