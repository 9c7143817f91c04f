package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"restaurant-ops/internal/audit"
	"restaurant-ops/internal/auth"
	locations "restaurant-ops/internal/locations/domain"
	"restaurant-ops/internal/observability/metrics"
)

var (
	// ErrInvalidRequest indicates missing or malformed binding input.
	ErrInvalidRequest = errors.New("locations: invalid bind request")
	// ErrRestaurantNotFound indicates the restaurant does not exist.
	ErrRestaurantNotFound = errors.New("locations: restaurant not found")
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// BindingService binds tablet devices to restaurants.
type BindingService struct {
	restaurants locations.RestaurantRepository
	sessions    locations.LocationSessionRepository
	auditLog    audit.Logger
	clock       Clock
}

// BindingOption customizes the binding service.
type BindingOption func(*BindingService)

// WithClock assigns a clock.
func WithClock(clock Clock) BindingOption {
	return func(s *BindingService) {
		s.clock = clock
	}
}

// NewBindingService constructs a binding service.
func NewBindingService(restaurants locations.RestaurantRepository, sessions locations.LocationSessionRepository, auditLog audit.Logger, opts ...BindingOption) (*BindingService, error) {
	if restaurants == nil {
		return nil, errors.New("locations: nil restaurant repo")
	}
	if sessions == nil {
		return nil, errors.New("locations: nil session repo")
	}
	service := &BindingService{
		restaurants: restaurants,
		sessions:    sessions,
		auditLog:    auditLog,
		clock:       systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Bind creates a fresh location session for (restaurant, device),
// deactivating any prior active session for the same device. The two
// writes are independent sequential calls; a failure after the
// deactivation stands and the manager simply rebinds.
func (s *BindingService) Bind(ctx context.Context, restaurantID, deviceFingerprint string) (*locations.LocationSession, error) {
	if restaurantID == "" || deviceFingerprint == "" {
		return nil, ErrInvalidRequest
	}

	restaurant, err := s.restaurants.Get(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, ErrRestaurantNotFound
	}
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID != "" && restaurant.TenantID != tenantID {
		return nil, auth.ErrTenantMismatch
	}

	now := s.clock.Now().UTC()
	if err := s.sessions.DeactivateForDevice(ctx, deviceFingerprint, now); err != nil {
		return nil, err
	}

	session := &locations.LocationSession{
		ID:                uuid.NewString(),
		TenantID:          restaurant.TenantID,
		RestaurantID:      restaurant.ID,
		DeviceFingerprint: deviceFingerprint,
		BoundBy:           auth.SubjectFromContext(ctx),
		Token:             newBindingToken(),
		Active:            true,
		ExpiresAt:         now.Add(locations.SessionTTL),
		CreatedAt:         now,
	}
	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, err
	}
	metrics.IncLocationBound()

	if s.auditLog != nil {
		meta, _ := json.Marshal(map[string]string{
			"device_fingerprint": deviceFingerprint,
			"expires_at":         session.ExpiresAt.Format(time.RFC3339),
		})
		_ = s.auditLog.Log(ctx, audit.Entry{
			TenantID:     restaurant.TenantID,
			Actor:        session.BoundBy,
			Role:         string(auth.RoleFromContext(ctx)),
			Action:       "location.bind",
			ResourceType: "location_session",
			ResourceID:   session.ID,
			RestaurantID: restaurant.ID,
			Metadata:     meta,
			CreatedAt:    now,
		})
	}
	return session, nil
}

func newBindingToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
