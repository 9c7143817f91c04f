package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant-ops/internal/auth"
	locations "restaurant-ops/internal/locations/domain"
)

type fakeRestaurants struct {
	byID map[string]*locations.Restaurant
}

func (f *fakeRestaurants) Get(_ context.Context, id string) (*locations.Restaurant, error) {
	return f.byID[id], nil
}

func (f *fakeRestaurants) ListByTenant(_ context.Context, tenantID string) ([]locations.Restaurant, error) {
	var out []locations.Restaurant
	for _, r := range f.byID {
		if r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRestaurants) Save(_ context.Context, r *locations.Restaurant) error {
	f.byID[r.ID] = r
	return nil
}

type fakeSessions struct {
	rows        []*locations.LocationSession
	deactivated []string
}

func (f *fakeSessions) Get(_ context.Context, id string) (*locations.LocationSession, error) {
	for _, s := range f.rows {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessions) Insert(_ context.Context, s *locations.LocationSession) error {
	f.rows = append(f.rows, s)
	return nil
}

func (f *fakeSessions) DeactivateForDevice(_ context.Context, fingerprint string, _ time.Time) error {
	f.deactivated = append(f.deactivated, fingerprint)
	for _, s := range f.rows {
		if s.DeviceFingerprint == fingerprint {
			s.Active = false
		}
	}
	return nil
}

func (f *fakeSessions) TouchStaffLogin(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

func (f *fakeSessions) CountActiveByTenant(_ context.Context, _ string) (int, error) {
	count := 0
	for _, s := range f.rows {
		if s.Active {
			count++
		}
	}
	return count, nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestBindDeactivatesPriorSession(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	restaurants := &fakeRestaurants{byID: map[string]*locations.Restaurant{
		"rest-1": {ID: "rest-1", TenantID: "tenant-a", Name: "Main St", Timezone: "UTC"},
	}}
	sessions := &fakeSessions{}
	service, err := NewBindingService(restaurants, sessions, nil, WithClock(fixedClock{at: now}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx := auth.WithIdentity(context.Background(), "tenant-a", auth.RoleManager, "mgr-1")

	first, err := service.Bind(ctx, "rest-1", "fp-1")
	if err != nil {
		t.Fatalf("first bind: %v", err)
	}
	second, err := service.Bind(ctx, "rest-1", "fp-1")
	if err != nil {
		t.Fatalf("second bind: %v", err)
	}

	if first.ID == second.ID {
		t.Fatal("rebinding must create a new session row")
	}
	got, _ := sessions.Get(ctx, first.ID)
	if got.Active {
		t.Fatal("prior session must be deactivated on rebind")
	}
	if !second.Active {
		t.Fatal("new session must be active")
	}
	if want := now.Add(locations.SessionTTL); !second.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", second.ExpiresAt, want)
	}
	if len(second.Token) != 64 {
		t.Fatalf("token must be 32 random bytes hex encoded, got len %d", len(second.Token))
	}
}

func TestBindValidation(t *testing.T) {
	restaurants := &fakeRestaurants{byID: map[string]*locations.Restaurant{}}
	service, err := NewBindingService(restaurants, &fakeSessions{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := service.Bind(context.Background(), "", "fp-1"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := service.Bind(context.Background(), "rest-x", "fp-1"); !errors.Is(err, ErrRestaurantNotFound) {
		t.Fatalf("expected ErrRestaurantNotFound, got %v", err)
	}
}

func TestBindTenantMismatch(t *testing.T) {
	restaurants := &fakeRestaurants{byID: map[string]*locations.Restaurant{
		"rest-1": {ID: "rest-1", TenantID: "tenant-a", Name: "Main St", Timezone: "UTC"},
	}}
	service, err := NewBindingService(restaurants, &fakeSessions{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := auth.WithIdentity(context.Background(), "tenant-b", auth.RoleManager, "mgr-1")
	if _, err := service.Bind(ctx, "rest-1", "fp-1"); !errors.Is(err, auth.ErrTenantMismatch) {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}
}
