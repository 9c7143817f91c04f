package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"restaurant-ops/internal/auth"
	identity "restaurant-ops/internal/identity/domain"
	locations "restaurant-ops/internal/locations/domain"
)

type fakeUsers struct {
	staff     []identity.User
	byEmail   map[string]*identity.User
	listCalls int
	lastLogin map[string]time.Time
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*identity.User, error) {
	for i := range f.staff {
		if f.staff[i].ID == id {
			return &f.staff[i], nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, _, email string) (*identity.User, error) {
	return f.byEmail[email], nil
}

func (f *fakeUsers) ListActiveStaffByRestaurant(_ context.Context, _ string) ([]identity.User, error) {
	f.listCalls++
	return f.staff, nil
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	if f.lastLogin == nil {
		f.lastLogin = map[string]time.Time{}
	}
	f.lastLogin[id] = at
	return nil
}

type fakeUserSessions struct {
	rows []*identity.Session
}

func (f *fakeUserSessions) Insert(_ context.Context, s *identity.Session) error {
	f.rows = append(f.rows, s)
	return nil
}

func (f *fakeUserSessions) GetActive(_ context.Context, token string) (*identity.Session, *identity.User, error) {
	for _, s := range f.rows {
		if s.Token == token {
			return s, &identity.User{ID: s.UserID, TenantID: s.TenantID, Email: "x@y.z", Role: "staff", Active: true}, nil
		}
	}
	return nil, nil, nil
}

func (f *fakeUserSessions) Delete(_ context.Context, token string) error {
	for i, s := range f.rows {
		if s.Token == token {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeLocSessions struct {
	rows        map[string]*locations.LocationSession
	getCalls    int
	touchCalls  int
	lastTouchBy string
}

func (f *fakeLocSessions) Get(_ context.Context, id string) (*locations.LocationSession, error) {
	f.getCalls++
	return f.rows[id], nil
}

func (f *fakeLocSessions) Insert(_ context.Context, s *locations.LocationSession) error {
	f.rows[s.ID] = s
	return nil
}

func (f *fakeLocSessions) DeactivateForDevice(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (f *fakeLocSessions) TouchStaffLogin(_ context.Context, _, userID string, _ time.Time) error {
	f.touchCalls++
	f.lastTouchBy = userID
	return nil
}

func (f *fakeLocSessions) CountActiveByTenant(_ context.Context, _ string) (int, error) {
	return 0, nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func mustHash(t *testing.T, raw string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hash)
}

func testFixture(t *testing.T, now time.Time) (*LoginService, *fakeUsers, *fakeUserSessions, *fakeLocSessions) {
	t.Helper()
	users := &fakeUsers{
		staff: []identity.User{
			{ID: "staff-1", TenantID: "tenant-a", RestaurantID: "rest-1", Email: "a@x", Role: "staff", PINHash: mustHash(t, "1111"), Active: true},
			{ID: "staff-2", TenantID: "tenant-a", RestaurantID: "rest-1", Email: "b@x", Role: "staff", PINHash: mustHash(t, "2222"), Active: true},
		},
		byEmail: map[string]*identity.User{},
	}
	sessions := &fakeUserSessions{}
	locSessions := &fakeLocSessions{rows: map[string]*locations.LocationSession{
		"loc-1": {
			ID:                "loc-1",
			TenantID:          "tenant-a",
			RestaurantID:      "rest-1",
			DeviceFingerprint: "fp-1",
			Token:             "tok",
			Active:            true,
			ExpiresAt:         now.Add(2 * time.Hour),
			CreatedAt:         now.Add(-time.Hour),
		},
	}}
	service, err := NewLoginService(users, sessions, locSessions, nil, nil, WithClock(fixedClock{at: now}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, users, sessions, locSessions
}

func TestLoginWithPINRejectsMalformedPINBeforeStoreAccess(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	service, users, _, locSessions := testFixture(t, now)

	for _, pin := range []string{"", "123", "12345", "12a4", "١٢٣٤"} {
		_, err := service.LoginWithPIN(context.Background(), PINLoginRequest{
			PIN:               pin,
			LocationSessionID: "loc-1",
			DeviceFingerprint: "fp-1",
		})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("pin %q: expected ErrValidation, got %v", pin, err)
		}
	}
	if locSessions.getCalls != 0 || users.listCalls != 0 {
		t.Fatalf("malformed pin must not touch any store, got %d session reads and %d roster reads",
			locSessions.getCalls, users.listCalls)
	}
}

func TestLoginWithPINLocationSessionFailuresAreIndistinguishable(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	service, _, _, locSessions := testFixture(t, now)

	expired := *locSessions.rows["loc-1"]
	expired.ID = "loc-expired"
	expired.ExpiresAt = now.Add(-time.Minute)
	locSessions.rows["loc-expired"] = &expired

	inactive := *locSessions.rows["loc-1"]
	inactive.ID = "loc-inactive"
	inactive.Active = false
	locSessions.rows["loc-inactive"] = &inactive

	cases := []struct {
		name        string
		sessionID   string
		fingerprint string
	}{
		{"unknown session", "loc-missing", "fp-1"},
		{"expired session", "loc-expired", "fp-1"},
		{"inactive session", "loc-inactive", "fp-1"},
		{"fingerprint mismatch", "loc-1", "fp-other"},
	}
	for _, tc := range cases {
		_, err := service.LoginWithPIN(context.Background(), PINLoginRequest{
			PIN:               "1111",
			LocationSessionID: tc.sessionID,
			DeviceFingerprint: tc.fingerprint,
		})
		if !errors.Is(err, ErrInvalidLocationSession) {
			t.Fatalf("%s: expected ErrInvalidLocationSession, got %v", tc.name, err)
		}
	}
}

func TestLoginWithPINMatchesStaffAndIssuesSession(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	service, users, sessions, locSessions := testFixture(t, now)

	result, err := service.LoginWithPIN(context.Background(), PINLoginRequest{
		PIN:               "2222",
		LocationSessionID: "loc-1",
		DeviceFingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if result.User.ID != "staff-2" {
		t.Fatalf("matched user = %s, want staff-2", result.User.ID)
	}
	if len(sessions.rows) != 1 {
		t.Fatalf("expected one session row, got %d", len(sessions.rows))
	}
	session := sessions.rows[0]
	if len(session.Token) != 64 {
		t.Fatalf("token must be 32 random bytes hex encoded, got len %d", len(session.Token))
	}
	if want := now.Add(identity.SessionTTL); !session.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", session.ExpiresAt, want)
	}
	if session.LocationSessionID != "loc-1" || session.RestaurantID != "rest-1" {
		t.Fatalf("session not bound to location: %+v", session)
	}
	if _, ok := users.lastLogin["staff-2"]; !ok {
		t.Fatal("last login must be recorded on the matched user")
	}
	if locSessions.touchCalls != 1 || locSessions.lastTouchBy != "staff-2" {
		t.Fatalf("location session must record the login, got %d calls by %q",
			locSessions.touchCalls, locSessions.lastTouchBy)
	}
}

func TestLoginWithPINWrongPIN(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	service, _, sessions, _ := testFixture(t, now)

	_, err := service.LoginWithPIN(context.Background(), PINLoginRequest{
		PIN:               "9999",
		LocationSessionID: "loc-1",
		DeviceFingerprint: "fp-1",
	})
	if !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}
	if len(sessions.rows) != 0 {
		t.Fatal("failed login must not create a session")
	}
}

func TestLoginWithPasswordIssuesJWT(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	service, users, _, _ := testFixture(t, now)
	service.jwtSecret = []byte("test-secret")
	users.byEmail["mgr@x"] = &identity.User{
		ID:           "mgr-1",
		TenantID:     "tenant-a",
		Email:        "mgr@x",
		Role:         "manager",
		PasswordHash: mustHash(t, "hunter22"),
		Active:       true,
	}

	token, user, expiresAt, err := service.LoginWithPassword(context.Background(), "tenant-a", "mgr@x", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "mgr-1" {
		t.Fatalf("user = %s, want mgr-1", user.ID)
	}
	if expiresAt.Before(now.Add(time.Hour)) {
		t.Fatalf("expiry too soon: %v", expiresAt)
	}
	claims, err := auth.ParseJWT(token, []byte("test-secret"))
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.TenantID != "tenant-a" || claims.Role != string(auth.RoleManager) {
		t.Fatalf("claims = %+v", claims)
	}

	if _, _, _, err := service.LoginWithPassword(context.Background(), "tenant-a", "mgr@x", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateSession(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	service, _, sessions, _ := testFixture(t, now)

	result, err := service.LoginWithPIN(context.Background(), PINLoginRequest{
		PIN:               "1111",
		LocationSessionID: "loc-1",
		DeviceFingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id, err := service.AuthenticateSession(context.Background(), result.Session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.TenantID != "tenant-a" || id.Role != auth.RoleStaff {
		t.Fatalf("identity = %+v", id)
	}

	if err := service.Logout(context.Background(), result.Session.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.rows) != 0 {
		t.Fatal("logout must delete the session")
	}
	if _, err := service.AuthenticateSession(context.Background(), result.Session.Token); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}
}
