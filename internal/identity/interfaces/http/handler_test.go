package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"restaurant-ops/internal/auth"
	identityapp "restaurant-ops/internal/identity/application"
	identity "restaurant-ops/internal/identity/domain"
	locations "restaurant-ops/internal/locations/domain"
)

type memUsers struct {
	staff []identity.User
}

func (m *memUsers) GetByID(_ context.Context, id string) (*identity.User, error) {
	for i := range m.staff {
		if m.staff[i].ID == id {
			return &m.staff[i], nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByEmail(_ context.Context, _, _ string) (*identity.User, error) {
	return nil, nil
}

func (m *memUsers) ListActiveStaffByRestaurant(_ context.Context, _ string) ([]identity.User, error) {
	return m.staff, nil
}

func (m *memUsers) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	return nil
}

type memSessions struct {
	rows map[string]*identity.Session
	user *identity.User
}

func (m *memSessions) Insert(_ context.Context, s *identity.Session) error {
	m.rows[s.Token] = s
	return nil
}

func (m *memSessions) GetActive(_ context.Context, token string) (*identity.Session, *identity.User, error) {
	s, ok := m.rows[token]
	if !ok {
		return nil, nil, nil
	}
	return s, m.user, nil
}

func (m *memSessions) Delete(_ context.Context, token string) error {
	delete(m.rows, token)
	return nil
}

type memLocSessions struct {
	session *locations.LocationSession
}

func (m *memLocSessions) Get(_ context.Context, id string) (*locations.LocationSession, error) {
	if m.session != nil && m.session.ID == id {
		return m.session, nil
	}
	return nil, nil
}

func (m *memLocSessions) Insert(_ context.Context, _ *locations.LocationSession) error { return nil }

func (m *memLocSessions) DeactivateForDevice(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (m *memLocSessions) TouchStaffLogin(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

func (m *memLocSessions) CountActiveByTenant(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func newTestHandler(t *testing.T, secureCookies bool) (*Handler, *memSessions) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	staff := identity.User{
		ID:           "staff-1",
		TenantID:     "tenant-a",
		RestaurantID: "rest-1",
		Email:        "staff@x",
		Role:         "staff",
		DisplayName:  "Sam",
		PINHash:      string(hash),
		Active:       true,
	}
	users := &memUsers{staff: []identity.User{staff}}
	sessions := &memSessions{rows: map[string]*identity.Session{}, user: &staff}
	now := time.Now().UTC()
	locSessions := &memLocSessions{session: &locations.LocationSession{
		ID:                "loc-1",
		TenantID:          "tenant-a",
		RestaurantID:      "rest-1",
		DeviceFingerprint: "fp-1",
		Token:             "tok",
		Active:            true,
		ExpiresAt:         now.Add(4 * time.Hour),
		CreatedAt:         now,
	}}
	service, err := identityapp.NewLoginService(users, sessions, locSessions, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service, secureCookies)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, sessions
}

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStaffLoginSetsSessionCookie(t *testing.T) {
	handler, _ := newTestHandler(t, true)

	rec := postJSON(handler, "/api/v1/auth/staff-login",
		`{"pin":"4321","locationSessionId":"loc-1","deviceFingerprint":"fp-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie attributes = %+v", cookie)
	}
	if len(cookie.Value) != 64 {
		t.Fatalf("cookie token length = %d", len(cookie.Value))
	}

	var resp struct {
		Success bool `json:"success"`
		User    struct {
			ID string `json:"id"`
		} `json:"user"`
		LocationSession struct {
			RestaurantID string `json:"restaurantId"`
		} `json:"locationSession"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.User.ID != "staff-1" || resp.LocationSession.RestaurantID != "rest-1" {
		t.Fatalf("response = %s", rec.Body.String())
	}
}

func TestStaffLoginResponseUsesCamelCaseKeys(t *testing.T) {
	handler, _ := newTestHandler(t, false)

	rec := postJSON(handler, "/api/v1/auth/staff-login",
		`{"pin":"4321","locationSessionId":"loc-1","deviceFingerprint":"fp-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"success", "user", "expiresAt", "locationSession"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("key %q missing, body %s", key, rec.Body.String())
		}
	}
	for _, key := range []string{"expires_at", "location_session"} {
		if _, ok := raw[key]; ok {
			t.Fatalf("snake_case key %q must not appear, body %s", key, rec.Body.String())
		}
	}
}

func TestStaffLoginMalformedPIN(t *testing.T) {
	handler, _ := newTestHandler(t, false)

	rec := postJSON(handler, "/api/v1/auth/staff-login",
		`{"pin":"43210","locationSessionId":"loc-1","deviceFingerprint":"fp-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStaffLoginSessionFailuresShareOneMessage(t *testing.T) {
	handler, _ := newTestHandler(t, false)

	bodies := []string{
		`{"pin":"4321","locationSessionId":"loc-unknown","deviceFingerprint":"fp-1"}`,
		`{"pin":"4321","locationSessionId":"loc-1","deviceFingerprint":"fp-wrong"}`,
	}
	for _, body := range bodies {
		rec := postJSON(handler, "/api/v1/auth/staff-login", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("body %s: status = %d, want 401", body, rec.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["error"] != "invalid or expired location session" {
			t.Fatalf("body %s: error = %q", body, resp["error"])
		}
	}
}

func TestStaffLoginWrongPIN(t *testing.T) {
	handler, _ := newTestHandler(t, false)

	rec := postJSON(handler, "/api/v1/auth/staff-login",
		`{"pin":"9999","locationSessionId":"loc-1","deviceFingerprint":"fp-1"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] != "Invalid PIN" {
		t.Fatalf("error = %q", resp["error"])
	}
}

func TestLogoutClearsCookieAndSession(t *testing.T) {
	handler, sessions := newTestHandler(t, false)

	rec := postJSON(handler, "/api/v1/auth/staff-login",
		`{"pin":"4321","locationSessionId":"loc-1","deviceFingerprint":"fp-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			token = c.Value
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	out := httptest.NewRecorder()
	handler.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("logout status = %d", out.Code)
	}
	if _, ok := sessions.rows[token]; ok {
		t.Fatal("session row must be deleted on logout")
	}
	var cleared *http.Cookie
	for _, c := range out.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge != -1 {
		t.Fatalf("expected expired cookie, got %+v", cleared)
	}
}

func TestMeRequiresSession(t *testing.T) {
	handler, _ := newTestHandler(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
