package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"restaurant-ops/internal/audit"
	"restaurant-ops/internal/auth"
	identity "restaurant-ops/internal/identity/domain"
	locations "restaurant-ops/internal/locations/domain"
	"restaurant-ops/internal/observability/metrics"
)

var (
	// ErrValidation indicates malformed login input. Surfaced as 400
	// before any data-store call.
	ErrValidation = errors.New("identity: invalid login request")
	// ErrInvalidLocationSession covers missing, mismatched, inactive and
	// expired bindings alike so callers cannot probe which failed.
	ErrInvalidLocationSession = errors.New("identity: invalid or expired location session")
	// ErrInvalidPIN indicates no staff hash matched the supplied PIN.
	ErrInvalidPIN = errors.New("identity: invalid pin")
	// ErrInvalidCredentials indicates a failed email/password login.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// PINLoginRequest carries staff tablet login input.
type PINLoginRequest struct {
	PIN               string
	LocationSessionID string
	DeviceFingerprint string
}

// LoginResult is returned on a successful staff login.
type LoginResult struct {
	User            identity.Profile
	Session         identity.Session
	LocationSession locations.LocationSession
}

// LoginService authenticates staff on bound tablets and managers via
// email/password.
type LoginService struct {
	users       identity.UserRepository
	sessions    identity.SessionRepository
	locSessions locations.LocationSessionRepository
	auditLog    audit.Logger
	logger      *log.Logger
	clock       Clock
	jwtSecret   []byte
	jwtTTL      time.Duration
}

// LoginOption customizes the login service.
type LoginOption func(*LoginService)

// WithClock assigns a clock.
func WithClock(clock Clock) LoginOption {
	return func(s *LoginService) {
		s.clock = clock
	}
}

// WithJWT configures manager token issuance.
func WithJWT(secret []byte, ttl time.Duration) LoginOption {
	return func(s *LoginService) {
		s.jwtSecret = secret
		s.jwtTTL = ttl
	}
}

// NewLoginService constructs a login service.
func NewLoginService(users identity.UserRepository, sessions identity.SessionRepository, locSessions locations.LocationSessionRepository, auditLog audit.Logger, logger *log.Logger, opts ...LoginOption) (*LoginService, error) {
	if users == nil {
		return nil, errors.New("identity: nil user repo")
	}
	if sessions == nil {
		return nil, errors.New("identity: nil session repo")
	}
	if locSessions == nil {
		return nil, errors.New("identity: nil location session repo")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &LoginService{
		users:       users,
		sessions:    sessions,
		locSessions: locSessions,
		auditLog:    auditLog,
		logger:      logger,
		clock:       systemClock{},
		jwtTTL:      12 * time.Hour,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// LoginWithPIN runs the location-bound staff login sequence.
//
// The writes after a successful match (session insert, last-login
// updates, audit) are independent sequential calls: a failure surfaces
// to the caller and earlier effects stand.
func (s *LoginService) LoginWithPIN(ctx context.Context, req PINLoginRequest) (*LoginResult, error) {
	if !identity.ValidPIN(req.PIN) || req.LocationSessionID == "" || req.DeviceFingerprint == "" {
		return nil, ErrValidation
	}

	now := s.clock.Now().UTC()
	locSession, err := s.locSessions.Get(ctx, req.LocationSessionID)
	if err != nil {
		return nil, err
	}
	if locSession == nil || !locSession.ValidFor(req.DeviceFingerprint, now) {
		metrics.IncLoginAttempt("invalid_session")
		return nil, ErrInvalidLocationSession
	}

	staff, err := s.users.ListActiveStaffByRestaurant(ctx, locSession.RestaurantID)
	if err != nil {
		return nil, err
	}

	var matched *identity.User
	for i := range staff {
		if staff[i].PINHash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(staff[i].PINHash), []byte(req.PIN)) == nil {
			matched = &staff[i]
			break
		}
	}
	if matched == nil {
		metrics.IncLoginAttempt("invalid_pin")
		s.auditLoginAttempt(ctx, locSession, "", "auth.pin_login_failed", req, now)
		return nil, ErrInvalidPIN
	}

	session := &identity.Session{
		Token:             newSessionToken(),
		UserID:            matched.ID,
		TenantID:          matched.TenantID,
		RestaurantID:      locSession.RestaurantID,
		DeviceFingerprint: req.DeviceFingerprint,
		LocationSessionID: locSession.ID,
		ExpiresAt:         now.Add(identity.SessionTTL),
		CreatedAt:         now,
	}
	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, matched.ID, now); err != nil {
		s.logger.Printf("pin login: last login update failed: user=%s err=%v", matched.ID, err)
	}
	if err := s.locSessions.TouchStaffLogin(ctx, locSession.ID, matched.ID, now); err != nil {
		s.logger.Printf("pin login: location session touch failed: session=%s err=%v", locSession.ID, err)
	}
	metrics.IncLoginAttempt(metrics.ResultSuccess)
	s.auditLoginAttempt(ctx, locSession, matched.ID, "auth.pin_login", req, now)

	return &LoginResult{
		User:            matched.PublicProfile(),
		Session:         *session,
		LocationSession: *locSession,
	}, nil
}

// LoginWithPassword authenticates a manager or admin and issues a JWT.
func (s *LoginService) LoginWithPassword(ctx context.Context, tenantID, email, password string) (string, *identity.User, time.Time, error) {
	tenantID = strings.TrimSpace(tenantID)
	email = strings.TrimSpace(email)
	if tenantID == "" || email == "" || password == "" {
		return "", nil, time.Time{}, ErrValidation
	}
	user, err := s.users.GetByEmail(ctx, tenantID, email)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	if user == nil || !user.Active || user.PasswordHash == "" {
		return "", nil, time.Time{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, time.Time{}, ErrInvalidCredentials
	}
	role, ok := auth.NormalizeRole(user.Role)
	if !ok || !auth.RoleAtLeast(role, auth.RoleManager) {
		return "", nil, time.Time{}, ErrInvalidCredentials
	}

	now := s.clock.Now().UTC()
	token, err := auth.IssueJWT(s.jwtSecret, user.TenantID, role, user.ID, s.jwtTTL)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Printf("password login: last login update failed: user=%s err=%v", user.ID, err)
	}
	return token, user, now.Add(s.jwtTTL), nil
}

// AuthenticateSession implements auth.SessionAuthenticator.
func (s *LoginService) AuthenticateSession(ctx context.Context, token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	session, user, err := s.sessions.GetActive(ctx, token)
	if err != nil {
		return auth.Identity{}, err
	}
	if session == nil || user == nil || !user.Active {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	role, ok := auth.NormalizeRole(user.Role)
	if !ok {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	return auth.Identity{TenantID: user.TenantID, Role: role, Subject: user.ID}, nil
}

// CurrentUser resolves the session owner for /auth/me.
func (s *LoginService) CurrentUser(ctx context.Context, token string) (*identity.User, *identity.Session, error) {
	session, user, err := s.sessions.GetActive(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if session == nil || user == nil {
		return nil, nil, auth.ErrUnauthorized
	}
	return user, session, nil
}

// Logout deletes a session token.
func (s *LoginService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *LoginService) auditLoginAttempt(ctx context.Context, locSession *locations.LocationSession, userID, action string, req PINLoginRequest, now time.Time) {
	if s.auditLog == nil {
		return
	}
	meta, _ := json.Marshal(map[string]string{
		"pin":                 audit.MaskPIN(req.PIN),
		"location_session_id": req.LocationSessionID,
		"device_fingerprint":  req.DeviceFingerprint,
	})
	_ = s.auditLog.Log(ctx, audit.Entry{
		TenantID:     locSession.TenantID,
		Actor:        userID,
		Role:         string(auth.RoleStaff),
		Action:       action,
		ResourceType: "user_session",
		ResourceID:   userID,
		RestaurantID: locSession.RestaurantID,
		Metadata:     meta,
		CreatedAt:    now,
	})
}

func newSessionToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
