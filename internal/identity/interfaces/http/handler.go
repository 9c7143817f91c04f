package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"restaurant-ops/internal/auth"
	identityapp "restaurant-ops/internal/identity/application"
	identity "restaurant-ops/internal/identity/domain"
)

// Handler provides the /api/v1/auth endpoints.
type Handler struct {
	login         *identityapp.LoginService
	secureCookies bool
}

// NewHandler constructs an auth handler. secureCookies should be true
// when serving over TLS.
func NewHandler(login *identityapp.LoginService, secureCookies bool) (*Handler, error) {
	if login == nil {
		return nil, errors.New("auth handler: nil login service")
	}
	return &Handler{login: login, secureCookies: secureCookies}, nil
}

// ServeHTTP routes auth requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/auth/staff-login":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStaffLogin(w, r)
	case "/api/v1/auth/login":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handlePasswordLogin(w, r)
	case "/api/v1/auth/me":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleMe(w, r)
	case "/api/v1/auth/logout":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleLogout(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// The staff-login wire contract is camelCase, unlike the rest of the
// API; the tablet clients depend on these exact keys.
type staffLoginRequest struct {
	PIN               string `json:"pin"`
	LocationSessionID string `json:"locationSessionId"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type staffLoginResponse struct {
	Success         bool             `json:"success"`
	User            identity.Profile `json:"user"`
	ExpiresAt       time.Time        `json:"expiresAt"`
	LocationSession struct {
		ID           string `json:"id"`
		RestaurantID string `json:"restaurantId"`
	} `json:"locationSession"`
}

func (h *Handler) handleStaffLogin(w http.ResponseWriter, r *http.Request) {
	var req staffLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := h.login.LoginWithPIN(r.Context(), identityapp.PINLoginRequest{
		PIN:               strings.TrimSpace(req.PIN),
		LocationSessionID: strings.TrimSpace(req.LocationSessionID),
		DeviceFingerprint: strings.TrimSpace(req.DeviceFingerprint),
	})
	if err != nil {
		switch {
		case errors.Is(err, identityapp.ErrValidation):
			writeError(w, http.StatusBadRequest, "pin must be exactly 4 digits")
		case errors.Is(err, identityapp.ErrInvalidLocationSession):
			// One message for all session preconditions; never say which failed.
			writeError(w, http.StatusUnauthorized, "invalid or expired location session")
		case errors.Is(err, identityapp.ErrInvalidPIN):
			writeError(w, http.StatusUnauthorized, "Invalid PIN")
		default:
			writeError(w, http.StatusInternalServerError, "login error")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    result.Session.Token,
		Path:     "/",
		Expires:  result.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	resp := staffLoginResponse{
		Success:   true,
		User:      result.User,
		ExpiresAt: result.Session.ExpiresAt,
	}
	resp.LocationSession.ID = result.LocationSession.ID
	resp.LocationSession.RestaurantID = result.LocationSession.RestaurantID
	writeJSON(w, http.StatusOK, resp)
}

type passwordLoginRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordLoginResponse struct {
	Success   bool             `json:"success"`
	Token     string           `json:"token"`
	User      identity.Profile `json:"user"`
	ExpiresAt time.Time        `json:"expires_at"`
}

func (h *Handler) handlePasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req passwordLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	token, user, expiresAt, err := h.login.LoginWithPassword(r.Context(), req.TenantID, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identityapp.ErrValidation):
			writeError(w, http.StatusBadRequest, "tenant_id, email and password are required")
		case errors.Is(err, identityapp.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			writeError(w, http.StatusInternalServerError, "login error")
		}
		return
	}

	writeJSON(w, http.StatusOK, passwordLoginResponse{
		Success:   true,
		Token:     token,
		User:      user.PublicProfile(),
		ExpiresAt: expiresAt,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, session, err := h.login.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       user.PublicProfile(),
		"expires_at": session.ExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.login.Logout(r.Context(), cookie.Value); err != nil {
			writeError(w, http.StatusInternalServerError, "logout error")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
