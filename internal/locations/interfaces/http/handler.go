package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"restaurant-ops/internal/auth"
	locationsapp "restaurant-ops/internal/locations/application"
	locations "restaurant-ops/internal/locations/domain"
)

// Handler provides restaurant and device-binding endpoints.
type Handler struct {
	restaurants locations.RestaurantRepository
	binding     *locationsapp.BindingService
}

// NewHandler constructs a handler.
func NewHandler(restaurants locations.RestaurantRepository, binding *locationsapp.BindingService) (*Handler, error) {
	if restaurants == nil {
		return nil, errors.New("locations handler: nil restaurant repo")
	}
	if binding == nil {
		return nil, errors.New("locations handler: nil binding service")
	}
	return &Handler{restaurants: restaurants, binding: binding}, nil
}

// ServeHTTP handles /api/v1/restaurants and /api/v1/locations/bind.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/locations/bind":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleBind(w, r)
	case r.URL.Path == "/api/v1/restaurants":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleSave(w, r, "")
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/restaurants/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/restaurants/")
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
		case http.MethodPut:
			h.handleSave(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type bindRequest struct {
	RestaurantID      string `json:"restaurant_id"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

type bindResponse struct {
	Success           bool      `json:"success"`
	LocationSessionID string    `json:"location_session_id"`
	RestaurantID      string    `json:"restaurant_id"`
	ExpiresAt         time.Time `json:"expires_at"`
}

func (h *Handler) handleBind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.RestaurantID = strings.TrimSpace(req.RestaurantID)
	req.DeviceFingerprint = strings.TrimSpace(req.DeviceFingerprint)

	session, err := h.binding.Bind(r.Context(), req.RestaurantID, req.DeviceFingerprint)
	if err != nil {
		switch {
		case errors.Is(err, locationsapp.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "restaurant_id and device_fingerprint are required")
		case errors.Is(err, locationsapp.ErrRestaurantNotFound):
			writeError(w, http.StatusNotFound, "restaurant not found")
		case errors.Is(err, auth.ErrTenantMismatch):
			writeError(w, http.StatusForbidden, "forbidden")
		default:
			writeError(w, http.StatusInternalServerError, "bind error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, bindResponse{
		Success:           true,
		LocationSessionID: session.ID,
		RestaurantID:      session.RestaurantID,
		ExpiresAt:         session.ExpiresAt,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.restaurants.ListByTenant(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query restaurants error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	restaurant, err := h.restaurants.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query restaurant error")
		return
	}
	if restaurant == nil {
		writeError(w, http.StatusNotFound, "restaurant not found")
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && restaurant.TenantID != tenantID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, restaurant)
}

type saveRestaurantRequest struct {
	Name        string `json:"name"`
	Timezone    string `json:"timezone"`
	Address     string `json:"address"`
	Region      string `json:"region"`
	FranchiseID string `json:"franchise_id"`
	Active      *bool  `json:"active"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request, id string) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req saveRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	restaurant := &locations.Restaurant{
		ID:          id,
		TenantID:    tenantID,
		FranchiseID: strings.TrimSpace(req.FranchiseID),
		Name:        strings.TrimSpace(req.Name),
		Timezone:    strings.TrimSpace(req.Timezone),
		Address:     strings.TrimSpace(req.Address),
		Region:      strings.TrimSpace(req.Region),
		Active:      true,
	}
	status := http.StatusOK
	if id == "" {
		restaurant.ID = uuid.NewString()
		status = http.StatusCreated
	} else {
		existing, err := h.restaurants.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query restaurant error")
			return
		}
		if existing == nil {
			writeError(w, http.StatusNotFound, "restaurant not found")
			return
		}
		if existing.TenantID != tenantID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		restaurant.CreatedAt = existing.CreatedAt
	}
	if req.Active != nil {
		restaurant.Active = *req.Active
	}
	if restaurant.Timezone == "" {
		restaurant.Timezone = "UTC"
	}
	if err := restaurant.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.restaurants.Save(r.Context(), restaurant); err != nil {
		writeError(w, http.StatusInternalServerError, "save restaurant error")
		return
	}
	writeJSON(w, status, restaurant)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
