package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"restaurant-ops/internal/auth"
	equipmentapp "restaurant-ops/internal/equipment/application"
	equipment "restaurant-ops/internal/equipment/domain"
	"restaurant-ops/internal/statestore"
)

// Handler provides the equipment registry, telemetry history, status
// and maintenance endpoints.
type Handler struct {
	registry    equipment.EquipmentRepository
	telemetry   equipment.TelemetryRepository
	schedules   equipment.MaintenanceRepository
	maintenance *equipmentapp.MaintenanceService
	states      *statestore.Store
}

// NewHandler constructs a handler.
func NewHandler(registry equipment.EquipmentRepository, telemetry equipment.TelemetryRepository, schedules equipment.MaintenanceRepository, maintenance *equipmentapp.MaintenanceService, states *statestore.Store) (*Handler, error) {
	if registry == nil {
		return nil, errors.New("equipment handler: nil registry")
	}
	if telemetry == nil {
		return nil, errors.New("equipment handler: nil telemetry repo")
	}
	if schedules == nil {
		return nil, errors.New("equipment handler: nil maintenance repo")
	}
	if maintenance == nil {
		return nil, errors.New("equipment handler: nil maintenance service")
	}
	if states == nil {
		states = statestore.New()
	}
	return &Handler{
		registry:    registry,
		telemetry:   telemetry,
		schedules:   schedules,
		maintenance: maintenance,
		states:      states,
	}, nil
}

// ServeHTTP routes equipment requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/provisioning/equipment":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRegister(w, r)
	case path == "/api/v1/equipment/status":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStatus(w, r)
	case path == "/api/v1/equipment":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case strings.HasPrefix(path, "/api/v1/equipment/") && strings.HasSuffix(path, "/telemetry"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/equipment/"), "/telemetry")
		h.handleTelemetry(w, r, id)
	case strings.HasPrefix(path, "/api/v1/equipment/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r, strings.TrimPrefix(path, "/api/v1/equipment/"))
	case path == "/api/v1/maintenance":
		switch r.Method {
		case http.MethodGet:
			h.handleMaintenanceList(w, r)
		case http.MethodPost:
			h.handleMaintenanceCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(path, "/api/v1/maintenance/") && strings.HasSuffix(path, "/status"):
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/maintenance/"), "/status")
		h.handleMaintenanceTransition(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type registerRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	SerialNumber string `json:"serial_number"`
	GatewayID    string `json:"gateway_id"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	device := &equipment.Equipment{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		RestaurantID: strings.TrimSpace(req.RestaurantID),
		Name:         strings.TrimSpace(req.Name),
		Type:         strings.TrimSpace(req.Type),
		SerialNumber: strings.TrimSpace(req.SerialNumber),
		GatewayID:    strings.TrimSpace(req.GatewayID),
		Active:       true,
		InstalledAt:  time.Now().UTC(),
	}
	if err := device.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.registry.Save(r.Context(), device); err != nil {
		writeError(w, http.StatusInternalServerError, "save equipment error")
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}
	list, err := h.registry.ListByRestaurant(r.Context(), restaurantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query equipment error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	device, err := h.registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query equipment error")
		return
	}
	if device == nil {
		writeError(w, http.StatusNotFound, "equipment not found")
		return
	}
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" && device.TenantID != tenantID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (h *Handler) handleTelemetry(w http.ResponseWriter, r *http.Request, id string) {
	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	samples, err := h.telemetry.ListRecent(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query telemetry error")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	keys := h.states.Keys("equipment:")
	statuses := make([]any, 0, len(keys))
	for _, key := range keys {
		if v, ok := h.states.Get(key); ok {
			statuses = append(statuses, v)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipment": statuses})
}

func (h *Handler) handleMaintenanceList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 100
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	var (
		list []equipment.MaintenanceSchedule
		err  error
	)
	switch {
	case query.Get("equipment_id") != "":
		list, err = h.schedules.ListByEquipment(r.Context(), query.Get("equipment_id"), limit)
	case query.Get("restaurant_id") != "":
		list, err = h.schedules.ListByRestaurant(r.Context(), query.Get("restaurant_id"), limit)
	default:
		writeError(w, http.StatusBadRequest, "restaurant_id or equipment_id is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query maintenance error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createMaintenanceRequest struct {
	EquipmentID  string    `json:"equipment_id"`
	Type         string    `json:"type"`
	Priority     string    `json:"priority"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Description  string    `json:"description"`
}

func (h *Handler) handleMaintenanceCreate(w http.ResponseWriter, r *http.Request) {
	var req createMaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	schedule, err := h.maintenance.Create(r.Context(), equipmentapp.CreateRequest{
		EquipmentID:  req.EquipmentID,
		Type:         req.Type,
		Priority:     req.Priority,
		ScheduledFor: req.ScheduledFor,
		Description:  req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, equipmentapp.ErrInvalidSchedule):
			writeError(w, http.StatusBadRequest, "invalid schedule request")
		case errors.Is(err, equipmentapp.ErrUnknownEquipment):
			writeError(w, http.StatusNotFound, "equipment not found")
		case errors.Is(err, auth.ErrTenantMismatch):
			writeError(w, http.StatusForbidden, "forbidden")
		default:
			writeError(w, http.StatusInternalServerError, "create schedule error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleMaintenanceTransition(w http.ResponseWriter, r *http.Request, id string) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	schedule, err := h.maintenance.Transition(r.Context(), id, equipment.MaintenanceStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, equipmentapp.ErrScheduleNotFound):
			writeError(w, http.StatusNotFound, "schedule not found")
		case errors.Is(err, equipment.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid status transition")
		case errors.Is(err, auth.ErrTenantMismatch):
			writeError(w, http.StatusForbidden, "forbidden")
		default:
			writeError(w, http.StatusInternalServerError, "update schedule error")
		}
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
