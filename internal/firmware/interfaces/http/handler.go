package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"restaurant-ops/internal/auth"
	firmwareapp "restaurant-ops/internal/firmware/application"
	firmware "restaurant-ops/internal/firmware/domain"
)

// Handler provides the /api/v1/firmware endpoints.
type Handler struct {
	service *firmwareapp.Service
}

// NewHandler constructs a firmware handler.
func NewHandler(service *firmwareapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("firmware handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP routes firmware requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/firmware/updates":
		switch r.Method {
		case http.MethodPost:
			h.handleIssue(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "/api/v1/firmware/results":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleResult(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req firmwareapp.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	update, err := h.service.Issue(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, firmwareapp.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "equipment_id and version are required")
		case errors.Is(err, firmwareapp.ErrUnknownEquipment):
			writeError(w, http.StatusNotFound, "equipment not found")
		case errors.Is(err, auth.ErrTenantMismatch):
			writeError(w, http.StatusForbidden, "forbidden")
		default:
			writeError(w, http.StatusInternalServerError, "issue update error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, update)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 100
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	var (
		list []firmware.Update
		err  error
	)
	switch {
	case query.Get("equipment_id") != "":
		list, err = h.service.ListByEquipment(r.Context(), query.Get("equipment_id"), limit)
	case query.Get("restaurant_id") != "":
		list, err = h.service.ListByRestaurant(r.Context(), query.Get("restaurant_id"), limit)
	default:
		writeError(w, http.StatusBadRequest, "restaurant_id or equipment_id is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query updates error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type resultRequest struct {
	UpdateID string `json:"update_id"`
	Status   string `json:"status"`
	Detail   string `json:"detail"`
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.service.HandleResult(r.Context(), req.UpdateID, req.Status, req.Detail); err != nil {
		if errors.Is(err, firmwareapp.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "status must be acked or failed")
			return
		}
		writeError(w, http.StatusInternalServerError, "record result error")
		return
	}
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
