package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"restaurant-ops/internal/auth"
	"restaurant-ops/internal/training/application"
	training "restaurant-ops/internal/training/domain"
)

// Handler provides the /api/v1/training endpoints and the XLSX export.
type Handler struct {
	service *application.Service
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("training handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP routes training requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/training/progress":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleRecord(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "/api/v1/training/summary":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSummary(w, r)
	case "/api/v1/exports/training.xlsx":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleExport(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	restaurantID := strings.TrimSpace(query.Get("restaurant_id"))
	userID := strings.TrimSpace(query.Get("user_id"))

	switch {
	case userID != "":
		rows, err := h.service.ListByUser(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query progress error")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	case restaurantID != "":
		rows, err := h.service.ListByRestaurant(r.Context(), restaurantID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query progress error")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	default:
		writeError(w, http.StatusBadRequest, "restaurant_id or user_id is required")
	}
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req application.RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	progress, err := h.service.Record(r.Context(), req)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrTenantMismatch):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, application.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "record progress error")
	default:
		writeJSON(w, http.StatusOK, progress)
	}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}
	summary, err := h.service.Summary(r.Context(), restaurantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "summary error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}
	rows, err := h.service.ListByRestaurant(r.Context(), restaurantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query progress error")
		return
	}
	data, err := BuildTrainingXLSX(training.Summarize(restaurantID, rows), rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render xlsx error")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "training-"+restaurantID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
