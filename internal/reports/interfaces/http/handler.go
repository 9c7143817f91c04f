package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"restaurant-ops/internal/auth"
	"restaurant-ops/internal/reports/application"
	reports "restaurant-ops/internal/reports/domain"
)

// Handler provides the /api/v1/reports endpoints.
type Handler struct {
	runner *application.Runner
	index  reports.Repository
}

// NewHandler constructs a handler.
func NewHandler(runner *application.Runner, index reports.Repository) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("reports handler: nil runner")
	}
	if index == nil {
		return nil, errors.New("reports handler: nil index")
	}
	return &Handler{runner: runner, index: index}, nil
}

// ServeHTTP routes report requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/reports/run" && r.Method == http.MethodPost:
		h.handleRun(w, r)
	case path == "/api/v1/reports" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case strings.HasPrefix(path, "/api/v1/reports/") && strings.HasSuffix(path, "/download"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/reports/"), "/download")
		h.handleDownload(w, r, id)
	case strings.HasPrefix(path, "/api/v1/reports/") && r.Method == http.MethodGet:
		h.handleGet(w, r, strings.TrimPrefix(path, "/api/v1/reports/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type runRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Date         string `json:"date"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.RestaurantID) == "" {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}
	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	report, err := h.runner.Run(r.Context(), tenantID, req.RestaurantID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report run error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	restaurantID := strings.TrimSpace(query.Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	list, err := h.index.ListByRestaurant(r.Context(), restaurantID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query reports error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	report, err := h.loadReport(w, r, id)
	if report == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	report, err := h.loadReport(w, r, id)
	if report == nil || err != nil {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+report.ID+".xlsx\"")
	http.ServeFile(w, r, report.Location)
}

func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request, id string) (*reports.Report, error) {
	report, err := h.index.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query report error")
		return nil, err
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "report not found")
		return nil, nil
	}
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" && report.TenantID != tenantID {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, nil
	}
	return report, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
