package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"restaurant-ops/internal/auth"
	sop "restaurant-ops/internal/sop/domain"
)

// Handler provides the /api/v1/sop endpoints.
type Handler struct {
	categories sop.CategoryRepository
	documents  sop.DocumentRepository
}

// NewHandler constructs a handler.
func NewHandler(categories sop.CategoryRepository, documents sop.DocumentRepository) (*Handler, error) {
	if categories == nil {
		return nil, errors.New("sop handler: nil category repo")
	}
	if documents == nil {
		return nil, errors.New("sop handler: nil document repo")
	}
	return &Handler{categories: categories, documents: documents}, nil
}

// ServeHTTP routes SOP requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/sop/categories":
		switch r.Method {
		case http.MethodGet:
			h.handleCategoryList(w, r)
		case http.MethodPost:
			h.handleCategorySave(w, r, "")
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(path, "/api/v1/sop/categories/"):
		id := strings.TrimPrefix(path, "/api/v1/sop/categories/")
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCategorySave(w, r, id)
	case path == "/api/v1/sop/documents":
		switch r.Method {
		case http.MethodGet:
			h.handleDocumentList(w, r)
		case http.MethodPost:
			h.handleDocumentSave(w, r, "")
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(path, "/api/v1/sop/documents/") && strings.HasSuffix(path, "/export.pdf"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/sop/documents/"), "/export.pdf")
		h.handleDocumentExport(w, r, id)
	case strings.HasPrefix(path, "/api/v1/sop/documents/"):
		id := strings.TrimPrefix(path, "/api/v1/sop/documents/")
		switch r.Method {
		case http.MethodGet:
			h.handleDocumentGet(w, r, id)
		case http.MethodPut:
			h.handleDocumentSave(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}
	list, err := h.categories.ListByRestaurant(r.Context(), restaurantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query categories error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type saveCategoryRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Position     int    `json:"position"`
	Active       *bool  `json:"active"`
}

func (h *Handler) handleCategorySave(w http.ResponseWriter, r *http.Request, id string) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req saveCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	category := &sop.Category{
		ID:           id,
		TenantID:     tenantID,
		RestaurantID: strings.TrimSpace(req.RestaurantID),
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		Position:     req.Position,
		Active:       true,
	}
	status := http.StatusOK
	if id == "" {
		category.ID = uuid.NewString()
		status = http.StatusCreated
	} else {
		existing, err := h.categories.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query category error")
			return
		}
		if existing == nil {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		if existing.TenantID != tenantID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		category.RestaurantID = existing.RestaurantID
		category.CreatedAt = existing.CreatedAt
	}
	if req.Active != nil {
		category.Active = *req.Active
	}
	if err := category.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.categories.Save(r.Context(), category); err != nil {
		writeError(w, http.StatusInternalServerError, "save category error")
		return
	}
	writeJSON(w, status, category)
}

func (h *Handler) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	restaurantID := strings.TrimSpace(query.Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}
	list, err := h.documents.ListByRestaurant(r.Context(), restaurantID, strings.TrimSpace(query.Get("category_id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query documents error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleDocumentGet(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query document error")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" && doc.TenantID != tenantID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type saveDocumentRequest struct {
	RestaurantID string `json:"restaurant_id"`
	CategoryID   string `json:"category_id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Position     int    `json:"position"`
	Active       *bool  `json:"active"`
}

func (h *Handler) handleDocumentSave(w http.ResponseWriter, r *http.Request, id string) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req saveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	doc := &sop.Document{
		ID:           id,
		TenantID:     tenantID,
		RestaurantID: strings.TrimSpace(req.RestaurantID),
		CategoryID:   strings.TrimSpace(req.CategoryID),
		Title:        strings.TrimSpace(req.Title),
		Content:      req.Content,
		Position:     req.Position,
		Active:       true,
	}
	status := http.StatusOK
	if id == "" {
		doc.ID = uuid.NewString()
		status = http.StatusCreated
	} else {
		existing, err := h.documents.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query document error")
			return
		}
		if existing == nil {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		if existing.TenantID != tenantID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		doc.RestaurantID = existing.RestaurantID
		doc.Version = existing.Version
		doc.CreatedAt = existing.CreatedAt
	}
	if req.Active != nil {
		doc.Active = *req.Active
	}
	if err := doc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.documents.Save(r.Context(), doc); err != nil {
		writeError(w, http.StatusInternalServerError, "save document error")
		return
	}
	writeJSON(w, status, doc)
}

func (h *Handler) handleDocumentExport(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query document error")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" && doc.TenantID != tenantID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var category *sop.Category
	if doc.CategoryID != "" {
		category, err = h.categories.Get(r.Context(), doc.CategoryID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query category error")
			return
		}
	}

	data, err := BuildDocumentPDF(doc, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render pdf error")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.ID+".pdf"))
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
