package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"restaurant-ops/internal/audit"
	"restaurant-ops/internal/auth"
	"restaurant-ops/internal/franchise/application"
	franchise "restaurant-ops/internal/franchise/domain"
	"restaurant-ops/internal/observability/metrics"
)

// Handler handles franchise and royalty statement APIs.
type Handler struct {
	franchises  franchise.Repository
	service     *application.StatementService
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(franchises franchise.Repository, service *application.StatementService, auditLogger audit.Logger) (*Handler, error) {
	if franchises == nil {
		return nil, errors.New("franchise handler: nil franchise repo")
	}
	if service == nil {
		return nil, errors.New("franchise handler: nil service")
	}
	return &Handler{franchises: franchises, service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes franchise requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/franchises":
		switch r.Method {
		case http.MethodGet:
			h.handleFranchiseList(w, r)
		case http.MethodPost:
			h.handleFranchiseSave(w, r, "")
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(path, "/api/v1/franchises/"):
		id := strings.TrimPrefix(path, "/api/v1/franchises/")
		switch r.Method {
		case http.MethodGet:
			h.handleFranchiseGet(w, r, id)
		case http.MethodPut:
			h.handleFranchiseSave(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case path == "/api/v1/royalties/calculate" && r.Method == http.MethodPost:
		h.handleCalculate(w, r)
	case path == "/api/v1/statements/generate" && r.Method == http.MethodPost:
		h.handleGenerate(w, r)
	case path == "/api/v1/statements" && r.Method == http.MethodGet:
		h.handleStatementList(w, r)
	case strings.HasPrefix(path, "/api/v1/statements/"):
		h.handleStatementByID(w, r, strings.TrimPrefix(path, "/api/v1/statements/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleFranchiseList(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.franchises.List(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query franchises error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleFranchiseGet(w http.ResponseWriter, r *http.Request, id string) {
	f, err := h.franchises.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query franchise error")
		return
	}
	if f == nil {
		writeError(w, http.StatusNotFound, "franchise not found")
		return
	}
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" && f.TenantID != tenantID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type saveFranchiseRequest struct {
	Name          string  `json:"name"`
	OwnerName     string  `json:"owner_name"`
	OwnerEmail    string  `json:"owner_email"`
	RoyaltyRate   float64 `json:"royalty_rate"`
	MarketingRate float64 `json:"marketing_rate"`
	Currency      string  `json:"currency"`
	Active        *bool   `json:"active"`
}

func (h *Handler) handleFranchiseSave(w http.ResponseWriter, r *http.Request, id string) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req saveFranchiseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	f := &franchise.Franchise{
		ID:            id,
		TenantID:      tenantID,
		Name:          strings.TrimSpace(req.Name),
		OwnerName:     strings.TrimSpace(req.OwnerName),
		OwnerEmail:    strings.TrimSpace(req.OwnerEmail),
		RoyaltyRate:   req.RoyaltyRate,
		MarketingRate: req.MarketingRate,
		Currency:      req.Currency,
		Active:        true,
	}
	status := http.StatusOK
	if id == "" {
		f.ID = uuid.NewString()
		status = http.StatusCreated
	} else {
		existing, err := h.franchises.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query franchise error")
			return
		}
		if existing == nil {
			writeError(w, http.StatusNotFound, "franchise not found")
			return
		}
		if existing.TenantID != tenantID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		f.CreatedAt = existing.CreatedAt
	}
	if req.Active != nil {
		f.Active = *req.Active
	}
	if err := f.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.franchises.Save(r.Context(), f); err != nil {
		writeError(w, http.StatusInternalServerError, "save franchise error")
		return
	}
	writeJSON(w, status, f)
}

type calculateRequest struct {
	FranchiseID string                  `json:"franchise_id"`
	Reports     []franchise.SalesReport `json:"sales_reports"`
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	result, err := h.service.Calculate(r.Context(), req.FranchiseID, req.Reports)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type generateRequest struct {
	FranchiseID string                  `json:"franchise_id"`
	Month       string                  `json:"month"`
	Reports     []franchise.SalesReport `json:"sales_reports"`
	Regenerate  bool                    `json:"regenerate"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	st, err := h.service.Generate(r.Context(), req.FranchiseID, req.Month, req.Reports, req.Regenerate)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"statement_id": st.ID,
		"status":       st.Status,
		"version":      st.Version,
		"total_due":    st.TotalDue,
	})
	action := "statement.generate"
	if req.Regenerate {
		action = "statement.regenerate"
	}
	h.logAudit(r, st, action, map[string]any{"month": req.Month, "regenerate": req.Regenerate})
}

func (h *Handler) handleStatementList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, err := h.service.List(r.Context(), query.Get("franchise_id"), query.Get("month"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleStatementByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleStatementGet(w, r, id)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "freeze":
			if r.Method == http.MethodPost {
				h.handleFreeze(w, r, id)
				return
			}
		case "void":
			if r.Method == http.MethodPost {
				h.handleVoid(w, r, id)
				return
			}
		case "export.csv":
			if r.Method == http.MethodGet {
				h.handleExport(w, r, id, "csv")
				return
			}
		case "export.xlsx":
			if r.Method == http.MethodGet {
				h.handleExport(w, r, id, "xlsx")
				return
			}
		case "export.pdf":
			if r.Method == http.MethodGet {
				h.handleExport(w, r, id, "pdf")
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleStatementGet(w http.ResponseWriter, r *http.Request, id string) {
	st, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := struct {
		Statement *franchise.Statement      `json:"statement"`
		Items     []franchise.StatementItem `json:"items"`
	}{Statement: st, Items: items}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleFreeze(w http.ResponseWriter, r *http.Request, id string) {
	st, err := h.service.Freeze(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"statement_id":  st.ID,
		"status":        st.Status,
		"version":       st.Version,
		"snapshot_hash": st.SnapshotHash,
	})
	h.logAudit(r, st, "statement.freeze", map[string]any{"status": st.Status})
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	st, err := h.service.Void(r.Context(), id, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"statement_id": st.ID,
		"status":       st.Status,
		"version":      st.Version,
	})
	h.logAudit(r, st, "statement.void", map[string]any{"reason": req.Reason})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, id, format string) {
	result := metrics.ResultSuccess
	defer func() {
		metrics.IncStatementExport(format, result)
	}()

	st, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}

	var data []byte
	var contentType string
	switch format {
	case "csv":
		data, err = BuildStatementCSV(st, items)
		contentType = "text/csv"
	case "xlsx":
		data, err = BuildStatementXLSX(st, items)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = BuildStatementPDF(st, items)
		contentType = "application/pdf"
	}
	if err != nil {
		result = metrics.ResultError
		writeError(w, http.StatusInternalServerError, "export "+format+" error")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, st, "statement.export", map[string]any{"format": format})
}

func (h *Handler) logAudit(r *http.Request, st *franchise.Statement, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "statement",
		ResourceID:   st.ID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrTenantMismatch):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, application.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, application.ErrStatementVoided):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
