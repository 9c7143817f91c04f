package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"restaurant-ops/internal/auth"
	"restaurant-ops/internal/training/application"
	training "restaurant-ops/internal/training/domain"
)

type memProgress struct {
	rows map[string]*training.Progress
}

func (m *memProgress) Get(_ context.Context, id string) (*training.Progress, error) {
	if p, ok := m.rows[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, nil
}

func (m *memProgress) FindByUserDocument(_ context.Context, userID, documentID string) (*training.Progress, error) {
	for _, p := range m.rows {
		if p.UserID == userID && p.DocumentID == documentID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memProgress) ListByRestaurant(_ context.Context, restaurantID string) ([]training.Progress, error) {
	var out []training.Progress
	for _, p := range m.rows {
		if p.RestaurantID == restaurantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProgress) ListByUser(_ context.Context, userID string) ([]training.Progress, error) {
	var out []training.Progress
	for _, p := range m.rows {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProgress) Save(_ context.Context, p *training.Progress) error {
	clone := *p
	m.rows[p.ID] = &clone
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *memProgress) {
	t.Helper()
	progress := &memProgress{rows: map[string]*training.Progress{}}
	service, err := application.NewService(progress, log.New(bytes.NewBuffer(nil), "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h, err := NewHandler(service)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h, progress
}

func authedRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	ctx := auth.WithIdentity(req.Context(), "tenant-a", auth.RoleManager, "mgr-1")
	return req.WithContext(ctx)
}

func TestRecordAndSummaryEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/training/progress", map[string]any{
		"restaurant_id": "rest-1",
		"user_id":       "user-1",
		"document_id":   "doc-1",
		"status":        "completed",
		"score":         95,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("record status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/training/summary?restaurant_id=rest-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var summary training.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalRecords != 1 || summary.Completed != 1 || summary.CompletionRate != 1.0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRecordRejectsBadStatus(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/training/progress", map[string]any{
		"restaurant_id": "rest-1",
		"user_id":       "user-1",
		"document_id":   "doc-1",
		"status":        "finished",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExportTrainingXLSX(t *testing.T) {
	h, progress := newTestHandler(t)
	completed := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	score := 88.0
	progress.rows["p-1"] = &training.Progress{
		ID: "p-1", TenantID: "tenant-a", RestaurantID: "rest-1",
		UserID: "user-1", DocumentID: "doc-1",
		Status: training.StatusCompleted, Score: &score, CompletedAt: &completed,
		CreatedAt: completed, UpdatedAt: completed,
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/exports/training.xlsx?restaurant_id=rest-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %s", got)
	}
	// xlsx files are zip archives, which start with PK.
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("body does not look like an xlsx archive")
	}
}

func TestExportRequiresRestaurant(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/exports/training.xlsx", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
