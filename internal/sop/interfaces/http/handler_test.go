package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"restaurant-ops/internal/auth"
	sop "restaurant-ops/internal/sop/domain"
)

type memCategories struct {
	rows map[string]*sop.Category
}

func (m *memCategories) Get(_ context.Context, id string) (*sop.Category, error) {
	if c, ok := m.rows[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, nil
}

func (m *memCategories) ListByRestaurant(_ context.Context, restaurantID string) ([]sop.Category, error) {
	var out []sop.Category
	for _, c := range m.rows {
		if c.RestaurantID == restaurantID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memCategories) Save(_ context.Context, c *sop.Category) error {
	clone := *c
	m.rows[c.ID] = &clone
	return nil
}

type memDocuments struct {
	rows map[string]*sop.Document
}

func (m *memDocuments) Get(_ context.Context, id string) (*sop.Document, error) {
	if d, ok := m.rows[id]; ok {
		clone := *d
		return &clone, nil
	}
	return nil, nil
}

func (m *memDocuments) ListByRestaurant(_ context.Context, restaurantID, categoryID string) ([]sop.Document, error) {
	var out []sop.Document
	for _, d := range m.rows {
		if d.RestaurantID != restaurantID {
			continue
		}
		if categoryID != "" && d.CategoryID != categoryID {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memDocuments) Save(_ context.Context, d *sop.Document) error {
	if existing, ok := m.rows[d.ID]; ok {
		d.Version = existing.Version + 1
	} else if d.Version == 0 {
		d.Version = 1
	}
	clone := *d
	m.rows[d.ID] = &clone
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *memCategories, *memDocuments) {
	t.Helper()
	categories := &memCategories{rows: map[string]*sop.Category{}}
	documents := &memDocuments{rows: map[string]*sop.Document{}}
	h, err := NewHandler(categories, documents)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h, categories, documents
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

func TestCategoryCreateAndList(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/sop/categories", map[string]any{
		"restaurant_id": "rest-1",
		"name":          "Food Safety",
		"position":      1,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created sop.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.TenantID != "tenant-a" || !created.Active {
		t.Fatalf("unexpected category: %+v", created)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/sop/categories?restaurant_id=rest-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []sop.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Food Safety" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestCategoryUpdateKeepsRestaurantBinding(t *testing.T) {
	h, categories, _ := newTestHandler(t)
	categories.rows["cat-1"] = &sop.Category{
		ID: "cat-1", TenantID: "tenant-a", RestaurantID: "rest-1",
		Name: "Opening", Position: 1, Active: true,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	inactive := false
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPut, "/api/v1/sop/categories/cat-1", map[string]any{
		"restaurant_id": "rest-other",
		"name":          "Opening Checklist",
		"position":      2,
		"active":        inactive,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body = %s", rec.Code, rec.Body.String())
	}

	got := categories.rows["cat-1"]
	if got.RestaurantID != "rest-1" {
		t.Fatalf("restaurant binding must not change, got %s", got.RestaurantID)
	}
	if got.Name != "Opening Checklist" || got.Active {
		t.Fatalf("unexpected category after update: %+v", got)
	}
}

func TestDocumentSaveBumpsVersion(t *testing.T) {
	h, _, documents := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/sop/documents", map[string]any{
		"restaurant_id": "rest-1",
		"title":         "Fryer Cleaning",
		"content":       "Drain oil.\nScrub basket.",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created sop.Document
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.Version != 1 {
		t.Fatalf("version = %d, want 1", created.Version)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPut, "/api/v1/sop/documents/"+created.ID, map[string]any{
		"title":   "Fryer Cleaning",
		"content": "Drain oil.\nScrub basket.\nRefill.",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body = %s", rec.Code, rec.Body.String())
	}
	if documents.rows[created.ID].Version != 2 {
		t.Fatalf("version = %d, want 2", documents.rows[created.ID].Version)
	}
}

func TestDocumentTenantIsolation(t *testing.T) {
	h, _, documents := newTestHandler(t)
	documents.rows["doc-1"] = &sop.Document{
		ID: "doc-1", TenantID: "tenant-b", RestaurantID: "rest-9",
		Title: "Secret", Content: "x", Version: 1, Active: true,
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/sop/documents/doc-1", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestDocumentExportPDF(t *testing.T) {
	h, categories, documents := newTestHandler(t)
	categories.rows["cat-1"] = &sop.Category{
		ID: "cat-1", TenantID: "tenant-a", RestaurantID: "rest-1", Name: "Kitchen", Active: true,
	}
	documents.rows["doc-1"] = &sop.Document{
		ID: "doc-1", TenantID: "tenant-a", RestaurantID: "rest-1", CategoryID: "cat-1",
		Title: "Grill Shutdown", Content: "Turn off burners.\n\nScrape grates.",
		Version: 3, Active: true,
		UpdatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/sop/documents/doc-1/export.pdf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %s", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body does not look like a PDF")
	}
}

func TestDocumentExportNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/sop/documents/missing/export.pdf", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
