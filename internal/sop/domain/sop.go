package sop

import (
	"context"
	"errors"
	"time"
)

// Category groups standard operating procedure documents for one
// restaurant.
type Category struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	RestaurantID string    `json:"restaurant_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Position     int       `json:"position"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks category invariants.
func (c Category) Validate() error {
	if c.ID == "" {
		return errors.New("sop: empty category id")
	}
	if c.TenantID == "" {
		return errors.New("sop: empty tenant id")
	}
	if c.RestaurantID == "" {
		return errors.New("sop: empty restaurant id")
	}
	if c.Name == "" {
		return errors.New("sop: empty category name")
	}
	return nil
}

// Document is one procedure. Content is plain text rendered to PDF on
// export.
type Document struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	RestaurantID string    `json:"restaurant_id"`
	CategoryID   string    `json:"category_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Position     int       `json:"position"`
	Version      int       `json:"version"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks document invariants.
func (d Document) Validate() error {
	if d.ID == "" {
		return errors.New("sop: empty document id")
	}
	if d.TenantID == "" {
		return errors.New("sop: empty tenant id")
	}
	if d.RestaurantID == "" {
		return errors.New("sop: empty restaurant id")
	}
	if d.Title == "" {
		return errors.New("sop: empty document title")
	}
	return nil
}

// CategoryRepository manages category persistence.
type CategoryRepository interface {
	Get(ctx context.Context, id string) (*Category, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]Category, error)
	Save(ctx context.Context, category *Category) error
}

// DocumentRepository manages document persistence.
type DocumentRepository interface {
	Get(ctx context.Context, id string) (*Document, error)
	// ListByRestaurant returns documents ordered by category position
	// then document position.
	ListByRestaurant(ctx context.Context, restaurantID string, categoryID string) ([]Document, error)
	Save(ctx context.Context, document *Document) error
}
