package franchise

import (
	"context"
	"errors"
	"math"
	"time"
)

// Franchise is one franchisee agreement covering one or more
// restaurants.
type Franchise struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	OwnerName     string    `json:"owner_name"`
	OwnerEmail    string    `json:"owner_email,omitempty"`
	RoyaltyRate   float64   `json:"royalty_rate"`
	MarketingRate float64   `json:"marketing_rate"`
	Currency      string    `json:"currency"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks franchise invariants. Rates are fractions, not
// percentages.
func (f Franchise) Validate() error {
	if f.ID == "" {
		return errors.New("franchise: empty id")
	}
	if f.TenantID == "" {
		return errors.New("franchise: empty tenant id")
	}
	if f.Name == "" {
		return errors.New("franchise: empty name")
	}
	if f.OwnerName == "" {
		return errors.New("franchise: empty owner name")
	}
	if f.RoyaltyRate < 0 || f.RoyaltyRate > 1 {
		return errors.New("franchise: royalty rate out of range")
	}
	if f.MarketingRate < 0 || f.MarketingRate > 1 {
		return errors.New("franchise: marketing rate out of range")
	}
	return nil
}

// SalesReport is one restaurant's reported sales for a month.
type SalesReport struct {
	RestaurantID string  `json:"restaurant_id"`
	Sales        float64 `json:"sales"`
}

// RoyaltyLine is the computed fee breakdown for one restaurant.
type RoyaltyLine struct {
	RestaurantID    string  `json:"restaurant_id"`
	Sales           float64 `json:"sales"`
	RoyaltyAmount   float64 `json:"royalty_amount"`
	MarketingAmount float64 `json:"marketing_amount"`
	TotalDue        float64 `json:"total_due"`
}

// RoyaltyTotals sums the fee breakdown across restaurants.
type RoyaltyTotals struct {
	Sales           float64 `json:"sales"`
	RoyaltyAmount   float64 `json:"royalty_amount"`
	MarketingAmount float64 `json:"marketing_amount"`
	TotalDue        float64 `json:"total_due"`
}

// CalculateRoyalties applies the franchise rates to reported sales.
// Amounts are rounded to cents per line before totalling.
func CalculateRoyalties(f Franchise, reports []SalesReport) ([]RoyaltyLine, RoyaltyTotals, error) {
	var lines []RoyaltyLine
	var totals RoyaltyTotals
	for _, r := range reports {
		if r.RestaurantID == "" {
			return nil, RoyaltyTotals{}, errors.New("franchise: sales report missing restaurant id")
		}
		if r.Sales < 0 {
			return nil, RoyaltyTotals{}, errors.New("franchise: negative sales for " + r.RestaurantID)
		}
		line := RoyaltyLine{
			RestaurantID:    r.RestaurantID,
			Sales:           roundCents(r.Sales),
			RoyaltyAmount:   roundCents(r.Sales * f.RoyaltyRate),
			MarketingAmount: roundCents(r.Sales * f.MarketingRate),
		}
		line.TotalDue = roundCents(line.RoyaltyAmount + line.MarketingAmount)
		lines = append(lines, line)

		totals.Sales = roundCents(totals.Sales + line.Sales)
		totals.RoyaltyAmount = roundCents(totals.RoyaltyAmount + line.RoyaltyAmount)
		totals.MarketingAmount = roundCents(totals.MarketingAmount + line.MarketingAmount)
		totals.TotalDue = roundCents(totals.TotalDue + line.TotalDue)
	}
	return lines, totals, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Statement statuses.
const (
	StatementStatusDraft  = "draft"
	StatementStatusFrozen = "frozen"
	StatementStatusVoided = "voided"
)

// Statement is one versioned royalty statement for a franchise month.
// Frozen statements are immutable and carry a snapshot hash.
type Statement struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	FranchiseID     string    `json:"franchise_id"`
	StatementMonth  time.Time `json:"statement_month"`
	Version         int       `json:"version"`
	Status          string    `json:"status"`
	TotalSales      float64   `json:"total_sales"`
	RoyaltyAmount   float64   `json:"royalty_amount"`
	MarketingAmount float64   `json:"marketing_amount"`
	TotalDue        float64   `json:"total_due"`
	Currency        string    `json:"currency"`
	SnapshotHash    string    `json:"snapshot_hash,omitempty"`
	FrozenAt        time.Time `json:"frozen_at,omitempty"`
	VoidReason      string    `json:"void_reason,omitempty"`
	VoidedAt        time.Time `json:"voided_at,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatementItem is one restaurant line inside a statement.
type StatementItem struct {
	StatementID     string  `json:"statement_id"`
	RestaurantID    string  `json:"restaurant_id"`
	Sales           float64 `json:"sales"`
	RoyaltyAmount   float64 `json:"royalty_amount"`
	MarketingAmount float64 `json:"marketing_amount"`
	TotalDue        float64 `json:"total_due"`
}

// Repository manages franchise persistence.
type Repository interface {
	Get(ctx context.Context, id string) (*Franchise, error)
	List(ctx context.Context, tenantID string) ([]Franchise, error)
	Save(ctx context.Context, franchise *Franchise) error
}

// StatementRepository manages statement persistence. Frozen rows are
// never updated except for the void transition.
type StatementRepository interface {
	GetByID(ctx context.Context, id string) (*Statement, error)
	FindLatestActive(ctx context.Context, tenantID, franchiseID string, month time.Time) (*Statement, error)
	NextVersion(ctx context.Context, tenantID, franchiseID string, month time.Time) (int, error)
	CreateWithItems(ctx context.Context, statement *Statement, items []StatementItem) error
	ListItems(ctx context.Context, statementID string) ([]StatementItem, error)
	ListByFranchiseMonth(ctx context.Context, tenantID, franchiseID string, month time.Time) ([]Statement, error)
	MarkFrozen(ctx context.Context, id, snapshotHash string, at time.Time) error
	MarkVoided(ctx context.Context, id, reason string, at time.Time) error
}
