package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"restaurant-ops/internal/auth"
	franchise "restaurant-ops/internal/franchise/domain"
	"restaurant-ops/internal/observability/metrics"
)

// ErrNotFound marks a missing franchise or statement.
var ErrNotFound = errors.New("franchise: not found")

// ErrInvalidRequest marks rejected input.
var ErrInvalidRequest = errors.New("franchise: invalid request")

// ErrStatementVoided marks an operation against a voided statement.
var ErrStatementVoided = errors.New("franchise: statement is voided")

// StatementService handles royalty calculation and the statement
// lifecycle.
type StatementService struct {
	franchises franchise.Repository
	statements franchise.StatementRepository
}

// NewStatementService constructs a service.
func NewStatementService(franchises franchise.Repository, statements franchise.StatementRepository) (*StatementService, error) {
	if franchises == nil {
		return nil, errors.New("statement service: nil franchise repo")
	}
	if statements == nil {
		return nil, errors.New("statement service: nil statement repo")
	}
	return &StatementService{franchises: franchises, statements: statements}, nil
}

// CalculationResult carries the royalty arithmetic for one request.
type CalculationResult struct {
	FranchiseID   string                  `json:"franchise_id"`
	RoyaltyRate   float64                 `json:"royalty_rate"`
	MarketingRate float64                 `json:"marketing_rate"`
	Currency      string                  `json:"currency"`
	Lines         []franchise.RoyaltyLine `json:"lines"`
	Totals        franchise.RoyaltyTotals `json:"totals"`
}

// Calculate applies a franchise's rates to reported sales without
// persisting anything.
func (s *StatementService) Calculate(ctx context.Context, franchiseID string, reports []franchise.SalesReport) (*CalculationResult, error) {
	f, err := s.loadFranchise(ctx, franchiseID)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, errors.New("statement service: no sales reports")
	}
	lines, totals, err := franchise.CalculateRoyalties(*f, reports)
	if err != nil {
		return nil, err
	}
	return &CalculationResult{
		FranchiseID:   f.ID,
		RoyaltyRate:   f.RoyaltyRate,
		MarketingRate: f.MarketingRate,
		Currency:      f.Currency,
		Lines:         lines,
		Totals:        totals,
	}, nil
}

// Generate creates or returns a statement draft for a franchise month.
func (s *StatementService) Generate(ctx context.Context, franchiseID, month string, reports []franchise.SalesReport, regenerate bool) (*franchise.Statement, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveStatementGenerate(result, time.Since(start))
	}()

	f, err := s.loadFranchise(ctx, franchiseID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	monthStart, err := parseMonth(month)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	if !regenerate {
		existing, err := s.statements.FindLatestActive(ctx, f.TenantID, f.ID, monthStart)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	if len(reports) == 0 {
		result = metrics.ResultError
		return nil, errors.New("statement service: no sales reports")
	}
	lines, totals, err := franchise.CalculateRoyalties(*f, reports)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	version, err := s.statements.NextVersion(ctx, f.TenantID, f.ID, monthStart)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	now := time.Now().UTC()
	st := &franchise.Statement{
		ID:              buildStatementID(f.ID, monthStart, version),
		TenantID:        f.TenantID,
		FranchiseID:     f.ID,
		StatementMonth:  monthStart,
		Version:         version,
		Status:          franchise.StatementStatusDraft,
		TotalSales:      totals.Sales,
		RoyaltyAmount:   totals.RoyaltyAmount,
		MarketingAmount: totals.MarketingAmount,
		TotalDue:        totals.TotalDue,
		Currency:        f.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items := make([]franchise.StatementItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, franchise.StatementItem{
			StatementID:     st.ID,
			RestaurantID:    line.RestaurantID,
			Sales:           line.Sales,
			RoyaltyAmount:   line.RoyaltyAmount,
			MarketingAmount: line.MarketingAmount,
			TotalDue:        line.TotalDue,
		})
	}
	if err := s.statements.CreateWithItems(ctx, st, items); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return st, nil
}

// Freeze freezes a draft statement and computes its snapshot hash.
// Freezing an already frozen statement is a no-op.
func (s *StatementService) Freeze(ctx context.Context, id string) (*franchise.Statement, error) {
	st, err := s.loadStatement(ctx, id)
	if err != nil {
		metrics.IncStatementFreeze(metrics.ResultError)
		return nil, err
	}
	if st.Status == franchise.StatementStatusFrozen {
		return st, nil
	}
	if st.Status == franchise.StatementStatusVoided {
		metrics.IncStatementFreeze(metrics.ResultError)
		return nil, ErrStatementVoided
	}

	items, err := s.statements.ListItems(ctx, id)
	if err != nil {
		metrics.IncStatementFreeze(metrics.ResultError)
		return nil, err
	}
	hash, err := computeSnapshotHash(st, items)
	if err != nil {
		metrics.IncStatementFreeze(metrics.ResultError)
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.statements.MarkFrozen(ctx, id, hash, now); err != nil {
		metrics.IncStatementFreeze(metrics.ResultError)
		return nil, err
	}
	st.Status = franchise.StatementStatusFrozen
	st.SnapshotHash = hash
	st.FrozenAt = now
	st.UpdatedAt = now
	metrics.IncStatementFreeze(metrics.ResultSuccess)
	return st, nil
}

// Void voids a statement. Voiding twice is a no-op.
func (s *StatementService) Void(ctx context.Context, id, reason string) (*franchise.Statement, error) {
	st, err := s.loadStatement(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status == franchise.StatementStatusVoided {
		return st, nil
	}
	now := time.Now().UTC()
	if err := s.statements.MarkVoided(ctx, id, reason, now); err != nil {
		return nil, err
	}
	st.Status = franchise.StatementStatusVoided
	st.VoidReason = reason
	st.VoidedAt = now
	st.UpdatedAt = now
	return st, nil
}

// Get returns a statement with its line items.
func (s *StatementService) Get(ctx context.Context, id string) (*franchise.Statement, []franchise.StatementItem, error) {
	st, err := s.loadStatement(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.statements.ListItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return st, items, nil
}

// List returns every statement version for a franchise month.
func (s *StatementService) List(ctx context.Context, franchiseID, month string) ([]franchise.Statement, error) {
	f, err := s.loadFranchise(ctx, franchiseID)
	if err != nil {
		return nil, err
	}
	monthStart, err := parseMonth(month)
	if err != nil {
		return nil, err
	}
	return s.statements.ListByFranchiseMonth(ctx, f.TenantID, f.ID, monthStart)
}

func (s *StatementService) loadFranchise(ctx context.Context, id string) (*franchise.Franchise, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("statement service: franchise_id required")
	}
	f, err := s.franchises.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	if tenantID := auth.TenantIDFromContext(ctx); tenantID != "" && f.TenantID != tenantID {
		return nil, auth.ErrTenantMismatch
	}
	return f, nil
}

func (s *StatementService) loadStatement(ctx context.Context, id string) (*franchise.Statement, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("statement service: statement id required")
	}
	st, err := s.statements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNotFound
	}
	if tenantID := auth.TenantIDFromContext(ctx); tenantID != "" && st.TenantID != tenantID {
		return nil, auth.ErrTenantMismatch
	}
	return st, nil
}

func parseMonth(month string) (time.Time, error) {
	if month == "" {
		return time.Time{}, errors.New("statement service: month required")
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, errors.New("statement service: month must be YYYY-MM")
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
}

func computeSnapshotHash(st *franchise.Statement, items []franchise.StatementItem) (string, error) {
	if st == nil {
		return "", errors.New("statement service: nil statement")
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].RestaurantID < items[j].RestaurantID
	})
	payload := struct {
		Statement *franchise.Statement      `json:"statement"`
		Items     []franchise.StatementItem `json:"items"`
	}{
		Statement: st,
		Items:     items,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func buildStatementID(franchiseID string, month time.Time, version int) string {
	base := franchiseID + "|" + month.Format("2006-01") + "|" + strconv.Itoa(version)
	hash := sha256.Sum256([]byte(base))
	return "stmt-" + hex.EncodeToString(hash[:8])
}
