package http

import (
	"bytes"
	"strings"
	"testing"
	"time"

	franchise "restaurant-ops/internal/franchise/domain"
)

func sampleStatement() (*franchise.Statement, []franchise.StatementItem) {
	st := &franchise.Statement{
		ID: "stmt-abc", TenantID: "tenant-a", FranchiseID: "fr-1",
		StatementMonth: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		Version:        1, Status: franchise.StatementStatusFrozen,
		TotalSales: 80000, RoyaltyAmount: 4000, MarketingAmount: 1600, TotalDue: 5600,
		Currency: "USD", SnapshotHash: strings.Repeat("ab", 32),
	}
	items := []franchise.StatementItem{
		{StatementID: st.ID, RestaurantID: "rest-1", Sales: 50000, RoyaltyAmount: 2500, MarketingAmount: 1000, TotalDue: 3500},
		{StatementID: st.ID, RestaurantID: "rest-2", Sales: 30000, RoyaltyAmount: 1500, MarketingAmount: 600, TotalDue: 2100},
	}
	return st, items
}

func TestBuildStatementPDF(t *testing.T) {
	st, items := sampleStatement()
	data, err := BuildStatementPDF(st, items)
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestBuildStatementXLSX(t *testing.T) {
	st, items := sampleStatement()
	data, err := BuildStatementXLSX(st, items)
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("output is not an xlsx archive")
	}
}

func TestBuildStatementCSV(t *testing.T) {
	st, items := sampleStatement()
	data, err := BuildStatementCSV(st, items)
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 2 items + total", len(lines))
	}
	if !strings.Contains(lines[1], "rest-1") || !strings.Contains(lines[1], "2500.00") {
		t.Fatalf("unexpected item line: %s", lines[1])
	}
	if !strings.Contains(lines[3], "TOTAL") || !strings.Contains(lines[3], "5600.00") {
		t.Fatalf("unexpected total line: %s", lines[3])
	}
}
