package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	franchise "restaurant-ops/internal/franchise/domain"
)

// BuildStatementPDF renders a royalty statement as PDF.
func BuildStatementPDF(st *franchise.Statement, items []franchise.StatementItem) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "Royalty Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Statement: %s (v%d, %s)", st.ID, st.Version, st.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Franchise: %s", st.FranchiseID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", st.StatementMonth.Format("2006-01")))
	pdf.Ln(5)
	if st.SnapshotHash != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Snapshot: %s", st.SnapshotHash))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	headers := []string{"Restaurant", "Sales", "Royalty", "Marketing", "Total due"}
	widths := []float64{60, 32, 32, 32, 32}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		pdf.CellFormat(widths[0], 6, item.RestaurantID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, formatAmount(item.Sales), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, formatAmount(item.RoyaltyAmount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, formatAmount(item.MarketingAmount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, formatAmount(item.TotalDue), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(widths[0], 6, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[1], 6, formatAmount(st.TotalSales), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[2], 6, formatAmount(st.RoyaltyAmount), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 6, formatAmount(st.MarketingAmount), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[4], 6, formatAmount(st.TotalDue), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementXLSX renders a royalty statement as a spreadsheet.
func BuildStatementXLSX(st *franchise.Statement, items []franchise.StatementItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Statement"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Statement")
	_ = f.SetCellValue(sheet, "B1", st.ID)
	_ = f.SetCellValue(sheet, "A2", "Franchise")
	_ = f.SetCellValue(sheet, "B2", st.FranchiseID)
	_ = f.SetCellValue(sheet, "A3", "Month")
	_ = f.SetCellValue(sheet, "B3", st.StatementMonth.Format("2006-01"))
	_ = f.SetCellValue(sheet, "A4", "Version")
	_ = f.SetCellValue(sheet, "B4", st.Version)
	_ = f.SetCellValue(sheet, "A5", "Status")
	_ = f.SetCellValue(sheet, "B5", st.Status)
	_ = f.SetCellValue(sheet, "A6", "Currency")
	_ = f.SetCellValue(sheet, "B6", st.Currency)
	if st.SnapshotHash != "" {
		_ = f.SetCellValue(sheet, "A7", "Snapshot hash")
		_ = f.SetCellValue(sheet, "B7", st.SnapshotHash)
	}

	headerRow := 9
	headers := []string{"Restaurant", "Sales", "Royalty", "Marketing", "Total due"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, item := range items {
		row := headerRow + 1 + i
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), item.RestaurantID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.Sales)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.RoyaltyAmount)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), item.MarketingAmount)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), item.TotalDue)
	}
	totalRow := headerRow + 1 + len(items)
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Total")
	_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", totalRow), st.TotalSales)
	_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", totalRow), st.RoyaltyAmount)
	_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", totalRow), st.MarketingAmount)
	_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", totalRow), st.TotalDue)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementCSV renders a royalty statement's line items as CSV.
func BuildStatementCSV(st *franchise.Statement, items []franchise.StatementItem) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"statement_id", "restaurant_id", "sales", "royalty_amount", "marketing_amount", "total_due", "currency"}); err != nil {
		return nil, err
	}
	for _, item := range items {
		record := []string{
			st.ID,
			item.RestaurantID,
			formatAmount(item.Sales),
			formatAmount(item.RoyaltyAmount),
			formatAmount(item.MarketingAmount),
			formatAmount(item.TotalDue),
			st.Currency,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	if err := w.Write([]string{
		st.ID, "TOTAL",
		formatAmount(st.TotalSales),
		formatAmount(st.RoyaltyAmount),
		formatAmount(st.MarketingAmount),
		formatAmount(st.TotalDue),
		st.Currency,
	}); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
