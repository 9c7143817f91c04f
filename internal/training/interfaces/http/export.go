package http

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	training "restaurant-ops/internal/training/domain"
)

// BuildTrainingXLSX renders a restaurant's training progress as a
// spreadsheet with a summary sheet and a per-record sheet.
func BuildTrainingXLSX(summary training.Summary, rows []training.Progress) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	f.SetSheetName("Sheet1", summarySheet)

	_ = f.SetCellValue(summarySheet, "A1", "Restaurant")
	_ = f.SetCellValue(summarySheet, "B1", summary.RestaurantID)
	_ = f.SetCellValue(summarySheet, "A2", "Total records")
	_ = f.SetCellValue(summarySheet, "B2", summary.TotalRecords)
	_ = f.SetCellValue(summarySheet, "A3", "Completed")
	_ = f.SetCellValue(summarySheet, "B3", summary.Completed)
	_ = f.SetCellValue(summarySheet, "A4", "In progress")
	_ = f.SetCellValue(summarySheet, "B4", summary.InProgress)
	_ = f.SetCellValue(summarySheet, "A5", "Not started")
	_ = f.SetCellValue(summarySheet, "B5", summary.NotStarted)
	_ = f.SetCellValue(summarySheet, "A6", "Completion rate")
	_ = f.SetCellValue(summarySheet, "B6", summary.CompletionRate)
	if summary.AverageScore != nil {
		_ = f.SetCellValue(summarySheet, "A7", "Average score")
		_ = f.SetCellValue(summarySheet, "B7", *summary.AverageScore)
	}

	const recordsSheet = "Records"
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return nil, err
	}
	headers := []string{"User", "Document", "Status", "Score", "Completed at", "Updated at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(recordsSheet, cell, h)
	}
	for i, p := range rows {
		rowNum := i + 2
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("A%d", rowNum), p.UserID)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("B%d", rowNum), p.DocumentID)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("C%d", rowNum), p.Status)
		if p.Score != nil {
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("D%d", rowNum), *p.Score)
		}
		if p.CompletedAt != nil {
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("E%d", rowNum), p.CompletedAt.Format(time.RFC3339))
		}
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("F%d", rowNum), p.UpdatedAt.Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
