package http

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	sop "restaurant-ops/internal/sop/domain"
)

// BuildDocumentPDF renders a procedure document as PDF.
func BuildDocumentPDF(doc *sop.Document, category *sop.Category) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, doc.Title)
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if category != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Category: %s", category.Name))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Version: %d", doc.Version))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Updated: %s", doc.UpdatedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 11)
	for _, paragraph := range strings.Split(doc.Content, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			pdf.Ln(4)
			continue
		}
		pdf.MultiCell(0, 5, paragraph, "", "L", false)
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
