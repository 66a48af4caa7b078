package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title, a generated-at
// subtitle, and a table body. Section breaks insert a bold full-width row.
func (e *PDFExporter) Render(data Dataset, title string, generatedAt time.Time) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
	}
	if !generatedAt.IsZero() {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, "Generated "+generatedAt.Format("2006-01-02 15:04 MST"), "", 1, "C", false, 0, "")
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	for _, row := range data.Rows {
		if section, ok := row[SectionKey]; ok {
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(190, 7, section, "1", 1, "L", false, 0, "")
			continue
		}
		pdf.SetFont("Arial", "", 9)
		for _, header := range data.Headers {
			value := row[header]
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
