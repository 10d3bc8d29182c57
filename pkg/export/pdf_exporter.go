package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth = 277.0 // A4 landscape minus margins
	pdfMargin    = 12.0
	pdfLineH     = 5.0
)

// PDFExporter renders datasets into a landscape table with wrapped cells.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the dataset title, subtitle and table.
// The header row repeats on every page.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, pdfMargin, 10)
	pdf.SetAutoPageBreak(false, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	widths := columnWidths(data)
	_, pageH := pdf.GetPageSize()
	limit := pageH - pdfMargin

	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AliasNbPages("")

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}

	pdf.AddPage()
	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, tr(data.Title), "", 1, "C", false, 0, "")
	}
	if data.Subtitle != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, tr(data.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)
	header()

	for _, row := range data.Rows {
		record := data.record(row)
		lines := 1
		for i, value := range record {
			if n := len(pdf.SplitLines([]byte(tr(value)), widths[i]-2)); n > lines {
				lines = n
			}
		}
		rowH := float64(lines) * pdfLineH
		if pdf.GetY()+rowH > limit {
			pdf.AddPage()
			header()
		}

		x, y := pdf.GetXY()
		for i, value := range record {
			pdf.Rect(x, y, widths[i], rowH, "D")
			pdf.SetXY(x, y)
			pdf.MultiCell(widths[i], pdfLineH, tr(value), "", "L", false)
			x += widths[i]
		}
		pdf.SetXY(10, y+rowH)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(data Dataset) []float64 {
	var total float64
	for i := range data.Headers {
		total += data.weight(i)
	}
	widths := make([]float64, len(data.Headers))
	for i := range data.Headers {
		widths[i] = pdfPageWidth * data.weight(i) / total
	}
	return widths
}
