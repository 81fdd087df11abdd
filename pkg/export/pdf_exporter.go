package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a bibliography as a numbered citation list.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates an A4 document with the heading and one paragraph per entry.
func (e *PDFExporter) Render(data Bibliography) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "", 10)
	for i, entry := range data.Entries {
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("[%d] %s", i+1, entry.Citation())), "", "L", false)
		if entry.URL != "" {
			pdf.SetTextColor(40, 70, 160)
			pdf.CellFormat(0, 5, entry.URL, "", 1, "L", false, 0, entry.URL)
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Ln(2)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
