package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

var csvHeaders = []string{"year", "authors", "title", "journal", "doi", "pdf_url"}

// CSVExporter renders a bibliography into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes, one row per entry.
func (e *CSVExporter) Render(data Bibliography) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, entry := range data.Entries {
		record := []string{strconv.Itoa(entry.Year), entry.Authors, entry.Title, entry.Journal, entry.DOI, entry.URL}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
