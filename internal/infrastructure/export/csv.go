package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/garyjia/ncr-tracker/internal/application/port"
)

// CSVExporter writes RFC 4180 CSV with a header row
type CSVExporter struct {
	cfg Config
}

// NewCSVExporter creates a CSV exporter
func NewCSVExporter(cfg Config) *CSVExporter {
	return &CSVExporter{cfg: cfg.withDefaults()}
}

func (e *CSVExporter) Format() string    { return "csv" }
func (e *CSVExporter) MimeType() string  { return "text/csv; charset=utf-8" }
func (e *CSVExporter) Extension() string { return ".csv" }

// Write renders the header and rows. Fields containing commas, quotes or
// newlines are quoted with embedded quotes doubled.
func (e *CSVExporter) Write(columns []port.Column, rows [][]port.Cell) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Header
	}
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for i, row := range rows {
		record, err := renderRow(e.cfg, columns, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

var _ port.TabularExporter = (*CSVExporter)(nil)
