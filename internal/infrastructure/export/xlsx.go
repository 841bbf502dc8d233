package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/ncr-tracker/internal/application/port"
)

// SheetName is the worksheet that holds the report table
const SheetName = "NCR Reports"

const (
	headerFill = "2E7D32"
	headerFont = "FFFFFF"
)

// XLSXExporter writes a single-sheet workbook with a styled, frozen header row
type XLSXExporter struct {
	cfg    Config
	logger *zap.Logger
}

// NewXLSXExporter creates an XLSX exporter
func NewXLSXExporter(cfg Config, logger *zap.Logger) *XLSXExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXExporter{cfg: cfg.withDefaults(), logger: logger}
}

func (e *XLSXExporter) Format() string { return "xlsx" }
func (e *XLSXExporter) MimeType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (e *XLSXExporter) Extension() string { return ".xlsx" }

func (e *XLSXExporter) Write(columns []port.Column, rows [][]port.Cell) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: headerFont},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{
			Vertical: "center",
			WrapText: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to address header %d: %w", i+1, err)
		}
		if err := f.SetCellValue(SheetName, cell, col.Header); err != nil {
			return nil, fmt.Errorf("failed to write header %q: %w", col.Header, err)
		}

		if col.Width > 0 {
			name, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return nil, fmt.Errorf("failed to name column %d: %w", i+1, err)
			}
			if err := f.SetColWidth(SheetName, name, name, col.Width); err != nil {
				return nil, fmt.Errorf("failed to size column %s: %w", name, err)
			}
		}
	}

	if len(columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	for r, row := range rows {
		values, err := renderRow(e.cfg, columns, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r+1, err)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", r+1, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

var _ port.TabularExporter = (*XLSXExporter)(nil)
