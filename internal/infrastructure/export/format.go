// Package export renders report tables as CSV or styled XLSX workbooks.
package export

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/garyjia/ncr-tracker/internal/application/port"
)

// Config controls how date cells are rendered
type Config struct {
	DateLayout     string
	DateTimeLayout string
	Location       *time.Location
}

// DefaultConfig renders dates as 2006-01-02 and timestamps with seconds, in UTC
func DefaultConfig() Config {
	return Config{
		DateLayout:     "2006-01-02",
		DateTimeLayout: "2006-01-02 15:04:05",
		Location:       time.UTC,
	}
}

// LoadLocation resolves a timezone name, treating "" as UTC
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load export timezone %q: %w", name, err)
	}
	return loc, nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DateLayout == "" {
		c.DateLayout = d.DateLayout
	}
	if c.DateTimeLayout == "" {
		c.DateTimeLayout = d.DateTimeLayout
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	return c
}

// render turns a cell into its text form. Missing values are "".
func (c Config) render(col port.Column, cell port.Cell) string {
	if cell.Time == nil {
		if col.Kind == port.CellText {
			return cell.Text
		}
		return ""
	}
	t := cell.Time.In(c.Location)
	if col.Kind == port.CellDateTime {
		return t.Format(c.DateTimeLayout)
	}
	return t.Format(c.DateLayout)
}

func renderRow(cfg Config, columns []port.Column, row []port.Cell) ([]string, error) {
	if len(row) != len(columns) {
		return nil, fmt.Errorf("row has %d cells, expected %d", len(row), len(columns))
	}
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = cfg.render(columns[i], cell)
	}
	return out, nil
}
