// Package importer defines the contract for price-list and schedule
// ingestion. Parsing PDFs, Excel and CSV files happens outside this service;
// the workflow engine only consumes rows that are already structured.
package importer

import (
	"context"
	"io"
	"time"
)

// ImportedRow is one parsed line of a supplied price list or schedule.
type ImportedRow struct {
	SKU          string     `json:"sku"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Description  string     `json:"description,omitempty"`
	Quantity     int64      `json:"quantity"`
	UnitPrice    string     `json:"unit_price"`
	CoverageFrom *time.Time `json:"coverage_from,omitempty"`
	CoverageTo   *time.Time `json:"coverage_to,omitempty"`
	Selected     bool       `json:"is_selected"`
}

// RowSource parses an uploaded file into rows.
type RowSource interface {
	ImportRows(ctx context.Context, file io.Reader, filename string) ([]ImportedRow, error)
}

// StaticSource returns fixed rows regardless of input; used in tests and
// local development.
type StaticSource struct {
	Rows []ImportedRow
}

func (s *StaticSource) ImportRows(_ context.Context, _ io.Reader, _ string) ([]ImportedRow, error) {
	return s.Rows, nil
}
