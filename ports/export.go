package ports

import (
	"context"

	"godrift/domain/results"
)

// ExportPort writes the results table and validation report to an external
// artifact (e.g. an Excel workbook).
type ExportPort interface {
	Export(ctx context.Context, table *results.Table, report *results.Report, path string) error
}
