package excel

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"godrift/domain/results"
	"godrift/internal/errors"
	"godrift/ports"
)

// Exporter writes the observation grid and validation report into an Excel
// workbook for people who want to poke at the numbers by hand.
type Exporter struct{}

var _ ports.ExportPort = (*Exporter)(nil)

// NewExporter creates the Excel exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export writes one workbook with an Observations sheet and, when a report
// is present, Report and Skipped sheets.
func (e *Exporter) Export(ctx context.Context, table *results.Table, report *results.Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeObservations(f, table); err != nil {
		return err
	}
	if report != nil {
		if err := e.writeReport(f, report); err != nil {
			return err
		}
	}

	f.DeleteSheet("Sheet1")
	if err := f.SaveAs(path); err != nil {
		return errors.StorageFailed("save workbook", err)
	}
	return nil
}

func (e *Exporter) writeObservations(f *excelize.File, table *results.Table) error {
	const sheet = "Observations"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.StorageFailed("create observations sheet", err)
	}

	headers := []string{"Condition", "Metric", "Value", "Replicate", "Run ID"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, obs := range table.Observations() {
		values := []interface{}{obs.ConditionKey, obs.MetricName, obs.Value, obs.Replicate, obs.RunID.String()}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return nil
}

func (e *Exporter) writeReport(f *excelize.File, report *results.Report) error {
	const sheet = "Report"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.StorageFailed("create report sheet", err)
	}

	f.SetCellValue(sheet, "A1", "Batch")
	f.SetCellValue(sheet, "B1", report.BatchID.String())
	f.SetCellValue(sheet, "A2", "Metric")
	f.SetCellValue(sheet, "B2", report.MetricName)
	f.SetCellValue(sheet, "A3", "Recommendation")
	f.SetCellValue(sheet, "B3", report.Recommendation)

	headers := []string{"Procedure", "Statistic", "P-Value", "Effect Size", "Confidence", "Interpretation"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 5)
		f.SetCellValue(sheet, cell, header)
	}
	for row, proc := range report.Procedures {
		values := []interface{}{proc.Name, proc.Statistic, proc.PValue, proc.EffectSize, proc.Confidence, proc.Interpretation}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+6)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if len(report.Skipped) > 0 {
		const skippedSheet = "Skipped"
		if _, err := f.NewSheet(skippedSheet); err != nil {
			return errors.StorageFailed("create skipped sheet", err)
		}
		f.SetCellValue(skippedSheet, "A1", "Procedure")
		f.SetCellValue(skippedSheet, "B1", "Reason")
		for row, skipped := range report.Skipped {
			f.SetCellValue(skippedSheet, fmt.Sprintf("A%d", row+2), skipped.Name)
			f.SetCellValue(skippedSheet, fmt.Sprintf("B%d", row+2), skipped.Reason)
		}
	}
	return nil
}
