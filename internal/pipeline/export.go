package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/tablewriter"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
)

// Dashboard workbook sheet names.
const (
	SheetProcessed = "Processed"
	SheetSummary   = "Summary"
	SheetForecast  = "Forecast"
)

// ExportWorkbook writes the configured dashboard workbook with one sheet per
// stage output. A nil forecast result leaves out the Forecast sheet.
//
// RETURNS:
//   - The workbook path.
//   - A ValidationError if no workbook is configured or variance is nil.
//   - An UnexpectedError if writing fails.
func (r *Runner) ExportWorkbook(ctx context.Context, variance *VarianceResult, fc *ForecastResult) (string, error) {
	path := r.cfg.XLSXPath()
	if path == "" {
		return "", validation.NewValidationError("no dashboard workbook configured (export.xlsx_file)")
	}
	if variance == nil {
		return "", validation.NewValidationError("dashboard workbook needs the variance stage outputs")
	}

	sheets := []tablewriter.Sheet{
		{Name: SheetProcessed, Table: variance.Processed},
		{Name: SheetSummary, Table: variance.Summary},
	}
	if fc != nil {
		sheets = append(sheets, tablewriter.Sheet{Name: SheetForecast, Table: fc.Forecast})
	}

	staging := r.files.NewStaging()
	defer staging.Discard()

	if err := ctx.Err(); err != nil {
		return "", validation.NewUnexpectedError("writing dashboard workbook", err)
	}
	if err := staging.Stage(path, func(w io.Writer) error {
		return tablewriter.WriteXLSX(w, sheets)
	}); err != nil {
		return "", validation.NewUnexpectedError("writing dashboard workbook", err)
	}
	if _, err := staging.Commit(); err != nil {
		return "", validation.NewUnexpectedError("writing dashboard workbook", err)
	}

	fmt.Fprintf(r.out, "✓ Dashboard workbook saved to: %s\n", path)
	r.logger.Info("dashboard workbook written",
		slog.String("path", path),
		slog.Int("sheets", len(sheets)))
	return path, nil
}
