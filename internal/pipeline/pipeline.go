// =============================================================================
// OPEX Variance Pipeline - Stage Orchestration
// =============================================================================
//
// This module runs the pipeline stages end to end: load, compute, persist.
//
// VARIANCE STAGE:
//   1. Load the raw cost center extract (input_file)
//   2. Validate it and compute Total_OPEX and variances
//   3. Summarize per cost center
//   4. Write processed_file and summary_file together
//
// FORECAST STAGE:
//   1. Load the processed table written by the variance stage
//   2. Add the run-rate and growth forecasts
//   3. Write forecast_file
//
// FULL RUN:
//   Variance stage, then forecast stage, then the optional dashboard
//   workbook. The first failing step aborts the run.
//
// OUTPUTS:
//   Every output of a stage is staged to a temporary file and moved into
//   place only after all of them were written, so a failing stage never
//   leaves a half-written destination.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/config"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/forecast"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/opex"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/tableio"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/tablewriter"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
	"github.com/ginjaninja78/opex-variance-pipeline/pkg/utils"
)

// ForecastHint tells the operator how to produce the forecast stage input.
const ForecastHint = "Please run the variance stage first to generate the processed data."

// =============================================================================
// RESULT STRUCTURES
// =============================================================================

// VarianceResult is the outcome of the variance stage.
type VarianceResult struct {
	// InputFile is the raw extract that was read.
	InputFile string

	// ProcessedFile and SummaryFile are the written outputs.
	ProcessedFile string
	SummaryFile   string

	// Processed is the enriched per-row table.
	Processed *types.Table

	// Summary is the per-cost-center rollup.
	Summary *types.Table

	// Duration is the time taken by the stage.
	Duration time.Duration
}

// ForecastResult is the outcome of the forecast stage.
type ForecastResult struct {
	InputFile    string
	ForecastFile string
	Forecast     *types.Table
	Duration     time.Duration
}

// RunResult is the outcome of a full run.
type RunResult struct {
	RunID    string
	Variance *VarianceResult
	Forecast *ForecastResult

	// WorkbookFile is the dashboard workbook, empty when not configured.
	WorkbookFile string

	Duration time.Duration
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes pipeline stages for one configuration.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	files  *utils.FileManager
	runID  string
}

// New creates a Runner.
//
// PARAMETERS:
//   - cfg: The loaded configuration.
//   - logger: Structured logger; nil means slog.Default().
//   - out: Receives the operator progress lines; nil discards them.
func New(cfg *config.Config, logger *slog.Logger, out io.Writer) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	runID := uuid.New().String()
	return &Runner{
		cfg:    cfg,
		logger: logger.With(slog.String("run_id", runID)),
		out:    out,
		files:  utils.NewFileManager(cfg.Resolve(cfg.ArchiveDir), cfg.UseTimestampSubdirs),
		runID:  runID,
	}
}

// RunID identifies the runner in every log record it writes.
func (r *Runner) RunID() string {
	return r.runID
}

// =============================================================================
// VARIANCE STAGE
// =============================================================================

// Variance runs the variance stage.
//
// RETURNS:
//   - A NotFoundError if the input file does not exist.
//   - A ValidationError if the input is empty, malformed or lacks columns.
//   - An UnexpectedError for any other failure.
func (r *Runner) Variance(ctx context.Context) (*VarianceResult, error) {
	start := time.Now()
	inputPath := r.cfg.InputPath()
	processedPath := r.cfg.ProcessedPath()
	summaryPath := r.cfg.SummaryPath()
	logger := r.logger.With(slog.String("stage", "variance"))

	if err := distinctPaths(inputPath, processedPath, summaryPath); err != nil {
		return nil, err
	}

	fmt.Fprintf(r.out, "Loading data from: %s\n", inputPath)
	table, err := r.load(inputPath, "")
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(r.out, "Loaded %d rows of data.\n", table.Len())
	logger.Info("loaded input", slog.String("path", inputPath), slog.Int("rows", table.Len()))

	if err := ctx.Err(); err != nil {
		return nil, validation.NewUnexpectedError("variance stage", err)
	}

	fmt.Fprintln(r.out, "Building OPEX model and calculating variances...")
	agg, err := opex.New(table, logger)
	if err != nil {
		return nil, err
	}
	processed, err := agg.ProcessedFrame()
	if err != nil {
		return nil, err
	}
	summary, err := agg.SummarizeByCostCenter()
	if err != nil {
		return nil, err
	}

	if err := r.writeCSV(ctx,
		output{processedPath, processed},
		output{summaryPath, summary},
	); err != nil {
		return nil, validation.NewUnexpectedError("writing variance outputs", err)
	}

	fmt.Fprintf(r.out, "✓ Processed OPEX data saved to: %s\n", processedPath)
	fmt.Fprintf(r.out, "✓ Cost center summary saved to: %s\n", summaryPath)
	fmt.Fprintln(r.out, "Variance analysis completed successfully.")

	result := &VarianceResult{
		InputFile:     inputPath,
		ProcessedFile: processedPath,
		SummaryFile:   summaryPath,
		Processed:     processed,
		Summary:       summary,
		Duration:      time.Since(start),
	}
	logger.Info("variance stage completed",
		slog.Int("rows", processed.Len()),
		slog.Int("cost_centers", summary.Len()),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// =============================================================================
// FORECAST STAGE
// =============================================================================

// Forecast runs the forecast stage on the processed file.
//
// RETURNS:
//   - A NotFoundError carrying ForecastHint if the processed file does not
//     exist.
//   - A ValidationError if the input is empty or lacks required columns.
//   - An UnexpectedError for any other failure.
func (r *Runner) Forecast(ctx context.Context) (*ForecastResult, error) {
	start := time.Now()
	inputPath := r.cfg.ProcessedPath()
	forecastPath := r.cfg.ForecastPath()
	logger := r.logger.With(slog.String("stage", "forecast"))

	if err := distinctPaths(inputPath, forecastPath); err != nil {
		return nil, err
	}

	fmt.Fprintf(r.out, "Loading processed data from: %s\n", inputPath)
	table, err := r.load(inputPath, ForecastHint)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(r.out, "Loaded %d rows of data.\n", table.Len())
	logger.Info("loaded input", slog.String("path", inputPath), slog.Int("rows", table.Len()))

	if err := ctx.Err(); err != nil {
		return nil, validation.NewUnexpectedError("forecast stage", err)
	}

	fmt.Fprintln(r.out, "Generating forecasts...")
	tr, err := forecast.New(table, forecast.Options{
		AllowMonthFallback: r.cfg.Forecast.AllowMonthFallback,
	}, logger)
	if err != nil {
		return nil, err
	}
	if _, err := tr.AddRunRateForecast(r.cfg.Forecast.Metric); err != nil {
		return nil, err
	}
	out, err := tr.AddSimpleGrowthForecast(r.cfg.Forecast.GrowthRate)
	if err != nil {
		return nil, err
	}

	if err := r.writeCSV(ctx, output{forecastPath, out}); err != nil {
		return nil, validation.NewUnexpectedError("writing forecast output", err)
	}

	fmt.Fprintf(r.out, "✓ Forecasted OPEX data saved to: %s\n", forecastPath)
	fmt.Fprintln(r.out, "Forecast pipeline completed successfully.")

	result := &ForecastResult{
		InputFile:    inputPath,
		ForecastFile: forecastPath,
		Forecast:     out,
		Duration:     time.Since(start),
	}
	logger.Info("forecast stage completed",
		slog.String("metric", r.cfg.Forecast.Metric),
		slog.Float64("growth_rate", r.cfg.Forecast.GrowthRate),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// =============================================================================
// FULL RUN
// =============================================================================

// Run executes the variance stage, then the forecast stage, then writes the
// dashboard workbook when one is configured. The first failure aborts the
// run and is returned unchanged.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: r.runID}

	banner := "============================================================"
	fmt.Fprintln(r.out, banner)
	fmt.Fprintln(r.out, "FP&A OPEX Dashboard - Full Pipeline")
	fmt.Fprintln(r.out, banner)

	fmt.Fprintln(r.out, "\nStep 1: Running variance analysis...")
	variance, err := r.Variance(ctx)
	if err != nil {
		r.logger.Error("pipeline step failed", slog.String("step", "variance"), slog.Any("error", err))
		return nil, err
	}
	result.Variance = variance

	fmt.Fprintln(r.out, "\nStep 2: Running forecast pipeline...")
	fc, err := r.Forecast(ctx)
	if err != nil {
		r.logger.Error("pipeline step failed", slog.String("step", "forecast"), slog.Any("error", err))
		return nil, err
	}
	result.Forecast = fc

	if r.cfg.Export.XLSXFile != "" {
		path, err := r.ExportWorkbook(ctx, variance, fc)
		if err != nil {
			r.logger.Error("pipeline step failed", slog.String("step", "export"), slog.Any("error", err))
			return nil, err
		}
		result.WorkbookFile = path
	}

	result.Duration = time.Since(start)

	fmt.Fprintln(r.out, "\n"+banner)
	fmt.Fprintln(r.out, "✓ All steps completed successfully!")
	fmt.Fprintln(r.out, "Data is ready for Power BI / analysis.")
	fmt.Fprintln(r.out, banner)

	r.logger.Info("pipeline completed", slog.Duration("duration", result.Duration))
	return result, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// load reads a table and rejects an empty one. hint is attached to a
// NotFoundError.
func (r *Runner) load(path, hint string) (*types.Table, error) {
	table, err := tableio.Load(path, r.cfg.CSVSettings)
	if err != nil {
		if validation.IsNotFound(err) && hint != "" {
			return nil, validation.NewNotFoundError(path, hint)
		}
		return nil, err
	}
	if table.Len() == 0 {
		return nil, validation.NewValidationError("input data file is empty")
	}
	return table, nil
}

// output is one table bound for one CSV path.
type output struct {
	path  string
	table *types.Table
}

// writeCSV stages every output in order and commits them together.
func (r *Runner) writeCSV(ctx context.Context, outputs ...output) error {
	staging := r.files.NewStaging()
	defer staging.Discard()

	for _, o := range outputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		table := o.table
		if err := staging.Stage(o.path, func(w io.Writer) error {
			return tablewriter.WriteCSV(w, table, r.cfg.CSVSettings)
		}); err != nil {
			return err
		}
		r.logger.Debug("staged output", slog.String("path", o.path), slog.Int("rows", table.Len()))
	}

	_, err := staging.Commit()
	return err
}

// distinctPaths fails when a stage would read and write, or write twice,
// the same file.
func distinctPaths(paths ...string) error {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			return validation.NewValidationError(
				fmt.Sprintf("%s is used for more than one pipeline file", clean))
		}
		seen[clean] = true
	}
	return nil
}
