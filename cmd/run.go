// =============================================================================
// OPEX Variance Pipeline - Run Command
// =============================================================================
//
// This file defines the 'run' command, which performs a full refresh: the
// variance stage, then the forecast stage, then the optional dashboard
// workbook.
//
// COMMAND USAGE:
//   opex run [flags]
//
// FLAGS:
//   --input       : Raw cost center extract
//   --metric      : Column the run-rate forecast extrapolates
//   --growth-rate : Uniform growth applied to Actuals
//   --xlsx        : Dashboard workbook (overrides export.xlsx_file)
//
// =============================================================================

package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/pipeline"
)

var (
	runInput string
	runXLSX  string
)

// runCmd represents the 'run' command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the variance and forecast stages in order",
	Long: `The run command simulates the monthly FP&A refresh: it runs the variance
stage and then the forecast stage. The first failing step stops the run
with that step's diagnostic and exit status.

When export.xlsx_file (or --xlsx) is set, the processed, summary and
forecast tables are also written to one workbook.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if runInput != "" {
			cfg.InputFile = runInput
		}
		if runXLSX != "" {
			cfg.Export.XLSXFile = runXLSX
		}
		if err := applyForecastFlags(cmd); err != nil {
			return err
		}

		result, err := pipeline.New(cfg, logger, cmd.OutOrStdout()).Run(cmd.Context())
		if err != nil {
			return err
		}

		logger.Debug("run finished",
			slog.String("run_id", result.RunID),
			slog.String("workbook", result.WorkbookFile))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runInput, "input", "", "Raw cost center extract (overrides input_file)")
	runCmd.Flags().StringVar(&runXLSX, "xlsx", "", "Dashboard workbook (overrides export.xlsx_file)")
	addForecastFlags(runCmd)
}
