// =============================================================================
// OPEX Variance Pipeline - Variance Command
// =============================================================================
//
// COMMAND USAGE:
//   opex variance [flags]
//
// FLAGS:
//   --input   : Raw cost center extract (.csv or .xlsx)
//   --output  : Processed per-row table
//   --summary : Per-cost-center summary
//
// Relative paths resolve against data_dir.
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/pipeline"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
)

var (
	varianceInput   string
	varianceOutput  string
	varianceSummary string
)

// varianceCmd represents the 'variance' command.
var varianceCmd = &cobra.Command{
	Use:   "variance",
	Short: "Compute Total OPEX, variances and the cost center summary",
	Long: `The variance command reads the raw cost center extract, validates that the
category and budget columns are present, adds Total_OPEX and the three
variance columns, and writes the processed table and the per-cost-center
summary. Both files are written together or not at all.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if varianceInput != "" {
			cfg.InputFile = varianceInput
		}
		if varianceOutput != "" {
			cfg.ProcessedFile = varianceOutput
		}
		if varianceSummary != "" {
			cfg.SummaryFile = varianceSummary
		}
		if err := cfg.Validate(); err != nil {
			return validation.WrapValidationError("invalid variance settings", err)
		}

		_, err := pipeline.New(cfg, logger, cmd.OutOrStdout()).Variance(cmd.Context())
		return err
	},
}

func init() {
	rootCmd.AddCommand(varianceCmd)

	varianceCmd.Flags().StringVar(&varianceInput, "input", "", "Raw cost center extract (overrides input_file)")
	varianceCmd.Flags().StringVar(&varianceOutput, "output", "", "Processed table (overrides processed_file)")
	varianceCmd.Flags().StringVar(&varianceSummary, "summary", "", "Cost center summary (overrides summary_file)")
}
