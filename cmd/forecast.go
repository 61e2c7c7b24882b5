// =============================================================================
// OPEX Variance Pipeline - Forecast Command
// =============================================================================
//
// COMMAND USAGE:
//   opex forecast [flags]
//
// FLAGS:
//   --input       : Processed table written by the variance stage
//   --output      : Forecast table
//   --metric      : Column the run-rate forecast extrapolates
//   --growth-rate : Uniform growth applied to Actuals
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/pipeline"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
)

var (
	forecastInput      string
	forecastOutput     string
	forecastMetric     string
	forecastGrowthRate float64
)

// forecastCmd represents the 'forecast' command.
var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Add run-rate and growth forecasts to the processed data",
	Long: `The forecast command reads the processed table written by the variance
stage and appends Month_Num, Latest_Value, Remaining_Months,
RunRateForecast_Annualized and GrowthForecast.

If the processed table does not exist yet, run 'opex variance' first.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if forecastInput != "" {
			cfg.ProcessedFile = forecastInput
		}
		if forecastOutput != "" {
			cfg.ForecastFile = forecastOutput
		}
		if err := applyForecastFlags(cmd); err != nil {
			return err
		}

		_, err := pipeline.New(cfg, logger, cmd.OutOrStdout()).Forecast(cmd.Context())
		return err
	},
}

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().StringVar(&forecastInput, "input", "", "Processed table (overrides processed_file)")
	forecastCmd.Flags().StringVar(&forecastOutput, "output", "", "Forecast table (overrides forecast_file)")
	addForecastFlags(forecastCmd)
}

// addForecastFlags registers the forecast tuning flags on a command.
func addForecastFlags(c *cobra.Command) {
	c.Flags().StringVar(&forecastMetric, "metric", "", "Run-rate metric column (overrides forecast.metric)")
	c.Flags().Float64Var(&forecastGrowthRate, "growth-rate", 0, "Growth rate applied to Actuals (overrides forecast.growth_rate)")
}

// applyForecastFlags copies explicitly set forecast flags into cfg and
// re-validates it.
func applyForecastFlags(c *cobra.Command) error {
	if forecastMetric != "" {
		cfg.Forecast.Metric = forecastMetric
	}
	if c.Flags().Changed("growth-rate") {
		cfg.Forecast.GrowthRate = forecastGrowthRate
	}
	if err := cfg.Validate(); err != nil {
		return validation.WrapValidationError("invalid forecast settings", err)
	}
	return nil
}
