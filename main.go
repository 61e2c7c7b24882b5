// =============================================================================
// OPEX Variance Pipeline - Main Entry Point
// =============================================================================
//
// This is the main entry point for the opex CLI application. It delegates
// command execution to the cmd package.
//
// USAGE:
//   opex variance  - Compute totals, variances and the cost center summary
//   opex forecast  - Add run-rate and growth forecasts to the processed data
//   opex run       - Run both stages in order
//   opex version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Table model, parsers, aggregator, forecast, orchestration
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/opex-variance-pipeline/cmd"
)

func main() {
	cmd.Execute()
}
