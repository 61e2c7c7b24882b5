// =============================================================================
// OPEX Variance Pipeline - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (opex)
//   ├── varianceCmd (opex variance)
//   ├── forecastCmd (opex forecast)
//   ├── runCmd      (opex run)
//   └── versionCmd  (opex version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose, --data-dir)
//   2. Loading the configuration before any subcommand runs
//   3. Setting up logging
//
// EXIT STATUS:
//   0 success, 1 unexpected error, 2 validation error, 3 input not found.
//   The diagnostic is printed to stderr as "ERROR: <message>".
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/config"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// dataDir overrides data_dir from the configuration.
var dataDir string

// cfg is the configuration loaded before every subcommand.
var cfg *config.Config

// logger is the structured logger built from the configuration.
var logger *slog.Logger

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "opex",
	Short: "OPEX variance pipeline - cost center variances and forecasts",
	Long: `opex computes operating-expense variance metrics and simple forecasts for
cost centers from tabular financial data, producing files ready for
dashboarding.

Stages:
  variance  Total OPEX, Budget/Forecast/Actual variances, cost center summary
  forecast  Run-rate annualization and uniform growth on the processed data
  run       Both stages in order, plus the optional dashboard workbook

Example Usage:
  opex run                              # Full refresh with config.yaml
  opex variance --input extract.xlsx    # Variance stage on a workbook
  opex forecast --growth-rate 0.05      # Re-run forecasts with 5% growth`,

	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command and exits with the status matching the
// error kind. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(validation.ExitCode(err))
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)

	rootCmd.PersistentFlags().StringVar(
		&dataDir,
		"data-dir",
		"",
		"Directory relative file names resolve against (overrides data_dir)",
	)

	// Bad flags are operator input errors, not crashes.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return validation.WrapValidationError("invalid arguments", err)
	})
}

// initConfig loads the configuration and builds the logger. The config file
// must exist only when --config was given explicitly.
func initConfig(cmd *cobra.Command) error {
	mustExist := cmd.Flags().Changed("config")

	loaded, err := config.Load(cfgFile, mustExist)
	if err != nil {
		return validation.WrapValidationError("failed to load configuration", err)
	}
	if dataDir != "" {
		loaded.DataDir = dataDir
	}

	cfg = loaded
	logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat, verbose)
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		slog.String("config", cfgFile),
		slog.String("data_dir", cfg.DataDir))
	return nil
}

// newLogger builds the slog logger described by the configuration.
func newLogger(w io.Writer, level, format string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
