// =============================================================================
// OPEX Variance Pipeline - Configuration Module
// =============================================================================
//
// This module loads the pipeline configuration.
//
// LOAD ORDER (later steps win):
//   1. Built-in defaults
//   2. YAML file (config.yaml unless --config says otherwise)
//   3. Environment variables prefixed with OPEX_ (e.g. OPEX_DATA_DIR,
//      OPEX_FORECAST_GROWTH_RATE)
//   4. Struct validation
//
// A missing configuration file is not an error: the defaults reproduce the
// standard data/ layout used by the variance and forecast stages.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "OPEX"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the pipeline configuration.
type Config struct {
	// =========================================================================
	// FILE LOCATIONS
	// =========================================================================

	// DataDir is the directory every relative file name resolves against.
	// Default: "data"
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`

	// InputFile is the raw cost center extract read by the variance stage.
	// Default: "opex_cost_center_data.csv"
	InputFile string `yaml:"input_file" envconfig:"INPUT_FILE" validate:"required"`

	// ProcessedFile is the enriched per-row table. It is written by the
	// variance stage and read by the forecast stage.
	// Default: "opex_processed_for_powerbi.csv"
	ProcessedFile string `yaml:"processed_file" envconfig:"PROCESSED_FILE" validate:"required"`

	// SummaryFile is the per-cost-center rollup.
	// Default: "opex_costcenter_summary.csv"
	SummaryFile string `yaml:"summary_file" envconfig:"SUMMARY_FILE" validate:"required"`

	// ForecastFile is the forecast stage output.
	// Default: "opex_with_forecast.csv"
	ForecastFile string `yaml:"forecast_file" envconfig:"FORECAST_FILE" validate:"required"`

	// ArchiveDir, when set, receives a copy of every output file that is
	// about to be replaced.
	ArchiveDir string `yaml:"archive_dir" envconfig:"ARCHIVE_DIR"`

	// UseTimestampSubdirs places archived copies under YYYY/MM/DD.
	UseTimestampSubdirs bool `yaml:"use_timestamp_subdirs" envconfig:"USE_TIMESTAMP_SUBDIRS"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// LogFormat selects the slog handler: "text" or "json".
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT" validate:"oneof=text json"`

	// =========================================================================
	// STAGE SETTINGS
	// =========================================================================

	CSVSettings CSVSettings      `yaml:"csv_settings" envconfig:"CSV"`
	Forecast    ForecastSettings `yaml:"forecast" envconfig:"FORECAST"`
	Export      ExportSettings   `yaml:"export" envconfig:"EXPORT"`
}

// CSVSettings contains settings for reading and writing delimited files.
type CSVSettings struct {
	// Delimiter is the field separator. Accepts a single character or one
	// of the names "comma", "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `yaml:"delimiter" envconfig:"DELIMITER" validate:"required"`

	// WriteBOM prefixes written files with a UTF-8 byte order mark so Excel
	// detects the encoding. A BOM on input is always stripped.
	WriteBOM bool `yaml:"write_bom" envconfig:"WRITE_BOM"`
}

// ForecastSettings configures the forecast stage.
type ForecastSettings struct {
	// Metric is the column the run-rate forecast extrapolates.
	// Default: "Actuals"
	Metric string `yaml:"metric" envconfig:"METRIC" validate:"required"`

	// GrowthRate is the uniform growth applied to Actuals.
	// Default: 0.03
	GrowthRate float64 `yaml:"growth_rate" envconfig:"GROWTH_RATE" validate:"gt=-1"`

	// AllowMonthFallback enables the fixed-offset month extraction when
	// Month values are not strictly YYYY-MM. Off by default: malformed
	// months fail the stage.
	AllowMonthFallback bool `yaml:"allow_month_fallback" envconfig:"ALLOW_MONTH_FALLBACK"`
}

// ExportSettings configures optional dashboard exports.
type ExportSettings struct {
	// XLSXFile, when set, is a workbook written after a full run with one
	// sheet per output table.
	XLSXFile string `yaml:"xlsx_file" envconfig:"XLSX_FILE"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:       "data",
		InputFile:     "opex_cost_center_data.csv",
		ProcessedFile: "opex_processed_for_powerbi.csv",
		SummaryFile:   "opex_costcenter_summary.csv",
		ForecastFile:  "opex_with_forecast.csv",
		LogLevel:      "info",
		LogFormat:     "text",
		CSVSettings: CSVSettings{
			Delimiter: ",",
			WriteBOM:  true,
		},
		Forecast: ForecastSettings{
			Metric:     "Actuals",
			GrowthRate: 0.03,
		},
	}
}

// Load reads the configuration file, applies environment overrides and
// validates the result.
//
// PARAMETERS:
//   - configPath: The YAML file to read. A missing file is skipped when
//     mustExist is false.
//   - mustExist: Whether a missing file is an error (true when the user
//     named the file explicitly).
//
// RETURNS:
//   - The loaded configuration.
//   - An error if the file cannot be read or parsed, or validation fails.
func Load(configPath string, mustExist bool) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !mustExist:
			// Defaults only.
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// envconfig leaves fields untouched when their variable is unset, so it
	// only overrides what the environment actually names.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults restores defaults for values a YAML file blanked out.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.InputFile == "" {
		cfg.InputFile = def.InputFile
	}
	if cfg.ProcessedFile == "" {
		cfg.ProcessedFile = def.ProcessedFile
	}
	if cfg.SummaryFile == "" {
		cfg.SummaryFile = def.SummaryFile
	}
	if cfg.ForecastFile == "" {
		cfg.ForecastFile = def.ForecastFile
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = def.LogFormat
	}
	if cfg.CSVSettings.Delimiter == "" {
		cfg.CSVSettings.Delimiter = def.CSVSettings.Delimiter
	}
	if cfg.Forecast.Metric == "" {
		cfg.Forecast.Metric = def.Forecast.Metric
	}
}

// Validate checks the configuration with struct tags, the delimiter rule,
// and that no two pipeline files share a path.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := c.CSVSettings.Comma(); err != nil {
		return err
	}
	return c.checkDistinctFiles()
}

// checkDistinctFiles rejects settings where two pipeline files resolve to
// the same path, since one would overwrite the other.
func (c *Config) checkDistinctFiles() error {
	files := []struct {
		key  string
		path string
	}{
		{"input_file", c.InputPath()},
		{"processed_file", c.ProcessedPath()},
		{"summary_file", c.SummaryPath()},
		{"forecast_file", c.ForecastPath()},
		{"export.xlsx_file", c.XLSXPath()},
	}

	seen := make(map[string]string, len(files))
	for _, f := range files {
		if f.path == "" {
			continue
		}
		clean := filepath.Clean(f.path)
		if prev, ok := seen[clean]; ok {
			return fmt.Errorf("%s and %s both resolve to %s", prev, f.key, clean)
		}
		seen[clean] = f.key
	}
	return nil
}

// =============================================================================
// PATH RESOLUTION
// =============================================================================

// Resolve joins a relative file name onto DataDir. Absolute paths are
// returned unchanged.
func (c *Config) Resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// InputPath returns the resolved variance stage input.
func (c *Config) InputPath() string { return c.Resolve(c.InputFile) }

// ProcessedPath returns the resolved processed table location.
func (c *Config) ProcessedPath() string { return c.Resolve(c.ProcessedFile) }

// SummaryPath returns the resolved summary table location.
func (c *Config) SummaryPath() string { return c.Resolve(c.SummaryFile) }

// ForecastPath returns the resolved forecast table location.
func (c *Config) ForecastPath() string { return c.Resolve(c.ForecastFile) }

// XLSXPath returns the resolved workbook location, or "" when disabled.
func (c *Config) XLSXPath() string { return c.Resolve(c.Export.XLSXFile) }

// =============================================================================
// CSV SETTINGS HELPERS
// =============================================================================

// Comma returns the delimiter rune.
func (s CSVSettings) Comma() (rune, error) {
	switch s.Delimiter {
	case "", ",", "comma":
		return ',', nil
	case "\\t", "\t", "tab", "TAB":
		return '\t', nil
	case "|", "pipe", "PIPE":
		return '|', nil
	case ";", "semicolon":
		return ';', nil
	}
	r := []rune(s.Delimiter)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid csv delimiter %q", s.Delimiter)
	}
	return r[0], nil
}
