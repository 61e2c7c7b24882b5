// =============================================================================
// OPEX Variance Pipeline - Forecast Transformer
// =============================================================================
//
// The transformer appends forward-looking estimate columns to a processed
// table. It only reads Month, CostCenter and a metric column, never the
// aggregator's derived columns.
//
// RUN-RATE FORECAST:
//   Month_Num                  = month (1-12) parsed from Month (YYYY-MM)
//   Latest_Value               = metric at the latest month of the cost center
//   Remaining_Months           = max(0, 12 - Month_Num)
//   RunRateForecast_Annualized = Latest_Value * Remaining_Months
//
// GROWTH FORECAST:
//   GrowthForecast = Actuals * (1 + growth_rate)
//
// =============================================================================

package forecast

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultMetric is the metric projected by the run-rate forecast.
	DefaultMetric = "Actuals"

	// DefaultGrowthRate is applied when no rate is configured.
	DefaultGrowthRate = 0.02

	// MonthsPerYear bounds the remaining-months count.
	MonthsPerYear = 12

	monthLayout = "2006-01"
)

// Column names read and written by the transformer.
const (
	ColMonth      = "Month"
	ColCostCenter = "CostCenter"
	ColActuals    = "Actuals"

	ColMonthNum        = "Month_Num"
	ColLatestValue     = "Latest_Value"
	ColRemainingMonths = "Remaining_Months"
	ColRunRate         = "RunRateForecast_Annualized"
	ColGrowthForecast  = "GrowthForecast"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Options tune how the transformer reads its input.
type Options struct {
	// AllowMonthFallback re-derives Month_Num from characters 6-7 of every
	// Month value when any value is not YYYY-MM. When false, malformed
	// months are a validation error.
	AllowMonthFallback bool
}

// Transformer adds run-rate and growth forecast columns to a table.
type Transformer struct {
	table  *types.Table
	opts   Options
	logger *slog.Logger
}

// New creates a transformer over a clone of t.
//
// RETURNS:
//   - A ValidationError if t has no rows.
func New(t *types.Table, opts Options, logger *slog.Logger) (*Transformer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := validation.RequireRows(t, "forecast transformer"); err != nil {
		return nil, err
	}
	return &Transformer{
		table:  t.Clone(),
		opts:   opts,
		logger: logger,
	}, nil
}

// Table returns the table owned by the transformer.
func (f *Transformer) Table() *types.Table {
	return f.table
}

// AddRunRateForecast adds Month_Num, Latest_Value, Remaining_Months and
// RunRateForecast_Annualized. An empty metric means DefaultMetric.
//
// PARAMETERS:
//   - metric: Numeric column whose latest value is annualized.
//
// RETURNS:
//   - The full table with the four new columns.
//   - A ValidationError if metric, Month or CostCenter is missing (all
//     missing ones are reported), if metric is not numeric, or if a Month
//     value cannot be turned into a month number.
func (f *Transformer) AddRunRateForecast(metric string) (*types.Table, error) {
	if metric == "" {
		metric = DefaultMetric
	}

	if err := validation.RequireColumns(f.table, metric, ColMonth, ColCostCenter); err != nil {
		return nil, err
	}
	if err := validation.RequireNumeric(f.table, metric); err != nil {
		return nil, err
	}

	months, err := f.monthNumbers()
	if err != nil {
		return nil, err
	}

	values, err := f.table.Numbers(metric)
	if err != nil {
		return nil, validation.WrapValidationError("cannot read column "+metric, err)
	}
	centers, err := f.table.Texts(ColCostCenter)
	if err != nil {
		return nil, validation.WrapValidationError("cannot read column "+ColCostCenter, err)
	}

	latest := latestPerCostCenter(centers, months, values)

	n := f.table.Len()
	monthNum := make([]float64, n)
	latestValue := make([]float64, n)
	remaining := make([]float64, n)
	runRate := make([]float64, n)
	for i := 0; i < n; i++ {
		monthNum[i] = float64(months[i])

		lv, ok := latest[centers[i]]
		if !ok || math.IsNaN(lv) {
			lv = values[i]
		}
		latestValue[i] = lv

		remaining[i] = float64(max(0, MonthsPerYear-months[i]))
		runRate[i] = latestValue[i] * remaining[i]
	}

	for _, col := range []struct {
		name   string
		values []float64
	}{
		{ColMonthNum, monthNum},
		{ColLatestValue, latestValue},
		{ColRemainingMonths, remaining},
		{ColRunRate, runRate},
	} {
		if err := f.table.SetNumbers(col.name, col.values); err != nil {
			return nil, err
		}
	}

	f.logger.Debug("added run-rate forecast",
		slog.String("metric", metric),
		slog.Int("rows", n),
		slog.Int("cost_centers", len(latest)))
	return f.table, nil
}

// AddSimpleGrowthForecast adds GrowthForecast = Actuals * (1 + growthRate).
//
// RETURNS:
//   - A ValidationError if Actuals is missing or not numeric, or if
//     growthRate is NaN or infinite.
func (f *Transformer) AddSimpleGrowthForecast(growthRate float64) (*types.Table, error) {
	if err := validation.RequireEach(f.table, "calculate growth forecast", ColActuals); err != nil {
		return nil, err
	}
	if math.IsNaN(growthRate) || math.IsInf(growthRate, 0) {
		return nil, validation.NewValidationError(
			fmt.Sprintf("growth rate must be a finite number, got %v", growthRate))
	}
	if err := validation.RequireNumeric(f.table, ColActuals); err != nil {
		return nil, err
	}

	actuals, err := f.table.Numbers(ColActuals)
	if err != nil {
		return nil, validation.WrapValidationError("cannot read column "+ColActuals, err)
	}

	growth := make([]float64, len(actuals))
	for i, v := range actuals {
		growth[i] = v * (1 + growthRate)
	}
	if err := f.table.SetNumbers(ColGrowthForecast, growth); err != nil {
		return nil, err
	}

	f.logger.Debug("added growth forecast", slog.Float64("growth_rate", growthRate))
	return f.table, nil
}

// =============================================================================
// MONTH PARSING
// =============================================================================

// monthNumbers parses every Month value strictly. If any value is malformed
// the fallback, when enabled, re-derives all of them from fixed offsets.
func (f *Transformer) monthNumbers() ([]int, error) {
	raw, err := f.table.Texts(ColMonth)
	if err != nil {
		return nil, validation.WrapValidationError("cannot read column "+ColMonth, err)
	}

	months := make([]int, len(raw))
	var issues []validation.RowIssue
	for i, s := range raw {
		ts, err := time.Parse(monthLayout, s)
		if err != nil {
			issues = append(issues, validation.RowIssue{Row: i + 1, Value: s})
			continue
		}
		months[i] = int(ts.Month())
	}
	if len(issues) == 0 {
		return months, nil
	}

	if !f.opts.AllowMonthFallback {
		return nil, validation.RowIssues(ColMonth, "are not YYYY-MM", issues)
	}

	f.logger.Warn("month values are not YYYY-MM, using character offsets",
		slog.Int("malformed_rows", len(issues)))
	return fallbackMonths(raw)
}

// fallbackMonths reads characters 6-7 of each value as the month number.
func fallbackMonths(raw []string) ([]int, error) {
	months := make([]int, len(raw))
	var issues []validation.RowIssue
	for i, s := range raw {
		r := []rune(s)
		if len(r) < 6 {
			issues = append(issues, validation.RowIssue{Row: i + 1, Value: s})
			continue
		}
		end := min(len(r), 7)
		n, err := strconv.Atoi(string(r[5:end]))
		if err != nil {
			issues = append(issues, validation.RowIssue{Row: i + 1, Value: s})
			continue
		}
		months[i] = n
	}
	if len(issues) > 0 {
		return nil, validation.RowIssues(ColMonth, "have no month number at characters 6-7", issues)
	}
	return months, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// latestPerCostCenter returns, per cost center, the metric value of the last
// row in a stable sort by month. Ties at the latest month go to the row that
// comes last in the table. Blank cost centers are not grouped, so those rows
// keep their own value.
func latestPerCostCenter(centers []string, months []int, values []float64) map[string]float64 {
	idx := make([]int, len(centers))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return months[idx[a]] < months[idx[b]]
	})

	latest := make(map[string]float64)
	for _, i := range idx {
		if strings.TrimSpace(centers[i]) == "" {
			continue
		}
		latest[centers[i]] = values[i]
	}
	return latest
}
