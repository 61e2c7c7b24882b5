// =============================================================================
// OPEX Variance Pipeline - OPEX Aggregator
// =============================================================================
//
// The aggregator validates a cost center table and enriches it with totals
// and variances, then rolls it up per cost center.
//
// DERIVED COLUMNS:
//   Total_OPEX         = Travel + Software + VendorSpend + OfficeExpense
//   Budget_vs_Actual   = Actuals  - Budget
//   Forecast_vs_Actual = Actuals  - Forecast
//   Budget_vs_Forecast = Forecast - Budget
//
// OWNERSHIP:
//   An Aggregator owns one clone of the table it was built from. Every
//   operation mutates that table in place and returns it, so chained calls
//   always see the full, current table.
//
// =============================================================================

package opex

import (
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/config"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/tableio"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
)

// =============================================================================
// COLUMN NAMES
// =============================================================================

// Input columns.
const (
	ColTravel        = "Travel"
	ColSoftware      = "Software"
	ColVendorSpend   = "VendorSpend"
	ColOfficeExpense = "OfficeExpense"
	ColBudget        = "Budget"
	ColForecast      = "Forecast"
	ColActuals       = "Actuals"
	ColCostCenter    = "CostCenter"
)

// Derived columns.
const (
	ColTotalOPEX        = "Total_OPEX"
	ColBudgetVsActual   = "Budget_vs_Actual"
	ColForecastVsActual = "Forecast_vs_Actual"
	ColBudgetVsForecast = "Budget_vs_Forecast"
)

var (
	// CategoryColumns are summed into Total_OPEX.
	CategoryColumns = []string{ColTravel, ColSoftware, ColVendorSpend, ColOfficeExpense}

	// VarianceInputColumns are the inputs of the variance measures.
	VarianceInputColumns = []string{ColBudget, ColForecast, ColActuals}

	// VarianceColumns are the derived variance measures.
	VarianceColumns = []string{ColBudgetVsActual, ColForecastVsActual, ColBudgetVsForecast}

	// SummaryColumns are summed per cost center when present.
	SummaryColumns = append(append([]string{}, VarianceInputColumns...), VarianceColumns...)
)

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator computes totals, variances and cost center rollups.
type Aggregator struct {
	table  *types.Table
	logger *slog.Logger
}

// New creates an aggregator over a clone of t.
//
// RETURNS:
//   - A ValidationError if t has no rows, or if any category or variance
//     input column is missing. All missing columns are reported together.
//     CostCenter is only required by SummarizeByCostCenter.
func New(t *types.Table, logger *slog.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := validation.RequireRows(t, "OPEX aggregator"); err != nil {
		return nil, err
	}

	required := append(append([]string{}, CategoryColumns...), VarianceInputColumns...)
	if err := validation.RequireColumns(t, required...); err != nil {
		return nil, err
	}
	if err := validation.RequireNumeric(t, required...); err != nil {
		return nil, err
	}

	return &Aggregator{
		table:  t.Clone(),
		logger: logger,
	}, nil
}

// NewFromFile loads a table from path and creates an aggregator over it.
//
// RETURNS:
//   - A NotFoundError if path does not exist.
//   - A ValidationError wrapping any read failure, or from New.
func NewFromFile(path string, settings config.CSVSettings, logger *slog.Logger) (*Aggregator, error) {
	t, err := tableio.Load(path, settings)
	if err != nil {
		return nil, err
	}
	return New(t, logger)
}

// Table returns the table owned by the aggregator.
func (a *Aggregator) Table() *types.Table {
	return a.table
}

// =============================================================================
// OPERATIONS
// =============================================================================

// CalculateTotalOPEX adds or recomputes Total_OPEX.
func (a *Aggregator) CalculateTotalOPEX() (*types.Table, error) {
	if err := validation.RequireEach(a.table, "calculate Total_OPEX", CategoryColumns...); err != nil {
		return nil, err
	}

	cols, err := a.numbers(CategoryColumns...)
	if err != nil {
		return nil, err
	}

	total := make([]float64, a.table.Len())
	for i := range total {
		total[i] = cols[0][i] + cols[1][i] + cols[2][i] + cols[3][i]
	}

	if err := a.table.SetNumbers(ColTotalOPEX, total); err != nil {
		return nil, err
	}

	a.logger.Debug("calculated total OPEX", slog.Int("rows", len(total)))
	return a.table, nil
}

// CalculateVariances adds or recomputes the three variance columns.
func (a *Aggregator) CalculateVariances() (*types.Table, error) {
	if err := validation.RequireEach(a.table, "calculate variances", VarianceInputColumns...); err != nil {
		return nil, err
	}

	cols, err := a.numbers(VarianceInputColumns...)
	if err != nil {
		return nil, err
	}
	budget, forecast, actuals := cols[0], cols[1], cols[2]

	n := a.table.Len()
	budgetVsActual := make([]float64, n)
	forecastVsActual := make([]float64, n)
	budgetVsForecast := make([]float64, n)
	for i := 0; i < n; i++ {
		budgetVsActual[i] = actuals[i] - budget[i]
		forecastVsActual[i] = actuals[i] - forecast[i]
		budgetVsForecast[i] = forecast[i] - budget[i]
	}

	if err := a.table.SetNumbers(ColBudgetVsActual, budgetVsActual); err != nil {
		return nil, err
	}
	if err := a.table.SetNumbers(ColForecastVsActual, forecastVsActual); err != nil {
		return nil, err
	}
	if err := a.table.SetNumbers(ColBudgetVsForecast, budgetVsForecast); err != nil {
		return nil, err
	}

	a.logger.Debug("calculated variances", slog.Int("rows", n))
	return a.table, nil
}

// EnsureVariances computes the variance columns only if any of them is
// missing. It is idempotent and is the one automatic repair the summary is
// allowed to make.
func (a *Aggregator) EnsureVariances() error {
	if len(a.table.Missing(VarianceColumns...)) == 0 {
		return nil
	}
	a.logger.Debug("variance columns missing, calculating before summary")
	_, err := a.CalculateVariances()
	return err
}

// SummarizeByCostCenter returns a new table with one row per distinct
// CostCenter, holding the sums of every present column of SummaryColumns.
// Rows are ordered by cost center: numerically when the column is numeric,
// lexically otherwise. Rows with a blank CostCenter are not summarized.
//
// RETURNS:
//   - A ValidationError if CostCenter is missing.
func (a *Aggregator) SummarizeByCostCenter() (*types.Table, error) {
	if err := validation.RequireEach(a.table, "summarize by cost center", ColCostCenter); err != nil {
		return nil, err
	}

	if err := a.EnsureVariances(); err != nil {
		return nil, err
	}

	var available []string
	for _, name := range SummaryColumns {
		if a.table.Has(name) {
			available = append(available, name)
		}
	}

	keys, err := a.table.Texts(ColCostCenter)
	if err != nil {
		return nil, err
	}
	values, err := a.numbers(available...)
	if err != nil {
		return nil, err
	}

	// Sums are accumulated in decimal; missing cells are skipped. Rows
	// without a cost center are left out of the rollup.
	sums := make(map[string][]decimal.Decimal)
	skipped := 0
	for row, key := range keys {
		if strings.TrimSpace(key) == "" {
			skipped++
			continue
		}
		acc, ok := sums[key]
		if !ok {
			acc = make([]decimal.Decimal, len(available))
			sums[key] = acc
		}
		for c := range available {
			v := values[c][row]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			acc[c] = acc[c].Add(decimal.NewFromFloat(v))
		}
	}
	if skipped > 0 {
		a.logger.Warn("rows without a cost center left out of summary",
			slog.Int("rows", skipped))
	}

	order := make([]string, 0, len(sums))
	for key := range sums {
		order = append(order, key)
	}

	summary := types.NewTable()
	if kind, _ := a.table.KindOf(ColCostCenter); kind == types.Number {
		centers := sortNumericKeys(order)
		if err := summary.SetNumbers(ColCostCenter, centers); err != nil {
			return nil, err
		}
	} else {
		sort.Strings(order)
		if err := summary.SetTexts(ColCostCenter, order); err != nil {
			return nil, err
		}
	}
	for c, name := range available {
		col := make([]float64, len(order))
		for i, key := range order {
			col[i] = sums[key][c].InexactFloat64()
		}
		if err := summary.SetNumbers(name, col); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("summarized by cost center",
		slog.Int("cost_centers", len(order)),
		slog.Int("columns", len(available)))
	return summary, nil
}

// ProcessedFrame runs the full enrichment: Total_OPEX, then variances.
func (a *Aggregator) ProcessedFrame() (*types.Table, error) {
	if _, err := a.CalculateTotalOPEX(); err != nil {
		return nil, err
	}
	if _, err := a.CalculateVariances(); err != nil {
		return nil, err
	}
	return a.table, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sortNumericKeys orders keys rendered from a numeric column by value, in
// place, and returns the values in that order.
func sortNumericKeys(keys []string) []float64 {
	values := make(map[string]float64, len(keys))
	for _, k := range keys {
		v, _ := strconv.ParseFloat(k, 64)
		values[k] = v
	}
	sort.Slice(keys, func(i, j int) bool {
		return values[keys[i]] < values[keys[j]]
	})

	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = values[k]
	}
	return out
}

// numbers fetches several numeric columns, failing with a ValidationError
// that names every non-numeric one.
func (a *Aggregator) numbers(names ...string) ([][]float64, error) {
	if err := validation.RequireNumeric(a.table, names...); err != nil {
		return nil, err
	}
	out := make([][]float64, len(names))
	for i, name := range names {
		col, err := a.table.Numbers(name)
		if err != nil {
			return nil, validation.WrapValidationError("cannot read column "+name, err)
		}
		out[i] = col
	}
	return out, nil
}
