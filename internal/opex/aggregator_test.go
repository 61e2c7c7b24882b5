package opex

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/config"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
)

type row struct {
	costCenter                       string
	travel, software, vendor, office float64
	budget, forecast, actuals        float64
}

func buildTable(t *testing.T, rows ...row) *types.Table {
	t.Helper()
	n := len(rows)
	cc := make([]string, n)
	cols := map[string][]float64{}
	for _, name := range []string{ColTravel, ColSoftware, ColVendorSpend, ColOfficeExpense, ColBudget, ColForecast, ColActuals} {
		cols[name] = make([]float64, n)
	}
	for i, r := range rows {
		cc[i] = r.costCenter
		cols[ColTravel][i] = r.travel
		cols[ColSoftware][i] = r.software
		cols[ColVendorSpend][i] = r.vendor
		cols[ColOfficeExpense][i] = r.office
		cols[ColBudget][i] = r.budget
		cols[ColForecast][i] = r.forecast
		cols[ColActuals][i] = r.actuals
	}

	tbl := types.NewTable()
	require.NoError(t, tbl.SetTexts(ColCostCenter, cc))
	for _, name := range []string{ColTravel, ColSoftware, ColVendorSpend, ColOfficeExpense, ColBudget, ColForecast, ColActuals} {
		require.NoError(t, tbl.SetNumbers(name, cols[name]))
	}
	return tbl
}

func numbers(t *testing.T, tbl *types.Table, name string) []float64 {
	t.Helper()
	v, err := tbl.Numbers(name)
	require.NoError(t, err)
	return v
}

func TestProcessedFrame_SingleRow(t *testing.T) {
	agg, err := New(buildTable(t, row{"CC1", 10, 20, 5, 5, 100, 90, 80}), nil)
	require.NoError(t, err)

	out, err := agg.ProcessedFrame()
	require.NoError(t, err)

	assert.Equal(t, []float64{40}, numbers(t, out, ColTotalOPEX))
	assert.Equal(t, []float64{-20}, numbers(t, out, ColBudgetVsActual))
	assert.Equal(t, []float64{-10}, numbers(t, out, ColForecastVsActual))
	assert.Equal(t, []float64{-10}, numbers(t, out, ColBudgetVsForecast))
	assert.Same(t, agg.Table(), out)
}

func TestCalculateTotalOPEX_Idempotent(t *testing.T) {
	agg, err := New(buildTable(t,
		row{"CC1", 1, 2, 3, 4, 0, 0, 0},
		row{"CC2", 0.1, 0.2, 0, 0, 0, 0, 0},
	), nil)
	require.NoError(t, err)

	first, err := agg.CalculateTotalOPEX()
	require.NoError(t, err)
	once := numbers(t, first, ColTotalOPEX)
	cols := first.Columns()

	second, err := agg.CalculateTotalOPEX()
	require.NoError(t, err)
	assert.Equal(t, once, numbers(t, second, ColTotalOPEX))
	assert.Equal(t, cols, second.Columns())
	assert.InDelta(t, 0.3, once[1], 1e-9)
}

func TestNew_ReportsEveryMissingColumn(t *testing.T) {
	tbl := types.NewTable()
	require.NoError(t, tbl.SetTexts(ColCostCenter, []string{"CC1"}))
	require.NoError(t, tbl.SetNumbers(ColBudget, []float64{1}))

	_, err := New(tbl, nil)
	require.Error(t, err)

	var ve *validation.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t,
		[]string{ColTravel, ColSoftware, ColVendorSpend, ColOfficeExpense, ColForecast, ColActuals},
		ve.Fields)
	assert.Contains(t, err.Error(), "available columns: [CostCenter, Budget]")
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name  string
		table func(t *testing.T) *types.Table
		want  string
	}{
		{
			name:  "nil table",
			table: func(t *testing.T) *types.Table { return nil },
			want:  "table is empty",
		},
		{
			name:  "no rows",
			table: func(t *testing.T) *types.Table { return types.NewTable() },
			want:  "table is empty",
		},
		{
			name: "text category",
			table: func(t *testing.T) *types.Table {
				tbl := buildTable(t, row{"CC1", 1, 1, 1, 1, 1, 1, 1})
				require.NoError(t, tbl.SetTexts(ColTravel, []string{"n/a"}))
				return tbl
			},
			want: "columns must be numeric: [Travel]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.table(t), nil)
			require.Error(t, err)
			assert.True(t, validation.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNew_ClonesInput(t *testing.T) {
	src := buildTable(t, row{"CC1", 10, 20, 5, 5, 100, 90, 80})
	agg, err := New(src, nil)
	require.NoError(t, err)

	_, err = agg.ProcessedFrame()
	require.NoError(t, err)
	assert.False(t, src.Has(ColTotalOPEX))
}

func TestCalculateTotalOPEX_MissingCategory(t *testing.T) {
	agg, err := New(buildTable(t, row{"CC1", 10, 20, 5, 5, 100, 90, 80}), nil)
	require.NoError(t, err)

	// Drop Travel after construction to exercise the per-operation check.
	stripped := types.NewTable()
	for _, name := range agg.table.Columns() {
		if name == ColTravel {
			continue
		}
		if kind, _ := agg.table.KindOf(name); kind == types.Number {
			require.NoError(t, stripped.SetNumbers(name, numbers(t, agg.table, name)))
		} else {
			texts, err := agg.table.Texts(name)
			require.NoError(t, err)
			require.NoError(t, stripped.SetTexts(name, texts))
		}
	}
	agg.table = stripped

	_, err = agg.CalculateTotalOPEX()
	require.Error(t, err)
	assert.True(t, validation.IsValidation(err))
	assert.Equal(t, "column 'Travel' not found, cannot calculate Total_OPEX", err.Error())
}

func TestSummarizeByCostCenter(t *testing.T) {
	agg, err := New(buildTable(t,
		row{"CC2", 0, 0, 0, 0, 50, 40, 45},
		row{"CC1", 0, 0, 0, 0, 100, 90, 80},
		row{"CC2", 0, 0, 0, 0, 25, 30, 35},
	), nil)
	require.NoError(t, err)

	// Variances are not computed yet; the summary derives them itself.
	summary, err := agg.SummarizeByCostCenter()
	require.NoError(t, err)

	assert.Equal(t, []string{
		ColCostCenter, ColBudget, ColForecast, ColActuals,
		ColBudgetVsActual, ColForecastVsActual, ColBudgetVsForecast,
	}, summary.Columns())

	cc, err := summary.Texts(ColCostCenter)
	require.NoError(t, err)
	assert.Equal(t, []string{"CC1", "CC2"}, cc)

	assert.Equal(t, []float64{100, 75}, numbers(t, summary, ColBudget))
	assert.Equal(t, []float64{80, 80}, numbers(t, summary, ColActuals))
	assert.Equal(t, []float64{-20, 5}, numbers(t, summary, ColBudgetVsActual))
	assert.Equal(t, []float64{-10, 10}, numbers(t, summary, ColForecastVsActual))
	assert.Equal(t, []float64{-10, -5}, numbers(t, summary, ColBudgetVsForecast))

	assert.True(t, agg.Table().Has(ColBudgetVsActual))
	assert.False(t, agg.Table().Has(ColTotalOPEX))
}

func TestSummarizeByCostCenter_DecimalSumsAndMissingCells(t *testing.T) {
	agg, err := New(buildTable(t,
		row{"CC1", 0, 0, 0, 0, 0.1, 0, 0},
		row{"CC1", 0, 0, 0, 0, 0.2, 0, 0},
		row{"CC1", 0, 0, 0, 0, math.NaN(), 0, 0},
	), nil)
	require.NoError(t, err)

	summary, err := agg.SummarizeByCostCenter()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3}, numbers(t, summary, ColBudget))
}

func TestSummarizeByCostCenter_MissingCostCenter(t *testing.T) {
	tbl := buildTable(t, row{"CC1", 10, 20, 5, 5, 100, 90, 80})
	noCC := types.NewTable()
	for _, name := range tbl.Columns() {
		if name == ColCostCenter {
			continue
		}
		require.NoError(t, noCC.SetNumbers(name, numbers(t, tbl, name)))
	}

	agg, err := New(noCC, nil)
	require.NoError(t, err)

	_, err = agg.SummarizeByCostCenter()
	require.Error(t, err)
	assert.True(t, validation.IsValidation(err))
	assert.Contains(t, err.Error(), "CostCenter")
}

func TestSummarizeByCostCenter_SkipsBlankCostCenter(t *testing.T) {
	agg, err := New(buildTable(t,
		row{"CC1", 0, 0, 0, 0, 100, 90, 80},
		row{"", 0, 0, 0, 0, 50, 40, 45},
		row{"  ", 0, 0, 0, 0, 5, 5, 5},
	), nil)
	require.NoError(t, err)

	summary, err := agg.SummarizeByCostCenter()
	require.NoError(t, err)

	cc, err := summary.Texts(ColCostCenter)
	require.NoError(t, err)
	assert.Equal(t, []string{"CC1"}, cc)
	assert.Equal(t, []float64{100}, numbers(t, summary, ColBudget))
}

func TestSummarizeByCostCenter_NumericCostCenterOrder(t *testing.T) {
	tbl := buildTable(t,
		row{"", 0, 0, 0, 0, 1, 0, 0},
		row{"", 0, 0, 0, 0, 2, 0, 0},
		row{"", 0, 0, 0, 0, 3, 0, 0},
		row{"", 0, 0, 0, 0, 4, 0, 0},
	)
	require.NoError(t, tbl.SetNumbers(ColCostCenter, []float64{10, 9, 100, math.NaN()}))

	agg, err := New(tbl, nil)
	require.NoError(t, err)

	summary, err := agg.SummarizeByCostCenter()
	require.NoError(t, err)

	kind, _ := summary.KindOf(ColCostCenter)
	assert.Equal(t, types.Number, kind)
	assert.Equal(t, []float64{9, 10, 100}, numbers(t, summary, ColCostCenter))
	assert.Equal(t, []float64{2, 1, 3}, numbers(t, summary, ColBudget))

	cc, err := summary.Texts(ColCostCenter)
	require.NoError(t, err)
	assert.Equal(t, []string{"9", "10", "100"}, cc)
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opex.csv")
	csv := "CostCenter,Month,Travel,Software,VendorSpend,OfficeExpense,Budget,Forecast,Actuals\n" +
		"CC1,2024-01,10,20,5,5,100,90,80\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	agg, err := NewFromFile(path, config.CSVSettings{Delimiter: ","}, nil)
	require.NoError(t, err)

	out, err := agg.ProcessedFrame()
	require.NoError(t, err)
	assert.Equal(t, []float64{40}, numbers(t, out, ColTotalOPEX))

	_, err = NewFromFile(filepath.Join(dir, "missing.csv"), config.CSVSettings{Delimiter: ","}, nil)
	assert.True(t, validation.IsNotFound(err))
}
