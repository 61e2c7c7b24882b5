package forecast

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
)

func buildTable(t *testing.T, centers, months []string, actuals []float64) *types.Table {
	t.Helper()
	tbl := types.NewTable()
	require.NoError(t, tbl.SetTexts(ColCostCenter, centers))
	require.NoError(t, tbl.SetTexts(ColMonth, months))
	require.NoError(t, tbl.SetNumbers(ColActuals, actuals))
	return tbl
}

func numbers(t *testing.T, tbl *types.Table, name string) []float64 {
	t.Helper()
	v, err := tbl.Numbers(name)
	require.NoError(t, err)
	return v
}

func TestAddRunRateForecast_LatestValuePerCostCenter(t *testing.T) {
	tr, err := New(buildTable(t,
		[]string{"A", "A", "B"},
		[]string{"2024-01", "2024-03", "2024-02"},
		[]float64{100, 300, 50},
	), Options{}, nil)
	require.NoError(t, err)

	out, err := tr.AddRunRateForecast("")
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 3, 2}, numbers(t, out, ColMonthNum))
	assert.Equal(t, []float64{300, 300, 50}, numbers(t, out, ColLatestValue))
	assert.Equal(t, []float64{11, 9, 10}, numbers(t, out, ColRemainingMonths))
	assert.Equal(t, []float64{3300, 2700, 500}, numbers(t, out, ColRunRate))

	assert.Equal(t, []string{
		ColCostCenter, ColMonth, ColActuals,
		ColMonthNum, ColLatestValue, ColRemainingMonths, ColRunRate,
	}, out.Columns())
}

func TestAddRunRateForecast_December(t *testing.T) {
	tr, err := New(buildTable(t, []string{"A"}, []string{"2024-12"}, []float64{999}), Options{}, nil)
	require.NoError(t, err)

	out, err := tr.AddRunRateForecast(DefaultMetric)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, numbers(t, out, ColRemainingMonths))
	assert.Equal(t, []float64{0}, numbers(t, out, ColRunRate))
}

func TestAddRunRateForecast_TiesGoToLastRow(t *testing.T) {
	tr, err := New(buildTable(t,
		[]string{"A", "A"},
		[]string{"2024-05", "2024-05"},
		[]float64{10, 20},
	), Options{}, nil)
	require.NoError(t, err)

	out, err := tr.AddRunRateForecast("")
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 20}, numbers(t, out, ColLatestValue))
}

func TestAddRunRateForecast_MissingLatestFallsBackToOwnValue(t *testing.T) {
	tr, err := New(buildTable(t,
		[]string{"A", "A"},
		[]string{"2024-01", "2024-02"},
		[]float64{100, math.NaN()},
	), Options{}, nil)
	require.NoError(t, err)

	out, err := tr.AddRunRateForecast("")
	require.NoError(t, err)

	latest := numbers(t, out, ColLatestValue)
	assert.Equal(t, 100.0, latest[0])
	assert.True(t, math.IsNaN(latest[1]))
}

func TestAddRunRateForecast_BlankCostCenterKeepsOwnValue(t *testing.T) {
	tr, err := New(buildTable(t,
		[]string{"", "A", "", " "},
		[]string{"2024-01", "2024-02", "2024-03", "2024-04"},
		[]float64{10, 20, 30, 40},
	), Options{}, nil)
	require.NoError(t, err)

	out, err := tr.AddRunRateForecast("")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30, 40}, numbers(t, out, ColLatestValue))
	assert.Equal(t, []float64{110, 200, 270, 320}, numbers(t, out, ColRunRate))
}

func TestAddRunRateForecast_CustomMetric(t *testing.T) {
	tbl := buildTable(t, []string{"A", "A"}, []string{"2024-01", "2024-06"}, []float64{1, 2})
	require.NoError(t, tbl.SetNumbers("Budget", []float64{10, 20}))

	tr, err := New(tbl, Options{}, nil)
	require.NoError(t, err)

	out, err := tr.AddRunRateForecast("Budget")
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 20}, numbers(t, out, ColLatestValue))
	assert.Equal(t, []float64{220, 120}, numbers(t, out, ColRunRate))
}

func TestAddRunRateForecast_MissingColumns(t *testing.T) {
	tbl := types.NewTable()
	require.NoError(t, tbl.SetNumbers(ColActuals, []float64{1}))

	tr, err := New(tbl, Options{}, nil)
	require.NoError(t, err)

	_, err = tr.AddRunRateForecast("Spend")
	require.Error(t, err)

	var ve *validation.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"Spend", ColMonth, ColCostCenter}, ve.Fields)
}

func TestAddRunRateForecast_NonNumericMetric(t *testing.T) {
	tbl := buildTable(t, []string{"A"}, []string{"2024-01"}, []float64{1})
	require.NoError(t, tbl.SetTexts("Owner", []string{"finance"}))

	tr, err := New(tbl, Options{}, nil)
	require.NoError(t, err)

	_, err = tr.AddRunRateForecast("Owner")
	assert.True(t, validation.IsValidation(err))
}

func TestAddRunRateForecast_MalformedMonths(t *testing.T) {
	months := []string{"2024-01", "2024/03", "Jan"}

	t.Run("strict", func(t *testing.T) {
		tr, err := New(buildTable(t, []string{"A", "A", "A"}, months, []float64{1, 2, 3}), Options{}, nil)
		require.NoError(t, err)

		_, err = tr.AddRunRateForecast("")
		require.Error(t, err)
		assert.True(t, validation.IsValidation(err))
		assert.Equal(t,
			`column 'Month': 2 row(s) are not YYYY-MM: row 2 ("2024/03"), row 3 ("Jan")`,
			err.Error())
	})

	t.Run("fallback", func(t *testing.T) {
		tr, err := New(buildTable(t,
			[]string{"A", "A"},
			[]string{"2024-01", "2024/03/15"},
			[]float64{1, 2},
		), Options{AllowMonthFallback: true}, nil)
		require.NoError(t, err)

		out, err := tr.AddRunRateForecast("")
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 3}, numbers(t, out, ColMonthNum))
	})

	t.Run("month not zero-padded", func(t *testing.T) {
		tr, err := New(buildTable(t, []string{"A"}, []string{"2024-1"}, []float64{1}), Options{}, nil)
		require.NoError(t, err)

		_, err = tr.AddRunRateForecast("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `row 1 ("2024-1")`)

		tr, err = New(buildTable(t, []string{"A"}, []string{"2024-1"}, []float64{1}), Options{AllowMonthFallback: true}, nil)
		require.NoError(t, err)
		out, err := tr.AddRunRateForecast("")
		require.NoError(t, err)
		assert.Equal(t, []float64{1}, numbers(t, out, ColMonthNum))
	})

	t.Run("fallback cannot read offsets", func(t *testing.T) {
		tr, err := New(buildTable(t, []string{"A", "A", "A"}, months, []float64{1, 2, 3}), Options{AllowMonthFallback: true}, nil)
		require.NoError(t, err)

		_, err = tr.AddRunRateForecast("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `row 3 ("Jan")`)
	})
}

func TestAddSimpleGrowthForecast(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want []float64
	}{
		{"zero", 0, []float64{100, 250}},
		{"default", DefaultGrowthRate, []float64{102, 255}},
		{"decline", -0.5, []float64{50, 125}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(buildTable(t, []string{"A", "B"}, []string{"2024-01", "2024-01"}, []float64{100, 250}), Options{}, nil)
			require.NoError(t, err)

			out, err := tr.AddSimpleGrowthForecast(tt.rate)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, numbers(t, out, ColGrowthForecast), 1e-9)
		})
	}
}

func TestAddSimpleGrowthForecast_Errors(t *testing.T) {
	tr, err := New(buildTable(t, []string{"A"}, []string{"2024-01"}, []float64{1}), Options{}, nil)
	require.NoError(t, err)

	for _, rate := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := tr.AddSimpleGrowthForecast(rate)
		assert.True(t, validation.IsValidation(err), "rate %v", rate)
	}

	noActuals := types.NewTable()
	require.NoError(t, noActuals.SetTexts(ColCostCenter, []string{"A"}))
	tr, err = New(noActuals, Options{}, nil)
	require.NoError(t, err)

	_, err = tr.AddSimpleGrowthForecast(0.02)
	require.Error(t, err)
	assert.Equal(t, "column 'Actuals' not found, cannot calculate growth forecast", err.Error())
}

func TestNew_Empty(t *testing.T) {
	_, err := New(types.NewTable(), Options{}, nil)
	assert.True(t, validation.IsValidation(err))
}

func TestTransformer_DoesNotTouchInput(t *testing.T) {
	src := buildTable(t, []string{"A"}, []string{"2024-01"}, []float64{1})
	tr, err := New(src, Options{}, nil)
	require.NoError(t, err)

	_, err = tr.AddRunRateForecast("")
	require.NoError(t, err)
	_, err = tr.AddSimpleGrowthForecast(0.1)
	require.NoError(t, err)

	assert.Equal(t, []string{ColCostCenter, ColMonth, ColActuals}, src.Columns())
	assert.Len(t, tr.Table().Columns(), 8)
}
