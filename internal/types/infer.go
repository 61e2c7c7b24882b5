package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FromRecords builds a table from a header row and string records, inferring
// each column's kind. A column is numeric when every non-empty cell parses as
// a float and at least one cell is non-empty; empty cells of a numeric column
// become NaN. Every other column is text.
//
// Records shorter than the header are padded with empty cells; extra cells
// are ignored.
func FromRecords(headers []string, records [][]string) (*Table, error) {
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
	}

	t := NewTable()
	for colIndex, name := range headers {
		cells := make([]string, len(records))
		for i, record := range records {
			if colIndex < len(record) {
				cells[i] = strings.TrimSpace(record[colIndex])
			}
		}

		if numbers, ok := parseNumbers(cells); ok {
			if err := t.SetNumbers(name, numbers); err != nil {
				return nil, err
			}
			continue
		}
		if err := t.SetTexts(name, cells); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// parseNumbers converts a column of cells to floats, reporting false as soon
// as one non-empty cell is not a number.
func parseNumbers(cells []string) ([]float64, bool) {
	out := make([]float64, len(cells))
	nonEmpty := 0
	for i, cell := range cells {
		if cell == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
		nonEmpty++
	}
	return out, nonEmpty > 0
}
