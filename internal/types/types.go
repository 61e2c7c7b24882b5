// =============================================================================
// OPEX Variance Pipeline - Shared Types
// =============================================================================
//
// This package contains the in-memory table shared by every stage of the
// pipeline. Types defined here are used by:
//   - csvparser / xlsxparser (loading)
//   - opex / forecast        (computation)
//   - tablewriter            (export)
//
// A Table is an ordered list of named columns of equal length. Each column is
// uniformly typed: either numbers (float64) or text (string). Row order is
// stable across every operation that does not explicitly regroup rows.
//
// =============================================================================

package types

import (
	"fmt"
	"math"
	"strconv"
)

// =============================================================================
// COLUMN TYPES
// =============================================================================

// Kind is the value type held by a column.
type Kind int

const (
	// Number columns hold float64 values. Missing cells are NaN.
	Number Kind = iota

	// Text columns hold string values.
	Text
)

// String returns a readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is a single named, uniformly typed column.
type Column struct {
	// Name is the column header. Names are case-sensitive.
	Name string

	// Kind tells which of the value slices is populated.
	Kind Kind

	numbers []float64
	texts   []string
}

// =============================================================================
// TABLE
// =============================================================================

// Table is an ordered, column-oriented dataset.
type Table struct {
	order   []string
	columns map[string]*Column
	rows    int
}

// NewTable creates an empty table with no columns and no rows.
func NewTable() *Table {
	return &Table{
		columns: make(map[string]*Column),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Missing returns every name that is not a column of the table, in the order
// the names were given.
func (t *Table) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Column returns the named column, or nil if it does not exist.
func (t *Table) Column(name string) *Column {
	return t.columns[name]
}

// KindOf returns the kind of the named column.
func (t *Table) KindOf(name string) (Kind, bool) {
	col, ok := t.columns[name]
	if !ok {
		return 0, false
	}
	return col.Kind, true
}

// =============================================================================
// COLUMN MUTATION
// =============================================================================

// SetNumbers adds a numeric column, or overwrites it in place if a column with
// that name already exists. The first column added fixes the row count.
func (t *Table) SetNumbers(name string, values []float64) error {
	if err := t.checkLength(name, len(values)); err != nil {
		return err
	}
	data := make([]float64, len(values))
	copy(data, values)
	t.put(&Column{Name: name, Kind: Number, numbers: data}, len(values))
	return nil
}

// SetTexts adds a text column, or overwrites it in place if a column with
// that name already exists.
func (t *Table) SetTexts(name string, values []string) error {
	if err := t.checkLength(name, len(values)); err != nil {
		return err
	}
	data := make([]string, len(values))
	copy(data, values)
	t.put(&Column{Name: name, Kind: Text, texts: data}, len(values))
	return nil
}

// checkLength rejects columns whose length disagrees with the table.
// A table with a single column may have that column replaced by one of any
// length.
func (t *Table) checkLength(name string, n int) error {
	if len(t.order) == 0 {
		return nil
	}
	if len(t.order) == 1 && t.order[0] == name {
		return nil
	}
	if n != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, n, t.rows)
	}
	return nil
}

func (t *Table) put(col *Column, n int) {
	if _, exists := t.columns[col.Name]; !exists {
		t.order = append(t.order, col.Name)
	}
	t.columns[col.Name] = col
	t.rows = n
}

// =============================================================================
// COLUMN ACCESS
// =============================================================================

// Numbers returns a copy of a numeric column.
func (t *Table) Numbers(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if col.Kind != Number {
		return nil, fmt.Errorf("column %q is %s, not numeric", name, col.Kind)
	}
	out := make([]float64, len(col.numbers))
	copy(out, col.numbers)
	return out, nil
}

// Texts returns the string form of every value of a column. Numeric values
// are rendered with FormatNumber.
func (t *Table) Texts(name string) ([]string, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]string, t.rows)
	for i := range out {
		out[i] = col.cell(i)
	}
	return out, nil
}

// Cell returns the string form of one value. Unknown columns yield "".
func (t *Table) Cell(row int, name string) string {
	col, ok := t.columns[name]
	if !ok || row < 0 || row >= t.rows {
		return ""
	}
	return col.cell(row)
}

// Row returns the string form of one row in column order.
func (t *Table) Row(row int) []string {
	out := make([]string, len(t.order))
	for i, name := range t.order {
		out[i] = t.Cell(row, name)
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := NewTable()
	c.rows = t.rows
	for _, name := range t.order {
		src := t.columns[name]
		dst := &Column{Name: src.Name, Kind: src.Kind}
		if src.numbers != nil {
			dst.numbers = append([]float64(nil), src.numbers...)
		}
		if src.texts != nil {
			dst.texts = append([]string(nil), src.texts...)
		}
		c.order = append(c.order, name)
		c.columns[name] = dst
	}
	return c
}

// Number returns the i-th value of a numeric column.
func (c *Column) Number(i int) float64 {
	return c.numbers[i]
}

func (c *Column) cell(i int) string {
	if c.Kind == Number {
		return FormatNumber(c.numbers[i])
	}
	return c.texts[i]
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatNumber renders a value the way it is written to exported files.
// NaN (a missing cell) is rendered as an empty string.
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
