// =============================================================================
// OPEX Variance Pipeline - Table Validation
// =============================================================================
//
// Structural checks shared by the aggregator and the forecast transformer.
//
// VALIDATION STRATEGY:
//   - Checks that look at several columns together report every missing
//     column in one error, plus the columns that are available.
//   - Checks made one column at a time (re-checks inside an operation)
//     report the first missing column and the operation they guard.
//   - Row-level problems are collected and reported together, never one
//     at a time.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
)

// maxReportedRows caps how many offending rows are spelled out in a message.
const maxReportedRows = 10

// RequireRows fails if the table is nil or has no rows.
//
// PARAMETERS:
//   - t: The table to check.
//   - owner: What is being constructed, used in the message.
func RequireRows(t *types.Table, owner string) error {
	if t == nil || t.Len() == 0 {
		return NewValidationError(fmt.Sprintf("table is empty, cannot initialize %s", owner))
	}
	return nil
}

// RequireColumns fails if any of the named columns is absent. The error
// lists every missing column and every available column.
func RequireColumns(t *types.Table, names ...string) error {
	missing := t.Missing(names...)
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{
		Message: fmt.Sprintf("missing required columns: [%s]. available columns: [%s]",
			strings.Join(missing, ", "),
			strings.Join(t.Columns(), ", ")),
		Fields: missing,
	}
}

// RequireEach checks columns one at a time and fails on the first absent one,
// naming the operation that needed it.
//
// EXAMPLE:
//   RequireEach(t, "calculate Total_OPEX", "Travel", "Software")
//   -> column 'Travel' not found, cannot calculate Total_OPEX
func RequireEach(t *types.Table, op string, names ...string) error {
	for _, name := range names {
		if !t.Has(name) {
			return NewValidationError(fmt.Sprintf("column '%s' not found, cannot %s", name, op), name)
		}
	}
	return nil
}

// RequireNumeric fails if any of the named columns exists but is not numeric.
// All offending columns are reported together.
func RequireNumeric(t *types.Table, names ...string) error {
	var bad []string
	for _, name := range names {
		if kind, ok := t.KindOf(name); ok && kind != types.Number {
			bad = append(bad, name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &ValidationError{
		Message: fmt.Sprintf("columns must be numeric: [%s]", strings.Join(bad, ", ")),
		Fields:  bad,
	}
}

// =============================================================================
// ROW-LEVEL ERRORS
// =============================================================================

// RowIssue describes one offending cell.
type RowIssue struct {
	// Row is the 1-based data row number (the header is not counted).
	Row int

	// Value is the offending cell value.
	Value string
}

// RowIssues builds a validation error for a column with bad cells. At most
// maxReportedRows rows are spelled out; the total count is always given.
func RowIssues(column, problem string, issues []RowIssue) error {
	if len(issues) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "column '%s': %d row(s) %s:", column, len(issues), problem)
	for i, issue := range issues {
		if i == maxReportedRows {
			fmt.Fprintf(&b, " ... and %d more", len(issues)-maxReportedRows)
			break
		}
		fmt.Fprintf(&b, " row %d (%q)", issue.Row, issue.Value)
		if i < len(issues)-1 && i < maxReportedRows-1 {
			b.WriteString(",")
		}
	}

	return &ValidationError{Message: b.String(), Fields: []string{column}}
}
