// =============================================================================
// OPEX Variance Pipeline - XLSX Parser
// =============================================================================
//
// Finance teams often keep the cost center extract as an Excel workbook.
// This module reads one sheet of an .xlsx file into a types.Table using the
// same rules as the CSV parser:
//
//   | Row 1  | CostCenter | Month   | Travel | Software | ... |   <- header
//   | Row 2+ | CC1        | 2024-01 | 10     | 20       | ... |   <- data
//
// Cell values are read raw, without number formats applied, so a styled
// amount such as "1,234.50" loads as 1234.5. Columns are then typed by
// types.FromRecords. Date-formatted cells load as Excel serial numbers;
// Month must be stored as text.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads the first sheet of an XLSX workbook.
func Parse(path string) (*types.Table, error) {
	return ParseSheet(path, "")
}

// ParseSheet reads a named sheet of an XLSX workbook.
//
// PARAMETERS:
//   - path: The path to the workbook.
//   - sheetName: The sheet to read. Empty means the first sheet.
//
// RETURNS:
//   - The parsed table.
//   - An error if the workbook cannot be opened, the sheet does not exist
//     or has no header row.
func ParseSheet(path, sheetName string) (*types.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	}

	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheetName)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return fromRows(rows)
}

// fromRows turns raw sheet rows into a table.
func fromRows(rows [][]string) (*types.Table, error) {
	// Skip leading blank rows so the first populated row is the header.
	start := 0
	for start < len(rows) && isRowEmpty(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, fmt.Errorf("sheet is empty")
	}

	header := rows[start]
	headers := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		headers[i] = h
	}

	var records [][]string
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}
		if len(row) > len(headers) {
			// excelize trims trailing blanks only, so extra non-blank cells
			// beyond the header are real data with no column.
			if !isRowEmpty(row[len(headers):]) {
				return nil, fmt.Errorf("row %d has data beyond the header columns", i+1)
			}
			row = row[:len(headers)]
		}
		records = append(records, row)
	}

	table, err := types.FromRecords(headers, records)
	if err != nil {
		return nil, fmt.Errorf("failed to build table: %w", err)
	}
	return table, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
