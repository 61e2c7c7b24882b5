// =============================================================================
// OPEX Variance Pipeline - Table Writers
// =============================================================================
//
// This module serialises tables for downstream dashboards:
//   - WriteCSV:  delimited text, header row, optional UTF-8 BOM for Excel
//   - WriteXLSX: one workbook, one sheet per table, numbers kept numeric
//
// Writers only ever see an io.Writer. Creating, staging and renaming files
// is the caller's job (see pkg/utils.Staging), so a failed write never
// leaves a half-written destination behind.
//
// =============================================================================

package tablewriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/config"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
)

// =============================================================================
// CSV
// =============================================================================

// WriteCSV writes the table as delimited text.
//
// PARAMETERS:
//   - w: The destination.
//   - t: The table to write. Numbers are rendered by types.FormatNumber.
//   - settings: Delimiter and BOM settings.
//
// RETURNS:
//   - An error if the settings are invalid or writing fails.
func WriteCSV(w io.Writer, t *types.Table, settings config.CSVSettings) error {
	comma, err := settings.Comma()
	if err != nil {
		return err
	}

	if settings.WriteBOM {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	writer.Comma = comma

	if err := writer.Write(t.Columns()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i := 0; i < t.Len(); i++ {
		if err := writer.Write(t.Row(i)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// =============================================================================
// XLSX
// =============================================================================

// Sheet is one named table in a workbook.
type Sheet struct {
	Name  string
	Table *types.Table
}

// WriteXLSX writes every sheet into one workbook. Sheets keep the given
// order; the default "Sheet1" is replaced by the first sheet.
func WriteXLSX(w io.Writer, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", sheet.Name, err)
		}

		if err := writeSheet(f, sheet, headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// writeSheet fills one sheet: a bold header row, then one row per record.
func writeSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	columns := sheet.Table.Columns()
	if len(columns) == 0 {
		return nil
	}

	header := make([]interface{}, len(columns))
	for i, name := range columns {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %q: %w", sheet.Name, err)
	}

	lastHeader, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet.Name, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %q: %w", sheet.Name, err)
	}

	for r := 0; r < sheet.Table.Len(); r++ {
		row := make([]interface{}, len(columns))
		for c, name := range columns {
			row[c] = cellValue(sheet.Table, r, name)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet.Name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", r+1, sheet.Name, err)
		}
	}

	return nil
}

// cellValue keeps numbers numeric so dashboard tools can aggregate them.
// Missing numbers become empty cells.
func cellValue(t *types.Table, row int, name string) interface{} {
	col := t.Column(name)
	if col != nil && col.Kind == types.Number {
		v := col.Number(row)
		if math.IsNaN(v) {
			return nil
		}
		return v
	}
	return t.Cell(row, name)
}
