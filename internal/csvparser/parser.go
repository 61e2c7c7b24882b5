// =============================================================================
// OPEX Variance Pipeline - CSV Parser Module
// =============================================================================
//
// This module reads delimited text files into a types.Table. It handles:
//   - Configurable delimiters (comma, pipe, tab, semicolon)
//   - A UTF-8 byte order mark written by Excel
//   - Blank lines between records
//   - Short records (padded with empty cells)
//
// Records with more cells than the header row are rejected: silently
// dropping cells would shift values into the wrong columns.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/config"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
)

// utf8BOM is stripped from the start of every input.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns it as a table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV settings from the configuration.
//
// RETURNS:
//   - The parsed table. A file with only a header row yields a table with
//     columns and zero rows.
//   - An error if the file cannot be opened or is not valid CSV.
func Parse(filePath string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(file, settings)
}

// ParseReader reads CSV data from r.
func ParseReader(r io.Reader, settings config.CSVSettings) (*types.Table, error) {
	reader := bufio.NewReader(r)
	if head, err := reader.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := reader.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("failed to skip byte order mark: %w", err)
		}
	}

	csvReader := csv.NewReader(reader)
	if err := configureReader(csvReader, settings); err != nil {
		return nil, err
	}

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers := cleanHeaders(allRows[0])

	dataRows, err := extractDataRows(allRows[1:], len(headers))
	if err != nil {
		return nil, err
	}

	table, err := types.FromRecords(headers, dataRows)
	if err != nil {
		return nil, fmt.Errorf("failed to build table: %w", err)
	}

	return table, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) error {
	comma, err := settings.Comma()
	if err != nil {
		return err
	}
	reader.Comma = comma

	// Record lengths are checked against the header in extractDataRows.
	reader.FieldsPerRecord = -1

	reader.TrimLeadingSpace = true
	return nil
}

// cleanHeaders trims header names and names blank headers by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Unnamed: %d", i)
		}
		cleaned[i] = header
	}

	return cleaned
}

// extractDataRows drops blank records and rejects over-long ones.
//
// PARAMETERS:
//   - records: Every record after the header row.
//   - width: The number of header columns.
//
// RETURNS:
//   - The non-blank records.
//   - An error naming the first record with too many cells.
func extractDataRows(records [][]string, width int) ([][]string, error) {
	dataRows := make([][]string, 0, len(records))

	for i, record := range records {
		if isRowEmpty(record) {
			continue
		}
		if len(record) > width {
			return nil, fmt.Errorf("data record %d has %d fields, header has %d", i+1, len(record), width)
		}
		dataRows = append(dataRows, record)
	}

	return dataRows, nil
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
