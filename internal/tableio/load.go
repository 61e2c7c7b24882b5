// Package tableio loads tables from files, choosing the parser by extension
// and classifying failures into the pipeline's error kinds.
package tableio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/opex-variance-pipeline/internal/config"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/csvparser"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/types"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/validation"
	"github.com/ginjaninja78/opex-variance-pipeline/internal/xlsxparser"
)

// Load reads a table from path. Files ending in .xlsx are read as workbooks,
// everything else as delimited text.
//
// A missing path yields a *validation.NotFoundError. Any other read failure
// (corrupt format, permissions) yields a *validation.ValidationError that
// keeps the original cause.
func Load(path string, settings config.CSVSettings) (*types.Table, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, validation.NewNotFoundError(path, "")
	}
	if err == nil && info.IsDir() {
		return nil, validation.NewValidationError("error reading data file " + path + ": is a directory")
	}

	var table *types.Table
	if IsWorkbook(path) {
		table, err = xlsxparser.Parse(path)
	} else {
		table, err = csvparser.Parse(path, settings)
	}
	if err != nil {
		return nil, validation.WrapValidationError("error reading data file "+path, err)
	}

	return table, nil
}

// IsWorkbook reports whether path names an Excel workbook.
func IsWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}
