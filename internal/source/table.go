package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"reelshelf/internal/services"
)

// Table is a fully materialized source.
type Table struct {
	Name    string
	Header  Header
	Records []Record
	// Malformed counts input lines the reader could not parse and skipped.
	Malformed int
}

// Bind resolves schema against the table header.
func (t *Table) Bind(schema Schema) Binding {
	return t.Header.Bind(schema)
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Format is a supported file layout.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// FormatFor picks a reader by file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "source", "detect format", fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil)
	}
}

// ReadFile materializes a delimited or spreadsheet file.
func ReadFile(ctx context.Context, path string) (*Table, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return ReadSpreadsheet(path)
	default:
		reader, err := OpenDelimited(path, format)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return reader.ReadAll(ctx)
	}
}
