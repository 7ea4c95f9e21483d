package source

import (
	"errors"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"reelshelf/internal/services"
)

// ReadSpreadsheet loads the first sheet of an .xlsx workbook. The first row is
// the header.
func ReadSpreadsheet(path string) (*Table, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, services.Wrap(services.ErrConfiguration, "source", "open", fmt.Sprintf("file not found: %s", path), err)
	}
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "source", "read workbook", fmt.Sprintf("%s has no sheets", path), nil)
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "source", "read header", fmt.Sprintf("%s has no header row", path), nil)
	}

	table := &Table{Name: path, Header: NewHeader(rows[0])}
	for _, row := range rows[1:] {
		record := make(Record, len(row))
		empty := true
		for i, value := range row {
			if value == "" {
				continue
			}
			record[i] = value
			empty = false
		}
		if empty {
			continue
		}
		table.Records = append(table.Records, record)
	}
	return table, nil
}
