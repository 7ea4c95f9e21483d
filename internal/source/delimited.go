package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"reelshelf/internal/services"
)

// NullToken marks a missing value in IMDb TSV dumps.
const NullToken = `\N`

const maxLineBytes = 16 << 20

// DelimitedReader streams records from a CSV or TSV file.
//
// CSV goes through encoding/csv with lazy quoting and skips lines it cannot
// parse. TSV is split on tabs line by line: IMDb dumps carry no quoting, and
// a stray quote character must not swallow the following fields.
type DelimitedReader struct {
	file      *os.File
	format    Format
	csv       *csv.Reader
	lines     *bufio.Scanner
	header    Header
	malformed int
}

// OpenDelimited opens path and consumes its header row.
func OpenDelimited(path string, format Format) (*DelimitedReader, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "source", "open", fmt.Sprintf("file not found: %s", path), err)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := &DelimitedReader{file: file, format: format}
	buffered := bufio.NewReaderSize(file, 1<<20)
	switch format {
	case FormatTSV:
		r.lines = bufio.NewScanner(buffered)
		r.lines.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	case FormatCSV:
		r.csv = csv.NewReader(buffered)
		r.csv.LazyQuotes = true
		r.csv.FieldsPerRecord = -1
	default:
		_ = file.Close()
		return nil, services.Wrap(services.ErrConfiguration, "source", "open", fmt.Sprintf("format %q is not delimited", format), nil)
	}

	fields, err := r.nextFields()
	if err != nil {
		_ = file.Close()
		if errors.Is(err, io.EOF) {
			return nil, services.Wrap(services.ErrConfiguration, "source", "read header", fmt.Sprintf("%s has no header row", path), nil)
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	r.header = NewHeader(fields)
	return r, nil
}

// Header returns the canonical header.
func (r *DelimitedReader) Header() Header {
	return r.header
}

// Malformed counts skipped unparseable lines so far.
func (r *DelimitedReader) Malformed() int {
	return r.malformed
}

// Next returns the next record or io.EOF.
func (r *DelimitedReader) Next() (Record, error) {
	fields, err := r.nextFields()
	if err != nil {
		return nil, err
	}
	record := make(Record, len(fields))
	for i, field := range fields {
		record[i] = r.cell(field)
	}
	return record, nil
}

// Chunk returns up to n records. A short final chunk comes back with a nil
// error; the call after it returns io.EOF.
func (r *DelimitedReader) Chunk(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 1
	}
	out := make([]Record, 0, n)
	for len(out) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Next()
		if errors.Is(err, io.EOF) {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// ReadAll drains the reader into a Table.
func (r *DelimitedReader) ReadAll(ctx context.Context) (*Table, error) {
	table := &Table{Name: r.file.Name(), Header: r.header}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		table.Records = append(table.Records, record)
	}
	table.Malformed = r.malformed
	return table, nil
}

// Close releases the file handle.
func (r *DelimitedReader) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

func (r *DelimitedReader) nextFields() ([]string, error) {
	if r.lines != nil {
		for r.lines.Scan() {
			line := strings.TrimRight(r.lines.Text(), "\r")
			if line == "" {
				continue
			}
			return strings.Split(line, "\t"), nil
		}
		if err := r.lines.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	for {
		fields, err := r.csv.Read()
		if err == nil {
			return fields, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.malformed++
			continue
		}
		return nil, err
	}
}

func (r *DelimitedReader) cell(field string) any {
	if field == "" || strings.TrimSpace(field) == "" {
		return nil
	}
	if r.format == FormatTSV && field == NullToken {
		return nil
	}
	return field
}
