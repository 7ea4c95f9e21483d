package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"reelshelf/internal/services"
)

// Snapshot is a read-only view over an embedded SQLite database file.
type Snapshot struct {
	db     *sql.DB
	path   string
	tables map[string]string
}

// OpenSnapshot opens path read-only and discovers its tables.
func OpenSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "source", "open snapshot", fmt.Sprintf("file not found: %s", path), err)
		}
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "source", "open snapshot", fmt.Sprintf("%s is a directory", path), nil)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma query_only: %w", err)
	}

	s := &Snapshot{db: db, path: path, tables: make(map[string]string)}
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("list snapshot tables: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		s.tables[CanonicalName(name)] = name
	}
	if err := rows.Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("list snapshot tables: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Snapshot) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Tables lists canonical table names, sorted.
func (s *Snapshot) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the snapshot carries the table.
func (s *Snapshot) Has(name string) bool {
	_, ok := s.tables[CanonicalName(name)]
	return ok
}

// ReadTable materializes one table. A missing table returns (nil, nil).
func (s *Snapshot) ReadTable(ctx context.Context, name string) (*Table, error) {
	actual, ok := s.tables[CanonicalName(name)]
	if !ok {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT * FROM %s", quoteIdent(actual))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read snapshot table %s: %w", actual, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", actual, err)
	}
	table := &Table{Name: CanonicalName(actual), Header: NewHeader(columns)}
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", actual, err)
		}
		record := make(Record, len(columns))
		for i, value := range values {
			record[i] = snapshotCell(value)
		}
		table.Records = append(table.Records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot table %s: %w", actual, err)
	}
	return table, nil
}

// FirstNonEmpty returns the first of names that exists and has rows.
func (s *Snapshot) FirstNonEmpty(ctx context.Context, names ...string) (*Table, error) {
	for _, name := range names {
		table, err := s.ReadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if table.Len() > 0 {
			return table, nil
		}
	}
	return nil, nil
}

func snapshotCell(value any) any {
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return string(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return v
	default:
		return v
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
