package testsupport

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// SnapshotTable describes one table of a fixture snapshot. Every column is
// created without a declared type so values keep their Go dynamic type.
type SnapshotTable struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// WriteSnapshot builds an SQLite file holding the given tables.
func WriteSnapshot(t testing.TB, path string, tables ...SnapshotTable) string {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open snapshot %s: %v", path, err)
	}
	defer db.Close()

	for _, table := range tables {
		quoted := make([]string, len(table.Columns))
		marks := make([]string, len(table.Columns))
		for i, column := range table.Columns {
			quoted[i] = `"` + column + `"`
			marks[i] = "?"
		}
		create := fmt.Sprintf(`CREATE TABLE "%s" (%s)`, table.Name, strings.Join(quoted, ", "))
		if _, err := db.Exec(create); err != nil {
			t.Fatalf("create %s: %v", table.Name, err)
		}
		insert := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`, table.Name, strings.Join(quoted, ", "), strings.Join(marks, ", "))
		for _, row := range table.Rows {
			if _, err := db.Exec(insert, row...); err != nil {
				t.Fatalf("insert into %s: %v", table.Name, err)
			}
		}
	}
	return path
}
