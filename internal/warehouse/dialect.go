package warehouse

import (
	"strconv"
	"strings"

	"reelshelf/internal/config"
)

// Dialect captures the per-engine differences the store cares about.
type Dialect struct {
	Name           string
	driverName     string
	schemaSQL      string
	tableExistsSQL string
	numbered       bool
	tempSuffix     string
}

var (
	sqliteDialect = Dialect{
		Name:           config.DriverSQLite,
		driverName:     "sqlite",
		schemaSQL:      sqliteSchemaSQL,
		tableExistsSQL: "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	}
	postgresDialect = Dialect{
		Name:           config.DriverPostgres,
		driverName:     "pgx",
		schemaSQL:      postgresSchemaSQL,
		tableExistsSQL: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'schema_version'",
		numbered:       true,
		tempSuffix:     " ON COMMIT DROP",
	}
)

// DialectFor returns the dialect for a configured driver name.
func DialectFor(driver string) (Dialect, bool) {
	switch driver {
	case config.DriverSQLite:
		return sqliteDialect, true
	case config.DriverPostgres:
		return postgresDialect, true
	default:
		return Dialect{}, false
	}
}

// Rebind rewrites ? placeholders to $1..$n for engines that need it. Queries
// must not carry literal question marks.
func (d Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) statements() []string {
	parts := strings.Split(d.schemaSQL, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
