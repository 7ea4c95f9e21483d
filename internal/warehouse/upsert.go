package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MergePolicy decides how an incoming value combines with the stored one when
// the natural key already exists.
type MergePolicy int

const (
	// OverwriteIfPresent replaces the stored value unless the incoming one is null.
	OverwriteIfPresent MergePolicy = iota
	// Overwrite always replaces the stored value, nulls included.
	Overwrite
	// FillIfNull writes only when the stored value is null.
	FillIfNull
	// Ignore leaves the stored value alone; the column is written on insert only.
	Ignore
)

func (p MergePolicy) String() string {
	switch p {
	case OverwriteIfPresent:
		return "overwrite_if_present"
	case Overwrite:
		return "overwrite"
	case FillIfNull:
		return "fill_if_null"
	case Ignore:
		return "ignore"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Column is one named value in an upsert or merge update.
type Column struct {
	Name   string
	Value  any
	Policy MergePolicy
}

// Upsert describes an insert-or-merge against a table with a natural key.
type Upsert struct {
	Table string
	// Key holds the natural key columns; their policies are ignored.
	Key []Column
	// Returning names the surrogate key column to read back, if any.
	Returning string
	Columns   []Column
	// Touch sets updated_at whenever an existing row is merged.
	Touch bool
}

func (u Upsert) validate() error {
	if u.Table == "" {
		return errors.New("upsert: table is required")
	}
	if len(u.Key) == 0 {
		return fmt.Errorf("upsert %s: natural key is required", u.Table)
	}
	for _, key := range u.Key {
		if key.Value == nil {
			return fmt.Errorf("upsert %s: key column %s is null", u.Table, key.Name)
		}
	}
	return nil
}

func (u Upsert) sql() (string, []any) {
	names := make([]string, 0, len(u.Key)+len(u.Columns))
	args := make([]any, 0, len(u.Key)+len(u.Columns))
	keyNames := make([]string, 0, len(u.Key))
	for _, key := range u.Key {
		names = append(names, key.Name)
		keyNames = append(keyNames, key.Name)
		args = append(args, key.Value)
	}
	var sets []string
	for _, col := range u.Columns {
		names = append(names, col.Name)
		args = append(args, col.Value)
		if expr, ok := mergeExpr(u.Table, col.Name, "excluded."+col.Name, col.Policy); ok {
			sets = append(sets, col.Name+" = "+expr)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		u.Table, strings.Join(names, ", "), placeholders(len(names)), strings.Join(keyNames, ", "))
	if len(sets) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		if u.Touch {
			sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
		}
		b.WriteString("DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}
	if u.Returning != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(u.Returning)
	}
	return b.String(), args
}

// mergeExpr renders the SET expression for one column. incoming is either an
// excluded.col reference or a placeholder.
func mergeExpr(table, name, incoming string, policy MergePolicy) (string, bool) {
	stored := table + "." + name
	switch policy {
	case Overwrite:
		return incoming, true
	case OverwriteIfPresent:
		return "COALESCE(" + incoming + ", " + stored + ")", true
	case FillIfNull:
		return "COALESCE(" + stored + ", " + incoming + ")", true
	default:
		return "", false
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Upsert inserts or merges one row and returns the surrogate key when
// Returning is set. A conflict that leaves the row untouched produces no
// RETURNING row on either engine, so the key is then read back by natural key.
func (t *Tx) Upsert(ctx context.Context, u Upsert) (int64, error) {
	if err := u.validate(); err != nil {
		return 0, err
	}
	query, args := u.sql()
	if u.Returning == "" {
		if _, err := t.exec(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", u.Table, err)
		}
		return 0, nil
	}

	var sk int64
	err := t.queryRow(ctx, query, args...).Scan(&sk)
	if err == nil {
		return sk, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("upsert %s: %w", u.Table, err)
	}
	sk, found, err := t.lookupKey(ctx, u.Table, u.Returning, u.Key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("upsert %s: row vanished after conflict", u.Table)
	}
	return sk, nil
}

// Merge updates an existing row identified by where, applying each column's
// policy against the stored value. It returns the number of rows matched.
func (t *Tx) Merge(ctx context.Context, table string, where []Column, cols []Column, touch bool) (int64, error) {
	if len(where) == 0 {
		return 0, fmt.Errorf("merge %s: where clause is required", table)
	}
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+len(where))
	for _, col := range cols {
		if expr, ok := mergeExpr(table, col.Name, "?", col.Policy); ok {
			sets = append(sets, col.Name+" = "+expr)
			args = append(args, col.Value)
		}
	}
	if len(sets) == 0 {
		return 0, nil
	}
	if touch {
		sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	}
	conds := make([]string, 0, len(where))
	for _, w := range where {
		conds = append(conds, w.Name+" = ?")
		args = append(args, w.Value)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), strings.Join(conds, " AND "))
	res, err := t.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("merge %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("merge %s: rows affected: %w", table, err)
	}
	return n, nil
}

func (t *Tx) lookupKey(ctx context.Context, table, surrogate string, key []Column) (int64, bool, error) {
	conds := make([]string, 0, len(key))
	args := make([]any, 0, len(key))
	for _, k := range key {
		conds = append(conds, k.Name+" = ?")
		args = append(args, k.Value)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", surrogate, table, strings.Join(conds, " AND "))
	var sk int64
	switch err := t.queryRow(ctx, query, args...).Scan(&sk); {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("lookup %s: %w", table, err)
	}
	return sk, true, nil
}

func (t *Tx) exists(ctx context.Context, table string, key []Column) (bool, error) {
	conds := make([]string, 0, len(key))
	args := make([]any, 0, len(key))
	for _, k := range key {
		conds = append(conds, k.Name+" = ?")
		args = append(args, k.Value)
	}
	query := fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE %s", table, strings.Join(conds, " AND "))
	var n int
	if err := t.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("exists %s: %w", table, err)
	}
	return n > 0, nil
}

// Opt returns a pointer to v when ok, nil otherwise.
func Opt[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}

func value[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

const dateLayout = "2006-01-02"

func dateValue(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.Format(dateLayout)
}

func yearValue(p *time.Time) any {
	if p == nil {
		return nil
	}
	return int64(p.Year())
}

func dateString(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

// parseStoredDate accepts the ISO day written by SQLite and the RFC3339 form
// database/sql produces when a Postgres DATE is scanned into a string.
func parseStoredDate(raw string) (time.Time, error) {
	if d, err := time.Parse(dateLayout, raw); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored date %q: %w", raw, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
}
