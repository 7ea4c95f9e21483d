// Package source reads raw inputs into an in-memory tabular form.
//
// Column names are canonicalized once per file (trimmed, lower-cased, BOM
// stripped) and matched against a declarative Schema: an ordered alias list
// per logical field, resolved to a column index when the table is bound. Row
// access after binding is a slice index, never a per-row name search.
//
// Readers cover delimited text (CSV, TSV with the IMDb `\N` null token),
// spreadsheets (.xlsx, first sheet), and embedded SQLite snapshots. Empty
// cells surface as nil.
package source
