// Package warehouse persists the books/films star schema.
//
// It owns the embedded DDL for both supported engines (SQLite for local and
// test use, Postgres through pgx), the dimension upsert engine, bridge and fact
// writes, the chunked set-based staging path for large reference tables, and
// the read-back queries the enrichment passes use to find existing rows.
//
// All writes run inside a Tx obtained from Store.WithTx so a caller can scope
// one row, one chunk, or one remote-enriched record to a single transaction.
// Every statement is written once with ? placeholders and rebound for the
// active dialect.
package warehouse
