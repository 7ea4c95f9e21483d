// Package enrich reconciles already-loaded films and people with secondary
// sources. The box office file matches films by folded title and release
// year; the TMDB lookups resolve natural keys to remote ids and carry
// popularity and financials back. A row that cannot be enriched is counted
// and the batch moves on.
package enrich
