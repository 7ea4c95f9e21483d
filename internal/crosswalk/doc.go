// Package crosswalk derives the per-run lookup tables that bridge identifier
// spaces: TMDb ids to IMDb movie keys, aggregated genres and the first
// director per film, and the acting credits per person.
//
// A Builder accumulates rows from snapshot tables (and optionally an IMDb
// principals file); Build freezes the result into a read-only Crosswalk that
// downstream builders receive as an explicit parameter.
package crosswalk
