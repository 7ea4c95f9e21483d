// Package bulkload streams the IMDb reference files into the warehouse in
// fixed-size chunks. Each chunk of people is staged and merged into
// dim_actor with one set-based statement in its own transaction.
package bulkload
