// Package services defines shared utilities consumed by the load stages and
// their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and row keys for
//     logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the skip/retry/abort decisions the stages make.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the loader.
package services
