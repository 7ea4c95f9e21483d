// Package config loads, normalizes, and validates reelshelf configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY. The Config type centralizes every knob the loader and CLI need:
// the warehouse connection, the source file locations, remote metadata
// credentials, and the bulk/retry tuning.
//
// Source paths and credentials are deliberately not required here. Each load
// stage checks its own inputs so a missing file aborts only that stage.
package config
