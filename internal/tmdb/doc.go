// Package tmdb provides the minimal TMDB API client used during enrichment.
//
// It resolves IMDb ids through the find endpoint and fetches movie and person
// details. Requests authenticate with either an API key or a v4 bearer token
// and are paced by a token-bucket limiter. Failures carry the services error
// markers so callers can tell transient conditions (timeouts, 429, 5xx) from
// misses and undecodable payloads. Options allow tests to supply custom HTTP
// clients.
package tmdb
