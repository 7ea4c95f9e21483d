// Package stage defines the contract every load stage implements, the Summary
// counts it reports, and small helpers for source checks, row-level logging
// and periodic progress lines.
package stage
