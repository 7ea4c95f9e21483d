// Package stageexec runs load stages in sequence, wrapping each with
// stage-scoped logging, failure classification, and an optional observer.
package stageexec
