package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reelshelf/internal/logging"
	"reelshelf/internal/services"
	"reelshelf/internal/stage"
)

// Entry pairs a stage name with its handler.
type Entry struct {
	Name    string
	Handler stage.Handler
}

// Observer receives the outcome of every stage, e.g. a metrics recorder.
type Observer interface {
	ObserveStage(name string, summary stage.Summary, elapsed time.Duration, err error)
}

// Options controls stage execution.
type Options struct {
	Logger   *slog.Logger
	Observer Observer
}

// Result is the outcome of one stage.
type Result struct {
	Name     string
	Summary  stage.Summary
	Elapsed  time.Duration
	Err      error
	Aborted  bool
	Canceled bool
}

// Run executes the entries sequentially. A stage that fails never stops the
// ones after it; a canceled context does.
func Run(ctx context.Context, opts Options, entries []Entry) []Result {
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			results = append(results, Result{Name: entry.Name, Err: ctx.Err(), Canceled: true})
			continue
		}
		results = append(results, RunOne(ctx, opts, entry))
	}
	return results
}

// RunOne executes a single stage with start/complete/failure logging.
func RunOne(ctx context.Context, opts Options, entry Entry) Result {
	result := Result{Name: entry.Name}
	if entry.Handler == nil {
		result.Err = services.Wrap(services.ErrConfiguration, entry.Name, "run", "stage handler unavailable", nil)
		result.Aborted = true
		return result
	}

	stageCtx := services.WithStage(ctx, entry.Name)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := entry.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := time.Now()

	err := entry.Handler.Prepare(stageCtx)
	if err == nil {
		result.Summary, err = entry.Handler.Execute(stageCtx)
	}
	result.Elapsed = time.Since(started)
	result.Err = err

	if opts.Observer != nil {
		opts.Observer.ObserveStage(entry.Name, result.Summary, result.Elapsed, err)
	}

	if err != nil {
		result.Aborted = services.IsFatal(err)
		result.Canceled = errors.Is(err, context.Canceled)
		handleFailure(stageLogger, entry.Name, result)
		return result
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int64(logging.FieldProcessed, result.Summary.Processed),
		logging.Int64(logging.FieldInserted, result.Summary.Inserted),
		logging.Int64(logging.FieldUpdated, result.Summary.Updated),
		logging.Int64(logging.FieldSkipped, result.Summary.Skipped),
		logging.Int64(logging.FieldDropped, result.Summary.Dropped),
		logging.Int64(logging.FieldFailed, result.Summary.Failed),
		logging.Duration("elapsed", result.Elapsed),
		logging.String("notes", strings.Join(result.Summary.Notes, "; ")),
	)
	return result
}

func handleFailure(logger *slog.Logger, stageName string, result Result) {
	message := strings.TrimSpace(result.Err.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	hint := "rerun is safe; every write is idempotent"
	if result.Aborted {
		hint = "fix the configuration and rerun this stage"
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String(logging.FieldErrorKind, services.Kind(result.Err)),
		logging.String(logging.FieldErrorHint, hint),
		logging.String("error_message", message),
		logging.Int64(logging.FieldProcessed, result.Summary.Processed),
		logging.Duration("elapsed", result.Elapsed),
	)
}

// AnyAborted reports whether at least one stage stopped on a configuration error.
func AnyAborted(results []Result) bool {
	for _, r := range results {
		if r.Aborted {
			return true
		}
	}
	return false
}
