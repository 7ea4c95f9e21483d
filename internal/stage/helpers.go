package stage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"reelshelf/internal/logging"
	"reelshelf/internal/services"
)

// RequireSource checks that a configured source path is set and readable.
// Failures carry services.ErrConfiguration so only the owning stage aborts.
func RequireSource(stageName, label, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "check source",
			fmt.Sprintf("sources.%s is not configured", label), nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrConfiguration, stageName, "check source",
				fmt.Sprintf("%s not found: %s", label, path), nil)
		}
		return services.Wrap(services.ErrConfiguration, stageName, "check source", label, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrConfiguration, stageName, "check source",
			fmt.Sprintf("%s is a directory: %s", label, path), nil)
	}
	return nil
}

// CheckSource turns RequireSource into a Health record.
func CheckSource(stageName, label, path string) Health {
	if err := RequireSource(stageName, label, path); err != nil {
		return Unhealthy(stageName, err.Error())
	}
	return Healthy(stageName)
}

// RowFailed logs a row-level failure at warn with its error kind.
func RowFailed(logger *slog.Logger, msg, key string, err error) {
	logging.WarnWithContext(logger, msg, "row_failed",
		logging.String(logging.FieldRowKey, key),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
	)
}

// RowSkipped logs a skipped row at debug.
func RowSkipped(logger *slog.Logger, reason, key string) {
	if logger == nil {
		return
	}
	logger.Debug("row skipped",
		logging.String(logging.FieldEventType, "row_skipped"),
		logging.String(logging.FieldRowKey, key),
		logging.String("reason", reason),
	)
}

// ProgressEvery is the row interval between progress lines.
const ProgressEvery = 100

// Progress logs a line every ProgressEvery processed rows.
type Progress struct {
	logger *slog.Logger
	noun   string
	count  int64
}

// NewProgress returns a progress reporter counting noun.
func NewProgress(logger *slog.Logger, noun string) *Progress {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Progress{logger: logger, noun: noun}
}

// Tick records one processed row and logs on every interval boundary.
func (p *Progress) Tick(s Summary) {
	p.count++
	if p.count%ProgressEvery != 0 {
		return
	}
	p.logger.Info(fmt.Sprintf("processed %d %s", p.count, p.noun),
		logging.String(logging.FieldEventType, "progress"),
		logging.Int64(logging.FieldProcessed, p.count),
		logging.Int64(logging.FieldInserted, s.Inserted),
		logging.Int64(logging.FieldUpdated, s.Updated),
		logging.Int64(logging.FieldSkipped, s.Skipped),
		logging.Int64(logging.FieldFailed, s.Failed),
	)
}

// Count returns the number of ticks so far.
func (p *Progress) Count() int64 {
	return p.count
}
