package adaptation

import (
	"context"
	"log/slog"

	"reelshelf/internal/config"
	"reelshelf/internal/logging"
	"reelshelf/internal/services"
	"reelshelf/internal/source"
	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

// BooksStage loads the Goodreads export into dim_book. The export is the
// authoritative source for descriptive book fields.
type BooksStage struct {
	cfg    *config.Config
	store  *warehouse.Store
	logger *slog.Logger
}

// NewBooksStage constructs the books stage.
func NewBooksStage(cfg *config.Config, store *warehouse.Store) *BooksStage {
	return &BooksStage{cfg: cfg, store: store, logger: logging.NewNop()}
}

// SetLogger replaces the stage logger.
func (s *BooksStage) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s.logger = logger
}

// Prepare validates the configured books file.
func (s *BooksStage) Prepare(context.Context) error {
	if err := stage.RequireSource(stage.Books, "books", s.cfg.Sources.Books); err != nil {
		return err
	}
	_, err := source.FormatFor(s.cfg.Sources.Books)
	return err
}

// HealthCheck reports whether the books file is usable.
func (s *BooksStage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.Prepare(ctx); err != nil {
		return stage.Unhealthy(stage.Books, err.Error())
	}
	return stage.Healthy(stage.Books)
}

// Execute upserts every resolvable book row, one transaction per row.
func (s *BooksStage) Execute(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	table, err := source.ReadFile(ctx, s.cfg.Sources.Books)
	if err != nil {
		return summary, err
	}
	bind := table.Bind(bookSchema)
	if !bind.Has("id") {
		return summary, services.Wrap(services.ErrConfiguration, stage.Books, "bind columns",
			"books file has no book id column", nil)
	}
	if table.Malformed > 0 {
		summary.Skipped += int64(table.Malformed)
		summary.Notef("%d malformed lines", table.Malformed)
	}

	progress := stage.NewProgress(s.logger, "books")
	for _, record := range table.Records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++
		row, ok := bookRow(bind, record)
		if !ok {
			summary.Skipped++
			stage.RowSkipped(s.logger, "unresolved book id", "")
			progress.Tick(summary)
			continue
		}
		existed, err := s.upsert(ctx, row)
		switch {
		case err != nil:
			summary.Failed++
			stage.RowFailed(s.logger, "book upsert failed", row.Key, err)
		case existed:
			summary.Updated++
		default:
			summary.Inserted++
		}
		progress.Tick(summary)
	}
	return summary, nil
}

func (s *BooksStage) upsert(ctx context.Context, row warehouse.BookRow) (bool, error) {
	var existed bool
	err := s.store.WithTx(services.WithRowKey(ctx, row.Key), func(tx *warehouse.Tx) error {
		var err error
		if _, existed, err = tx.BookSK(ctx, row.Key); err != nil {
			return err
		}
		_, err = tx.UpsertBook(ctx, row, warehouse.ConflictMerge)
		return err
	})
	return existed, err
}
