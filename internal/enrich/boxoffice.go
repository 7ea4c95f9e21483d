package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reelshelf/internal/config"
	"reelshelf/internal/logging"
	"reelshelf/internal/normalize"
	"reelshelf/internal/services"
	"reelshelf/internal/source"
	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

var boxOfficeSchema = source.Schema{
	source.Prefixes("title", "movie"),
	source.Prefixes("release", "release da"),
	source.Prefixes("distributor", "distributor"),
	source.Prefixes("genre", "genre"),
	source.Prefixes("gross", "2025 gros", "gross"),
	source.Prefixes("tickets", "tickets sol"),
}

var boxOfficeRequired = []string{"title", "release", "gross", "tickets"}

// BoxOfficeStage overwrites gross and tickets on the fact rows of films
// matched by title and release year.
type BoxOfficeStage struct {
	cfg    *config.Config
	store  *warehouse.Store
	logger *slog.Logger
}

// NewBoxOfficeStage constructs the box office stage.
func NewBoxOfficeStage(cfg *config.Config, store *warehouse.Store) *BoxOfficeStage {
	return &BoxOfficeStage{cfg: cfg, store: store, logger: logging.NewNop()}
}

// SetLogger replaces the stage logger.
func (s *BoxOfficeStage) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s.logger = logger
}

// Prepare validates the configured box office file.
func (s *BoxOfficeStage) Prepare(context.Context) error {
	if err := stage.RequireSource(stage.BoxOffice, "box_office", s.cfg.Sources.BoxOffice); err != nil {
		return err
	}
	_, err := source.FormatFor(s.cfg.Sources.BoxOffice)
	return err
}

// HealthCheck reports whether the box office file is usable.
func (s *BoxOfficeStage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.Prepare(ctx); err != nil {
		return stage.Unhealthy(stage.BoxOffice, err.Error())
	}
	return stage.Healthy(stage.BoxOffice)
}

// Execute matches every row and applies it in its own transaction.
// Unmatched rows are skipped, not failed.
func (s *BoxOfficeStage) Execute(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	table, err := source.ReadFile(ctx, s.cfg.Sources.BoxOffice)
	if err != nil {
		return summary, err
	}
	bind := table.Bind(boxOfficeSchema)
	if missing := bind.Missing(boxOfficeRequired...); len(missing) > 0 {
		return summary, services.Wrap(services.ErrConfiguration, stage.BoxOffice, "bind columns",
			fmt.Sprintf("box office file lacks %s", strings.Join(missing, ", ")), nil)
	}
	if table.Malformed > 0 {
		summary.Skipped += int64(table.Malformed)
		summary.Notef("%d malformed lines", table.Malformed)
	}

	var facts int64
	progress := stage.NewProgress(s.logger, "box office rows")
	for _, record := range table.Records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++
		row, ok := boxOfficeRow(bind, record)
		if !ok {
			summary.Skipped++
			stage.RowSkipped(s.logger, "missing title, year or gross", "")
			progress.Tick(summary)
			continue
		}
		rowKey := fmt.Sprintf("%s (%d)", row.title, row.year)
		var matched bool
		var touched int64
		err := s.store.WithTx(services.WithRowKey(ctx, rowKey), func(tx *warehouse.Tx) error {
			sk, ok, err := tx.FindMovieByTitleYear(ctx, normalize.TitleKey(row.title), row.year)
			if err != nil || !ok {
				matched = false
				return err
			}
			matched = true
			touched, err = tx.ApplyBoxOffice(ctx, sk, row.apply)
			return err
		})
		switch {
		case err != nil:
			summary.Failed++
			stage.RowFailed(s.logger, "box office update failed", rowKey, err)
		case !matched:
			summary.Skipped++
			stage.RowSkipped(s.logger, "no film with this title and year", rowKey)
		default:
			summary.Updated++
			facts += touched
		}
		progress.Tick(summary)
	}
	summary.Notef("%d fact rows updated", facts)
	return summary, nil
}

type boxOfficeInput struct {
	title string
	year  int
	apply warehouse.BoxOffice
}

func boxOfficeRow(bind source.Binding, r source.Record) (boxOfficeInput, bool) {
	title, ok := normalize.ClippedText(bind.Value(r, "title"), normalize.MaxTitle)
	if !ok {
		return boxOfficeInput{}, false
	}
	released, ok := normalize.Date(bind.Value(r, "release"))
	if !ok {
		return boxOfficeInput{}, false
	}
	gross, ok := normalize.Currency(bind.Value(r, "gross"))
	if !ok {
		return boxOfficeInput{}, false
	}
	in := boxOfficeInput{title: title, year: released.Year()}
	in.apply.Gross = &gross
	if tickets, ok := normalize.Quantity(bind.Value(r, "tickets")); ok {
		in.apply.TicketsSold = &tickets
	}
	if d, ok := normalize.ClippedText(bind.Value(r, "distributor"), normalize.MaxTitle); ok {
		in.apply.Distributor = &d
	}
	if g, ok := normalize.ClippedText(bind.Value(r, "genre"), normalize.MaxGenre); ok {
		in.apply.Genre = &g
	}
	return in, true
}
