package adaptation

import (
	"context"
	"log/slog"

	"reelshelf/internal/config"
	"reelshelf/internal/crosswalk"
	"reelshelf/internal/logging"
	"reelshelf/internal/source"
	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

var movieTables = []string{"movies", "movie_overall_data"}

// LinksStage loads the books_films_reviews snapshot: films, snapshot books,
// cast, review aggregates and finally one fact row per book/film link.
type LinksStage struct {
	cfg    *config.Config
	store  *warehouse.Store
	logger *slog.Logger
}

// NewLinksStage constructs the links stage.
func NewLinksStage(cfg *config.Config, store *warehouse.Store) *LinksStage {
	return &LinksStage{cfg: cfg, store: store, logger: logging.NewNop()}
}

// SetLogger replaces the stage logger.
func (s *LinksStage) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s.logger = logger
}

// Prepare validates the snapshot path and the optional principals file.
func (s *LinksStage) Prepare(context.Context) error {
	if err := stage.RequireSource(stage.Links, "books_films_reviews", s.cfg.Sources.BooksFilmsReviews); err != nil {
		return err
	}
	if s.cfg.Sources.IMDbPrincipals != "" {
		return stage.RequireSource(stage.Links, "imdb_principals", s.cfg.Sources.IMDbPrincipals)
	}
	return nil
}

// HealthCheck reports whether the snapshot is usable.
func (s *LinksStage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.Prepare(ctx); err != nil {
		return stage.Unhealthy(stage.Links, err.Error())
	}
	return stage.Healthy(stage.Links)
}

// Execute runs the snapshot load. The crosswalk is built once and passed to
// each builder that needs it.
func (s *LinksStage) Execute(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	snap, err := source.OpenSnapshot(ctx, s.cfg.Sources.BooksFilmsReviews)
	if err != nil {
		return summary, err
	}
	defer snap.Close()

	run := newLinkRun(s.store, s.logger)
	moviesTable, err := snap.FirstNonEmpty(ctx, movieTables...)
	if err != nil {
		return summary, err
	}
	inputs := run.readMovies(moviesTable)

	cw, err := crosswalk.Load(ctx, snap, crosswalk.Options{
		Movies:         moviesTable,
		KnownMovie:     run.knownInRun,
		PrincipalsPath: s.cfg.Sources.IMDbPrincipals,
		ChunkSize:      s.cfg.Bulk.ChunkSize,
		Logger:         s.logger,
	})
	if err != nil {
		return summary, err
	}

	steps := []func(context.Context) error{
		func(ctx context.Context) error { return run.loadMovies(ctx, inputs, cw) },
		func(ctx context.Context) error { return run.loadBooks(ctx, snap) },
		func(ctx context.Context) error { return run.loadCast(ctx, cw) },
		func(ctx context.Context) error { return run.loadReviews(ctx, snap) },
		func(ctx context.Context) error { return run.loadFacts(ctx, snap) },
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return run.summary(), err
		}
	}
	return run.summary(), nil
}
