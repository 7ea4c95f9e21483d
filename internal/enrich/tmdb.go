package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reelshelf/internal/config"
	"reelshelf/internal/logging"
	"reelshelf/internal/normalize"
	"reelshelf/internal/retry"
	"reelshelf/internal/services"
	"reelshelf/internal/stage"
	"reelshelf/internal/tmdb"
	"reelshelf/internal/warehouse"
)

// TMDBStage enriches bridged actors with popularity, then films with
// popularity, budget and revenue.
type TMDBStage struct {
	cfg    *config.Config
	store  *warehouse.Store
	logger *slog.Logger
	lookup tmdb.Lookup
	policy retry.Policy
	pause  time.Duration
}

// TMDBOption configures a TMDBStage.
type TMDBOption func(*TMDBStage)

// WithLookup injects a remote client instead of building one from config.
func WithLookup(l tmdb.Lookup) TMDBOption {
	return func(s *TMDBStage) {
		s.lookup = l
	}
}

// NewTMDBStage constructs the remote enrichment stage.
func NewTMDBStage(cfg *config.Config, store *warehouse.Store, opts ...TMDBOption) *TMDBStage {
	s := &TMDBStage{
		cfg:    cfg,
		store:  store,
		logger: logging.NewNop(),
		policy: retry.FromConfig(cfg),
		pause:  cfg.TMDBPause(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger replaces the stage logger.
func (s *TMDBStage) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s.logger = logger
}

// Prepare builds the client. Missing credentials abort the stage.
func (s *TMDBStage) Prepare(context.Context) error {
	if s.lookup != nil {
		return nil
	}
	if !s.cfg.HasTMDBCredential() {
		return services.Wrap(services.ErrConfiguration, stage.TMDB, "prepare",
			"tmdb.api_key or tmdb.bearer_token (or TMDB_API_KEY) is required", nil)
	}
	client, err := tmdb.New(s.cfg.TMDB.APIKey, s.cfg.TMDB.BaseURL, s.cfg.TMDB.Language,
		tmdb.WithBearerToken(s.cfg.TMDB.BearerToken),
		tmdb.WithRateLimit(s.cfg.TMDB.RequestsPerSecond),
		tmdb.WithTimeout(s.cfg.TMDBTimeout()),
	)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stage.TMDB, "prepare", "build tmdb client", err)
	}
	s.lookup = client
	return nil
}

// HealthCheck reports whether a credential is configured.
func (s *TMDBStage) HealthCheck(context.Context) stage.Health {
	if s.lookup == nil && !s.cfg.HasTMDBCredential() {
		return stage.Unhealthy(stage.TMDB, "tmdb credential missing")
	}
	return stage.Healthy(stage.TMDB)
}

// Execute runs actor popularity first, then film details. A failed row is
// counted and skipped; only configuration errors abort.
func (s *TMDBStage) Execute(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	actors, err := s.enrichActors(ctx)
	summary.Add(actors)
	if err != nil {
		return summary, err
	}
	movies, err := s.enrichMovies(ctx)
	summary.Add(movies)
	return summary, err
}

func (s *TMDBStage) enrichActors(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	refs, err := s.store.LinkedActorKeys(ctx)
	if err != nil {
		return summary, err
	}
	progress := stage.NewProgress(s.logger, "actors")
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++
		err := s.enrichActor(services.WithRowKey(ctx, ref.Key), ref)
		if abort := s.count(&summary, ref.Key, err); abort != nil {
			return summary, abort
		}
		progress.Tick(summary)
	}
	summary.Notef("actors updated=%d", summary.Updated)
	return summary, nil
}

func (s *TMDBStage) enrichActor(ctx context.Context, ref warehouse.KeyRef) error {
	remoteID, err := normalize.RemoteID(normalize.KindPerson, ref.Key)
	if err != nil {
		return services.Wrap(services.ErrUnresolved, stage.TMDB, "derive person id", ref.Key, err)
	}
	var found *tmdb.FindResult
	if err := s.call(ctx, func(ctx context.Context) (err error) {
		found, err = s.lookup.FindByExternalID(ctx, remoteID)
		return err
	}); err != nil {
		return err
	}
	if len(found.PersonResults) == 0 {
		return services.Wrap(services.ErrNotFound, stage.TMDB, "find person", remoteID, nil)
	}
	var person *tmdb.PersonDetails
	if err := s.call(ctx, func(ctx context.Context) (err error) {
		person, err = s.lookup.PersonDetails(ctx, found.PersonResults[0].ID)
		return err
	}); err != nil {
		return err
	}
	popularity := person.Popularity
	return s.store.WithTx(ctx, func(tx *warehouse.Tx) error {
		_, err := tx.MergeActor(ctx, ref.SK, warehouse.Column{Name: "popularity_score", Value: popularity})
		return err
	})
}

func (s *TMDBStage) enrichMovies(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	refs, err := s.store.MovieKeys(ctx)
	if err != nil {
		return summary, err
	}
	var facts int64
	progress := stage.NewProgress(s.logger, "movies")
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++
		touched, err := s.enrichMovie(services.WithRowKey(ctx, ref.Key), ref)
		if abort := s.count(&summary, ref.Key, err); abort != nil {
			return summary, abort
		}
		facts += touched
		progress.Tick(summary)
	}
	summary.Notef("movies updated=%d fact rows=%d", summary.Updated, facts)
	return summary, nil
}

func (s *TMDBStage) enrichMovie(ctx context.Context, ref warehouse.KeyRef) (int64, error) {
	remoteID, err := normalize.RemoteID(normalize.KindMovie, ref.Key)
	if err != nil {
		return 0, services.Wrap(services.ErrUnresolved, stage.TMDB, "derive movie id", ref.Key, err)
	}
	var found *tmdb.FindResult
	if err := s.call(ctx, func(ctx context.Context) (err error) {
		found, err = s.lookup.FindByExternalID(ctx, remoteID)
		return err
	}); err != nil {
		return 0, err
	}
	if len(found.MovieResults) == 0 {
		return 0, services.Wrap(services.ErrNotFound, stage.TMDB, "find movie", remoteID, nil)
	}
	var details *tmdb.MovieDetails
	if err := s.call(ctx, func(ctx context.Context) (err error) {
		details, err = s.lookup.MovieDetails(ctx, found.MovieResults[0].ID)
		return err
	}); err != nil {
		return 0, err
	}

	apply := warehouse.MovieDetails{
		TMDbID:     positiveInt(details.ID),
		Popularity: &details.Popularity,
		Budget:     positive(details.Budget),
		Revenue:    positive(details.Revenue),
	}
	var touched int64
	err = s.store.WithTx(ctx, func(tx *warehouse.Tx) error {
		var err error
		touched, err = tx.ApplyMovieDetails(ctx, ref.SK, apply)
		return err
	})
	return touched, err
}

// call runs one remote request under the retry policy and pauses after it
// succeeds.
func (s *TMDBStage) call(ctx context.Context, fn func(context.Context) error) error {
	if err := s.policy.Do(ctx, fn); err != nil {
		return err
	}
	return sleepWithContext(ctx, s.pause)
}

// count folds one row outcome into summary and returns the error that
// should abort the stage, if any.
func (s *TMDBStage) count(summary *stage.Summary, key string, err error) error {
	switch {
	case err == nil:
		summary.Updated++
	case services.IsFatal(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, services.ErrUnresolved), errors.Is(err, services.ErrNotFound):
		summary.Skipped++
		stage.RowSkipped(s.logger, err.Error(), key)
	default:
		summary.Failed++
		stage.RowFailed(s.logger, "tmdb enrichment failed", key, err)
	}
	return nil
}

// sleepWithContext blocks for d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func positive(f float64) *float64 {
	if f <= 0 {
		return nil
	}
	return &f
}

func positiveInt(n int64) *int64 {
	if n <= 0 {
		return nil
	}
	return &n
}
