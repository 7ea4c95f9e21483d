package adaptation

import (
	"context"
	"log/slog"

	"reelshelf/internal/source"
	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

// tally counts one part of the snapshot load.
type tally struct {
	loaded  int64
	skipped int64
	failed  int64
}

// linkRun holds what one links Execute has resolved so far.
type linkRun struct {
	store  *warehouse.Store
	logger *slog.Logger

	movies  map[string]movieInput
	movieSK map[string]int64
	bookSK  map[string]int64

	bookReviews  map[string]*aggregate
	movieReviews map[string]*aggregate

	facts     stage.Summary
	films     tally
	books     tally
	actors    tally
	roles     tally
	reviews   tally
	orphans   int64
	malformed int
}

func newLinkRun(store *warehouse.Store, logger *slog.Logger) *linkRun {
	return &linkRun{
		store:        store,
		logger:       logger,
		movies:       make(map[string]movieInput),
		movieSK:      make(map[string]int64),
		bookSK:       make(map[string]int64),
		bookReviews:  make(map[string]*aggregate),
		movieReviews: make(map[string]*aggregate),
	}
}

func (r *linkRun) knownInRun(key string) bool {
	_, ok := r.movies[key]
	return ok
}

// readMovies maps the movies table, keeping the last row per key in
// first-seen order.
func (r *linkRun) readMovies(table *source.Table) []string {
	if table == nil {
		return nil
	}
	r.malformed += table.Malformed
	bind := table.Bind(movieSchema)
	var order []string
	for _, record := range table.Records {
		in, ok := movieRow(bind, record)
		if !ok {
			r.films.skipped++
			stage.RowSkipped(r.logger, "unresolved movie key", "")
			continue
		}
		if _, seen := r.movies[in.row.Key]; !seen {
			order = append(order, in.row.Key)
		}
		r.movies[in.row.Key] = in
	}
	return order
}

// resolveBook returns the surrogate of a book loaded in this run or
// already stored.
func (r *linkRun) resolveBook(ctx context.Context, tx *warehouse.Tx, key string) (int64, bool, error) {
	if sk, ok := r.bookSK[key]; ok {
		return sk, true, nil
	}
	sk, ok, err := tx.BookSK(ctx, key)
	if err == nil && ok {
		r.bookSK[key] = sk
	}
	return sk, ok, err
}

func (r *linkRun) resolveMovie(ctx context.Context, tx *warehouse.Tx, key string) (int64, bool, error) {
	if sk, ok := r.movieSK[key]; ok {
		return sk, true, nil
	}
	sk, ok, err := tx.MovieSK(ctx, key)
	if err == nil && ok {
		r.movieSK[key] = sk
	}
	return sk, ok, err
}

// summary folds the part tallies into the stage summary. Facts drive the
// inserted and updated counts; every part contributes skips and failures.
func (r *linkRun) summary() stage.Summary {
	s := r.facts
	for _, t := range []tally{r.films, r.books, r.actors, r.roles, r.reviews} {
		s.Skipped += t.skipped
		s.Failed += t.failed
	}
	s.Skipped += int64(r.malformed)
	s.Notef("movies=%d books=%d actors=%d roles=%d reviews=%d", r.films.loaded, r.books.loaded, r.actors.loaded, r.roles.loaded, r.reviews.loaded)
	if r.orphans > 0 {
		s.Notef("%d orphan reviews", r.orphans)
	}
	if r.malformed > 0 {
		s.Notef("%d malformed rows", r.malformed)
	}
	return s
}
