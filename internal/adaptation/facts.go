package adaptation

import (
	"context"
	"errors"

	"reelshelf/internal/normalize"
	"reelshelf/internal/services"
	"reelshelf/internal/source"
	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

const adaptationDirect = "direct"

var linkTables = []string{"booksmovies", "wiki_book_movie_ids_matching"}

var linkSchema = source.Schema{
	source.Aliases("book", "book_id", "goodreads_book_id"),
	source.Aliases("imdb", "imdb_id"),
	source.Aliases("id", "movie_id"),
}

type linkPair struct {
	book  string
	movie string
}

// readLinks takes the first link table that binds both ids.
func (r *linkRun) readLinks(ctx context.Context, snap *source.Snapshot) ([]linkPair, error) {
	for _, name := range linkTables {
		table, err := snap.ReadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if table.Len() == 0 {
			continue
		}
		bind := table.Bind(linkSchema)
		if !bind.Has("book") || (!bind.Has("imdb") && !bind.Has("id")) {
			r.logger.Warn("link table unusable",
				"table", name,
				"missing", bind.Missing("book", "imdb"),
			)
			continue
		}
		return r.pairs(table, bind), nil
	}
	return nil, nil
}

func (r *linkRun) pairs(table *source.Table, bind source.Binding) []linkPair {
	seen := make(map[linkPair]struct{}, table.Len())
	var out []linkPair
	for _, record := range table.Records {
		book, okBook := normalize.BookKey(bind.Value(record, "book"))
		movie, okMovie := movieKeyOf(bind, record)
		if !okBook || !okMovie {
			r.facts.Processed++
			r.facts.Skipped++
			stage.RowSkipped(r.logger, "unresolved link ids", book+"/"+movie)
			continue
		}
		p := linkPair{book: book, movie: movie}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// loadFacts writes one fact row per distinct resolvable link, one
// transaction per link.
func (r *linkRun) loadFacts(ctx context.Context, snap *source.Snapshot) error {
	pairs, err := r.readLinks(ctx, snap)
	if err != nil {
		return err
	}
	progress := stage.NewProgress(r.logger, "links")
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.facts.Processed++
		rowKey := p.book + "/" + p.movie
		var inserted bool
		err := r.store.WithTx(services.WithRowKey(ctx, rowKey), func(tx *warehouse.Tx) error {
			var err error
			inserted, err = r.writeFact(ctx, tx, p)
			return err
		})
		switch {
		case errors.Is(err, services.ErrUnresolved):
			r.facts.Skipped++
			stage.RowSkipped(r.logger, err.Error(), rowKey)
		case err != nil:
			r.facts.Failed++
			stage.RowFailed(r.logger, "fact write failed", rowKey, err)
		case inserted:
			r.facts.Inserted++
		default:
			r.facts.Updated++
		}
		progress.Tick(r.facts)
	}
	return nil
}

func (r *linkRun) writeFact(ctx context.Context, tx *warehouse.Tx, p linkPair) (bool, error) {
	bookSK, ok, err := r.resolveBook(ctx, tx, p.book)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, services.Wrap(services.ErrUnresolved, stage.Links, "resolve link", "unknown book "+p.book, nil)
	}
	movieSK, ok, err := r.resolveMovie(ctx, tx, p.movie)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, services.Wrap(services.ErrUnresolved, stage.Links, "resolve link", "unknown movie "+p.movie, nil)
	}

	book, err := tx.BookMeasures(ctx, bookSK)
	if err != nil {
		return false, err
	}
	movie, err := tx.MovieMeasures(ctx, movieSK)
	if err != nil {
		return false, err
	}
	dateSK, err := tx.ReleaseDateSK(ctx, movieSK)
	if err != nil {
		return false, err
	}
	bookAgg := r.bookReviews[p.book]
	movieAgg := r.movieReviews[p.movie]
	in := r.movies[p.movie]
	adaptation := adaptationDirect

	inserted, err := tx.UpsertFact(ctx, warehouse.FactRow{
		BookSK:           bookSK,
		MovieSK:          movieSK,
		ReleaseDateSK:    dateSK,
		AdaptationType:   &adaptation,
		Gross:            in.revenue,
		Budget:           in.budget,
		BookRating:       book.Rating,
		BookRatingsCount: book.RatingsCount,
		BookReviewCount:  first(bookAgg.reviews(), book.ReviewCount),
		MovieRating:      movie.Rating,
		MovieVoteCount:   movie.VoteCount,
	})
	if err != nil {
		return false, err
	}
	err = tx.FillFactReviews(ctx, bookSK, movieSK,
		bookAgg.mean(), nil,
		movieAgg.mean(), movieAgg.reviews(),
	)
	return inserted, err
}
