package adaptation

import (
	"context"

	"reelshelf/internal/normalize"
	"reelshelf/internal/source"
	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

var bookReviewSchema = source.Schema{
	source.Aliases("id", "book_id", "goodreads_book_id"),
	source.Aliases("rating", "rating", "stars"),
}

var movieReviewSchema = source.Schema{
	source.Aliases("imdb", "imdb_id"),
	source.Aliases("id", "movie_id"),
	source.Aliases("rating", "rating", "stars"),
}

// aggregate accumulates the reviews of one entity.
type aggregate struct {
	count int64
	rated int64
	sum   float64
}

func (a *aggregate) add(rating float64, ok bool) {
	a.count++
	if ok {
		a.rated++
		a.sum += rating
	}
}

func (a *aggregate) mean() *float64 {
	if a == nil || a.rated == 0 {
		return nil
	}
	m := a.sum / float64(a.rated)
	return &m
}

func (a *aggregate) reviews() *int64 {
	if a == nil || a.count == 0 {
		return nil
	}
	n := a.count
	return &n
}

// loadReviews aggregates book and film reviews per entity. Reviews of an
// entity unknown to this run and to the warehouse are orphans.
func (r *linkRun) loadReviews(ctx context.Context, snap *source.Snapshot) error {
	books, err := snap.ReadTable(ctx, "book_reviews")
	if err != nil {
		return err
	}
	if books != nil {
		bind := books.Bind(bookReviewSchema)
		for _, record := range books.Records {
			key, ok := normalize.BookKey(bind.Value(record, "id"))
			if !ok {
				r.reviews.skipped++
				continue
			}
			rating, rated := normalize.BookRating(bind.Value(record, "rating"))
			if err := r.addReview(ctx, key, rating, rated, r.bookReviews, r.resolveBook); err != nil {
				return err
			}
		}
	}

	movies, err := snap.ReadTable(ctx, "movie_reviews")
	if err != nil {
		return err
	}
	if movies != nil {
		bind := movies.Bind(movieReviewSchema)
		for _, record := range movies.Records {
			key, ok := movieKeyOf(bind, record)
			if !ok {
				r.reviews.skipped++
				continue
			}
			rating, rated := normalize.MovieRating(bind.Value(record, "rating"))
			if err := r.addReview(ctx, key, rating, rated, r.movieReviews, r.resolveMovie); err != nil {
				return err
			}
		}
	}
	return nil
}

type resolver func(context.Context, *warehouse.Tx, string) (int64, bool, error)

func (r *linkRun) addReview(ctx context.Context, key string, rating float64, rated bool, into map[string]*aggregate, resolve resolver) error {
	agg, ok := into[key]
	if !ok {
		var known bool
		err := r.store.View(ctx, func(tx *warehouse.Tx) error {
			var err error
			_, known, err = resolve(ctx, tx, key)
			return err
		})
		if err != nil {
			return err
		}
		if !known {
			r.orphans++
			r.reviews.skipped++
			stage.RowSkipped(r.logger, "orphan review", key)
			return nil
		}
		agg = &aggregate{}
		into[key] = agg
	}
	agg.add(rating, rated)
	r.reviews.loaded++
	return nil
}
