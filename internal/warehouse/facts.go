package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// FactRow is one book/film adaptation at the fact grain.
type FactRow struct {
	BookSK           int64
	MovieSK          int64
	ReleaseDateSK    *int64
	AdaptationType   *string
	Gross            *float64
	TicketsSold      *int64
	Budget           *float64
	BookRating       *float64
	BookRatingsCount *int64
	BookReviewCount  *int64
	MovieRating      *float64
	MovieVoteCount   *int64
}

func factKey(bookSK, movieSK int64) []Column {
	return []Column{{Name: "book_sk", Value: bookSK}, {Name: "movie_sk", Value: movieSK}}
}

// UpsertFact writes one fact row and reports whether it was newly inserted.
// Financial measures only fill gaps so later enrichment keeps precedence;
// descriptive measures follow the latest non-null value. Profit and ROI are
// recomputed from the stored financials afterwards.
func (t *Tx) UpsertFact(ctx context.Context, row FactRow) (bool, error) {
	key := factKey(row.BookSK, row.MovieSK)
	existed, err := t.exists(ctx, "fact_book_adaptation", key)
	if err != nil {
		return false, err
	}
	_, err = t.Upsert(ctx, Upsert{
		Table: "fact_book_adaptation",
		Key:   key,
		Touch: true,
		Columns: []Column{
			{Name: "release_date_sk", Value: value(row.ReleaseDateSK), Policy: OverwriteIfPresent},
			{Name: "adaptation_type", Value: value(row.AdaptationType), Policy: FillIfNull},
			{Name: "box_office_gross", Value: value(row.Gross), Policy: FillIfNull},
			{Name: "tickets_sold", Value: value(row.TicketsSold), Policy: FillIfNull},
			{Name: "production_budget", Value: value(row.Budget), Policy: FillIfNull},
			{Name: "book_rating", Value: value(row.BookRating), Policy: OverwriteIfPresent},
			{Name: "book_ratings_count", Value: value(row.BookRatingsCount), Policy: OverwriteIfPresent},
			{Name: "book_review_count", Value: value(row.BookReviewCount), Policy: OverwriteIfPresent},
			{Name: "movie_rating", Value: value(row.MovieRating), Policy: OverwriteIfPresent},
			{Name: "movie_vote_count", Value: value(row.MovieVoteCount), Policy: OverwriteIfPresent},
		},
	})
	if err != nil {
		return false, err
	}
	if err := t.refreshDerived(ctx, "book_sk = ? AND movie_sk = ?", row.BookSK, row.MovieSK); err != nil {
		return false, err
	}
	return !existed, nil
}

// LinkActor adds a movie/actor bridge row. An existing pair keeps its first
// role; the result reports whether a row was added.
func (t *Tx) LinkActor(ctx context.Context, movieSK, actorSK int64, role *string) (bool, error) {
	res, err := t.exec(ctx,
		"INSERT INTO bridge_movie_actor (movie_sk, actor_sk, role) VALUES (?, ?, ?) ON CONFLICT (movie_sk, actor_sk) DO NOTHING",
		movieSK, actorSK, value(role),
	)
	if err != nil {
		return false, fmt.Errorf("link actor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("link actor: rows affected: %w", err)
	}
	return n > 0, nil
}

// BoxOffice is one reconciled box-office row.
type BoxOffice struct {
	Distributor *string
	Genre       *string
	Gross       *float64
	TicketsSold *int64
}

// ApplyBoxOffice fills missing descriptive fields on the film and overwrites
// gross and tickets on every fact row of the film. It returns the number of
// fact rows touched.
func (t *Tx) ApplyBoxOffice(ctx context.Context, movieSK int64, row BoxOffice) (int64, error) {
	if _, err := t.MergeMovie(ctx, movieSK,
		Column{Name: "distributor", Value: value(row.Distributor), Policy: FillIfNull},
		Column{Name: "genre", Value: value(row.Genre), Policy: FillIfNull},
	); err != nil {
		return 0, err
	}
	n, err := t.Merge(ctx, "fact_book_adaptation", []Column{{Name: "movie_sk", Value: movieSK}}, []Column{
		{Name: "box_office_gross", Value: value(row.Gross), Policy: Overwrite},
		{Name: "tickets_sold", Value: value(row.TicketsSold), Policy: Overwrite},
	}, true)
	if err != nil {
		return 0, err
	}
	if err := t.refreshDerived(ctx, "movie_sk = ?", movieSK); err != nil {
		return 0, err
	}
	return n, nil
}

// MovieDetails carries remote enrichment for one film.
type MovieDetails struct {
	TMDbID     *int64
	Popularity *float64
	Budget     *float64
	Revenue    *float64
}

// ApplyMovieDetails records remote popularity on the film, overwrites the
// budget when known and fills gross only where none is stored. It returns the
// number of fact rows touched.
func (t *Tx) ApplyMovieDetails(ctx context.Context, movieSK int64, d MovieDetails) (int64, error) {
	if _, err := t.MergeMovie(ctx, movieSK,
		Column{Name: "tmdb_id", Value: value(d.TMDbID), Policy: FillIfNull},
		Column{Name: "tmdb_popularity", Value: value(d.Popularity), Policy: OverwriteIfPresent},
	); err != nil {
		return 0, err
	}
	if d.Budget == nil && d.Revenue == nil {
		return 0, nil
	}
	n, err := t.Merge(ctx, "fact_book_adaptation", []Column{{Name: "movie_sk", Value: movieSK}}, []Column{
		{Name: "production_budget", Value: value(d.Budget), Policy: OverwriteIfPresent},
		{Name: "box_office_gross", Value: value(d.Revenue), Policy: FillIfNull},
	}, true)
	if err != nil {
		return 0, err
	}
	if err := t.refreshDerived(ctx, "movie_sk = ?", movieSK); err != nil {
		return 0, err
	}
	return n, nil
}

// FillMovieRatings fills missing rating and vote count on a film and its fact
// rows. It reports whether the film exists.
func (t *Tx) FillMovieRatings(ctx context.Context, movieKey string, rating *float64, votes *int64) (bool, error) {
	sk, ok, err := t.MovieSK(ctx, movieKey)
	if err != nil || !ok {
		return false, err
	}
	if _, err := t.MergeMovie(ctx, sk,
		Column{Name: "movie_rating", Value: value(rating), Policy: FillIfNull},
		Column{Name: "vote_count", Value: value(votes), Policy: FillIfNull},
	); err != nil {
		return false, err
	}
	if _, err := t.Merge(ctx, "fact_book_adaptation", []Column{{Name: "movie_sk", Value: sk}}, []Column{
		{Name: "movie_rating", Value: value(rating), Policy: FillIfNull},
		{Name: "movie_vote_count", Value: value(votes), Policy: FillIfNull},
	}, true); err != nil {
		return false, err
	}
	return true, nil
}

// FillFactReviews fills review-derived measures on one fact row.
func (t *Tx) FillFactReviews(ctx context.Context, bookSK, movieSK int64, bookRating *float64, bookReviews *int64, movieRating *float64, movieVotes *int64) error {
	_, err := t.Merge(ctx, "fact_book_adaptation", factKey(bookSK, movieSK), []Column{
		{Name: "book_rating", Value: value(bookRating), Policy: FillIfNull},
		{Name: "book_review_count", Value: value(bookReviews), Policy: FillIfNull},
		{Name: "movie_rating", Value: value(movieRating), Policy: FillIfNull},
		{Name: "movie_vote_count", Value: value(movieVotes), Policy: FillIfNull},
	}, false)
	return err
}

type financials struct {
	bookSK  int64
	movieSK int64
	gross   sql.NullFloat64
	budget  sql.NullFloat64
}

func (t *Tx) refreshDerived(ctx context.Context, where string, args ...any) error {
	rows, err := t.query(ctx,
		"SELECT book_sk, movie_sk, box_office_gross, production_budget FROM fact_book_adaptation WHERE "+where, args...)
	if err != nil {
		return fmt.Errorf("read financials: %w", err)
	}
	var pending []financials
	for rows.Next() {
		var f financials
		if err := rows.Scan(&f.bookSK, &f.movieSK, &f.gross, &f.budget); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan financials: %w", err)
		}
		pending = append(pending, f)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return fmt.Errorf("read financials: %w", err)
	}

	for _, f := range pending {
		profit, roi := Derive(nullFloat(f.gross), nullFloat(f.budget))
		if _, err := t.exec(ctx,
			"UPDATE fact_book_adaptation SET profit = ?, roi = ? WHERE book_sk = ? AND movie_sk = ?",
			value(profit), value(roi), f.bookSK, f.movieSK,
		); err != nil {
			return fmt.Errorf("update derived measures: %w", err)
		}
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
