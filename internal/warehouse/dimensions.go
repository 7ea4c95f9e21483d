package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelshelf/internal/normalize"
)

// Conflict selects what a dimension write does when the natural key exists.
type Conflict int

const (
	// ConflictMerge merges incoming non-null values into the stored row.
	ConflictMerge Conflict = iota
	// ConflictKeep keeps the stored row untouched.
	ConflictKeep
)

func (c Conflict) policy(p MergePolicy) MergePolicy {
	if c == ConflictKeep {
		return Ignore
	}
	return p
}

// BookRow is a normalized book ready for dim_book.
type BookRow struct {
	Key              string
	Title            *string
	Authors          *string
	ISBN             *string
	ISBN13           *string
	PublicationDate  *time.Time
	LanguageCode     *string
	NumPages         *int64
	AverageRating    *float64
	RatingsCount     *int64
	TextReviewsCount *int64
}

// UpsertBook writes a book keyed by its source id and returns book_sk.
func (t *Tx) UpsertBook(ctx context.Context, row BookRow, mode Conflict) (int64, error) {
	p := mode.policy(OverwriteIfPresent)
	return t.Upsert(ctx, Upsert{
		Table:     "dim_book",
		Key:       []Column{{Name: "book_id_source", Value: nonEmpty(row.Key)}},
		Returning: "book_sk",
		Touch:     true,
		Columns: []Column{
			{Name: "title", Value: value(row.Title), Policy: p},
			{Name: "authors", Value: value(row.Authors), Policy: p},
			{Name: "isbn", Value: value(row.ISBN), Policy: p},
			{Name: "isbn13", Value: value(row.ISBN13), Policy: p},
			{Name: "publication_date", Value: dateValue(row.PublicationDate), Policy: p},
			{Name: "publication_year", Value: yearValue(row.PublicationDate), Policy: p},
			{Name: "language_code", Value: value(row.LanguageCode), Policy: p},
			{Name: "num_pages", Value: value(row.NumPages), Policy: p},
			{Name: "average_rating", Value: value(row.AverageRating), Policy: p},
			{Name: "ratings_count", Value: value(row.RatingsCount), Policy: p},
			{Name: "text_reviews_count", Value: value(row.TextReviewsCount), Policy: p},
		},
	})
}

// MovieRow is a normalized film ready for dim_movie.
type MovieRow struct {
	Key         string
	IMDbID      *string
	TMDbID      *int64
	Title       *string
	TitleKey    *string
	ReleaseDate *time.Time
	Distributor *string
	Genre       *string
	Director    *string
	Popularity  *float64
	Rating      *float64
	VoteCount   *int64
}

// UpsertMovie writes a film keyed by its source id and returns movie_sk. The
// title key is derived from the title when the row carries none.
func (t *Tx) UpsertMovie(ctx context.Context, row MovieRow, mode Conflict) (int64, error) {
	p := mode.policy(OverwriteIfPresent)
	if row.TitleKey == nil && row.Title != nil {
		key := normalize.TitleKey(*row.Title)
		row.TitleKey = &key
	}
	return t.Upsert(ctx, Upsert{
		Table:     "dim_movie",
		Key:       []Column{{Name: "movie_id_source", Value: nonEmpty(row.Key)}},
		Returning: "movie_sk",
		Touch:     true,
		Columns: []Column{
			{Name: "imdb_id", Value: value(row.IMDbID), Policy: p},
			{Name: "tmdb_id", Value: value(row.TMDbID), Policy: p},
			{Name: "title", Value: value(row.Title), Policy: p},
			{Name: "title_key", Value: value(row.TitleKey), Policy: p},
			{Name: "release_date", Value: dateValue(row.ReleaseDate), Policy: p},
			{Name: "release_year", Value: yearValue(row.ReleaseDate), Policy: p},
			{Name: "distributor", Value: value(row.Distributor), Policy: p},
			{Name: "genre", Value: value(row.Genre), Policy: p},
			{Name: "director", Value: value(row.Director), Policy: p},
			{Name: "tmdb_popularity", Value: value(row.Popularity), Policy: p},
			{Name: "movie_rating", Value: value(row.Rating), Policy: p},
			{Name: "vote_count", Value: value(row.VoteCount), Policy: p},
		},
	})
}

// ActorRow is a normalized person ready for dim_actor.
type ActorRow struct {
	Key        string
	Name       string
	BirthYear  *int64
	Profession *string
	Popularity *float64
}

// UpsertActor writes a person keyed by source id and returns actor_sk. Under
// ConflictKeep an existing row keeps its name; otherwise the incoming name wins.
func (t *Tx) UpsertActor(ctx context.Context, row ActorRow, mode Conflict) (int64, error) {
	if row.Name == "" {
		return 0, fmt.Errorf("upsert dim_actor %s: name is required", row.Key)
	}
	p := mode.policy(OverwriteIfPresent)
	return t.Upsert(ctx, Upsert{
		Table:     "dim_actor",
		Key:       []Column{{Name: "actor_id_source", Value: nonEmpty(row.Key)}},
		Returning: "actor_sk",
		Touch:     true,
		Columns: []Column{
			{Name: "name", Value: row.Name, Policy: p},
			{Name: "birth_year", Value: value(row.BirthYear), Policy: p},
			{Name: "primary_profession", Value: value(row.Profession), Policy: p},
			{Name: "popularity_score", Value: value(row.Popularity), Policy: p},
		},
	})
}

// EnsureDate inserts the calendar row for d if absent and returns its key.
func (t *Tx) EnsureDate(ctx context.Context, d time.Time) (int64, error) {
	key := normalize.DateKey(d)
	_, err := t.Upsert(ctx, Upsert{
		Table: "dim_date",
		Key:   []Column{{Name: "date_sk", Value: key}},
		Columns: []Column{
			{Name: "full_date", Value: d.Format(dateLayout), Policy: Ignore},
			{Name: "year", Value: int64(d.Year()), Policy: Ignore},
			{Name: "month", Value: int64(d.Month()), Policy: Ignore},
			{Name: "day", Value: int64(d.Day()), Policy: Ignore},
			{Name: "quarter", Value: int64(normalize.Quarter(d)), Policy: Ignore},
			{Name: "weekday", Value: int64(d.Weekday()), Policy: Ignore},
			{Name: "weekday_name", Value: d.Weekday().String(), Policy: Ignore},
		},
	})
	if err != nil {
		return 0, err
	}
	return key, nil
}

// BookSK resolves a book source key.
func (t *Tx) BookSK(ctx context.Context, key string) (int64, bool, error) {
	return t.lookupKey(ctx, "dim_book", "book_sk", []Column{{Name: "book_id_source", Value: key}})
}

// MovieSK resolves a film source key.
func (t *Tx) MovieSK(ctx context.Context, key string) (int64, bool, error) {
	return t.lookupKey(ctx, "dim_movie", "movie_sk", []Column{{Name: "movie_id_source", Value: key}})
}

// ActorSK resolves a person source key.
func (t *Tx) ActorSK(ctx context.Context, key string) (int64, bool, error) {
	return t.lookupKey(ctx, "dim_actor", "actor_sk", []Column{{Name: "actor_id_source", Value: key}})
}

// FindMovieByTitleYear matches a film by folded title and release year. Ties
// resolve to the oldest row.
func (t *Tx) FindMovieByTitleYear(ctx context.Context, titleKey string, year int) (int64, bool, error) {
	var sk int64
	err := t.queryRow(ctx,
		"SELECT movie_sk FROM dim_movie WHERE title_key = ? AND release_year = ? ORDER BY movie_sk LIMIT 1",
		titleKey, int64(year),
	).Scan(&sk)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("find movie by title/year: %w", err)
	}
	return sk, true, nil
}

// MergeMovie applies policy-driven column updates to one film.
func (t *Tx) MergeMovie(ctx context.Context, movieSK int64, cols ...Column) (bool, error) {
	n, err := t.Merge(ctx, "dim_movie", []Column{{Name: "movie_sk", Value: movieSK}}, cols, true)
	return n > 0, err
}

// MergeActor applies policy-driven column updates to one person.
func (t *Tx) MergeActor(ctx context.Context, actorSK int64, cols ...Column) (bool, error) {
	n, err := t.Merge(ctx, "dim_actor", []Column{{Name: "actor_sk", Value: actorSK}}, cols, true)
	return n > 0, err
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
