package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KeyRef pairs a surrogate key with the natural key it was assigned to.
type KeyRef struct {
	SK  int64
	Key string
}

// MovieKeys lists every film in the dimension ordered by surrogate key.
func (s *Store) MovieKeys(ctx context.Context) ([]KeyRef, error) {
	return s.keyRefs(ctx, "SELECT movie_sk, movie_id_source FROM dim_movie ORDER BY movie_sk")
}

// LinkedActorKeys lists the people referenced by at least one bridge row.
func (s *Store) LinkedActorKeys(ctx context.Context) ([]KeyRef, error) {
	return s.keyRefs(ctx, `SELECT a.actor_sk, a.actor_id_source
		FROM dim_actor a
		WHERE EXISTS (SELECT 1 FROM bridge_movie_actor b WHERE b.actor_sk = a.actor_sk)
		ORDER BY a.actor_sk`)
}

func (s *Store) keyRefs(ctx context.Context, query string) ([]KeyRef, error) {
	rows, err := s.reader().query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	var out []KeyRef
	for rows.Next() {
		var ref KeyRef
		if err := rows.Scan(&ref.SK, &ref.Key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// Tables lists the star schema tables in load order.
var Tables = []string{"dim_book", "dim_movie", "dim_actor", "dim_date", "bridge_movie_actor", "fact_book_adaptation"}

// Count returns the row count of one warehouse table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	known := false
	for _, name := range Tables {
		if name == table {
			known = true
			break
		}
	}
	if !known {
		return 0, fmt.Errorf("count: unknown table %q", table)
	}
	var n int64
	if err := s.reader().queryRow(ctx, "SELECT COUNT(1) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// BookMeasures are the rating measures stored on a book.
type BookMeasures struct {
	Rating       *float64
	RatingsCount *int64
	ReviewCount  *int64
}

// BookMeasures reads the rating measures of one book.
func (t *Tx) BookMeasures(ctx context.Context, bookSK int64) (BookMeasures, error) {
	var (
		rating         sql.NullFloat64
		ratings, texts sql.NullInt64
	)
	err := t.queryRow(ctx,
		"SELECT average_rating, ratings_count, text_reviews_count FROM dim_book WHERE book_sk = ?", bookSK,
	).Scan(&rating, &ratings, &texts)
	if err != nil {
		return BookMeasures{}, fmt.Errorf("read book measures: %w", err)
	}
	return BookMeasures{Rating: nullFloat(rating), RatingsCount: nullInt(ratings), ReviewCount: nullInt(texts)}, nil
}

// MovieMeasures are the descriptive measures a fact row copies from a film.
type MovieMeasures struct {
	Rating      *float64
	VoteCount   *int64
	ReleaseDate *string
}

// MovieMeasures reads the rating and release measures of one film.
func (t *Tx) MovieMeasures(ctx context.Context, movieSK int64) (MovieMeasures, error) {
	var (
		rating  sql.NullFloat64
		votes   sql.NullInt64
		release sql.NullString
	)
	err := t.queryRow(ctx,
		"SELECT movie_rating, vote_count, release_date FROM dim_movie WHERE movie_sk = ?", movieSK,
	).Scan(&rating, &votes, &release)
	if err != nil {
		return MovieMeasures{}, fmt.Errorf("read movie measures: %w", err)
	}
	return MovieMeasures{Rating: nullFloat(rating), VoteCount: nullInt(votes), ReleaseDate: dateString(release)}, nil
}

// ReleaseDateSK reads the date key of a film's release, if any.
func (t *Tx) ReleaseDateSK(ctx context.Context, movieSK int64) (*int64, error) {
	m, err := t.MovieMeasures(ctx, movieSK)
	if err != nil || m.ReleaseDate == nil {
		return nil, err
	}
	d, err := parseStoredDate(*m.ReleaseDate)
	if err != nil {
		return nil, err
	}
	sk, err := t.EnsureDate(ctx, d)
	if err != nil {
		return nil, err
	}
	return &sk, nil
}

// Movie is a read-back of one dim_movie row.
type Movie struct {
	SK          int64
	Key         string
	IMDbID      *string
	TMDbID      *int64
	Title       *string
	TitleKey    *string
	ReleaseYear *int64
	Distributor *string
	Genre       *string
	Director    *string
	Popularity  *float64
	Rating      *float64
	VoteCount   *int64
}

// Movie loads a film by natural key; it returns nil when absent.
func (s *Store) Movie(ctx context.Context, key string) (*Movie, error) {
	var (
		m                          Movie
		imdb, title, tkey          sql.NullString
		distributor, genre, direct sql.NullString
		tmdb, year, votes          sql.NullInt64
		pop, rating                sql.NullFloat64
	)
	err := s.reader().queryRow(ctx, `SELECT movie_sk, movie_id_source, imdb_id, tmdb_id, title, title_key,
		release_year, distributor, genre, director, tmdb_popularity, movie_rating, vote_count
		FROM dim_movie WHERE movie_id_source = ?`, key,
	).Scan(&m.SK, &m.Key, &imdb, &tmdb, &title, &tkey, &year, &distributor, &genre, &direct, &pop, &rating, &votes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read movie %s: %w", key, err)
	}
	m.IMDbID, m.TMDbID, m.Title, m.TitleKey = nullString(imdb), nullInt(tmdb), nullString(title), nullString(tkey)
	m.ReleaseYear, m.Distributor, m.Genre, m.Director = nullInt(year), nullString(distributor), nullString(genre), nullString(direct)
	m.Popularity, m.Rating, m.VoteCount = nullFloat(pop), nullFloat(rating), nullInt(votes)
	return &m, nil
}

// Book is a read-back of one dim_book row.
type Book struct {
	SK              int64
	Key             string
	Title           *string
	Authors         *string
	PublicationYear *int64
	LanguageCode    *string
	AverageRating   *float64
}

// Book loads a book by natural key; it returns nil when absent.
func (s *Store) Book(ctx context.Context, key string) (*Book, error) {
	var (
		b                    Book
		title, authors, lang sql.NullString
		year                 sql.NullInt64
		rating               sql.NullFloat64
	)
	err := s.reader().queryRow(ctx, `SELECT book_sk, book_id_source, title, authors, publication_year, language_code, average_rating
		FROM dim_book WHERE book_id_source = ?`, key,
	).Scan(&b.SK, &b.Key, &title, &authors, &year, &lang, &rating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read book %s: %w", key, err)
	}
	b.Title, b.Authors, b.PublicationYear = nullString(title), nullString(authors), nullInt(year)
	b.LanguageCode, b.AverageRating = nullString(lang), nullFloat(rating)
	return &b, nil
}

// Actor is a read-back of one dim_actor row.
type Actor struct {
	SK         int64
	Key        string
	Name       string
	BirthYear  *int64
	Profession *string
	Popularity *float64
}

// Actor loads a person by natural key; it returns nil when absent.
func (s *Store) Actor(ctx context.Context, key string) (*Actor, error) {
	var (
		a    Actor
		year sql.NullInt64
		prof sql.NullString
		pop  sql.NullFloat64
	)
	err := s.reader().queryRow(ctx, `SELECT actor_sk, actor_id_source, name, birth_year, primary_profession, popularity_score
		FROM dim_actor WHERE actor_id_source = ?`, key,
	).Scan(&a.SK, &a.Key, &a.Name, &year, &prof, &pop)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read actor %s: %w", key, err)
	}
	a.BirthYear, a.Profession, a.Popularity = nullInt(year), nullString(prof), nullFloat(pop)
	return &a, nil
}

// Fact is a read-back of one fact row.
type Fact struct {
	BookSK          int64
	MovieSK         int64
	ReleaseDateSK   *int64
	AdaptationType  *string
	Gross           *float64
	TicketsSold     *int64
	Budget          *float64
	Profit          *float64
	ROI             *float64
	BookRating      *float64
	BookReviewCount *int64
	MovieRating     *float64
	MovieVoteCount  *int64
}

// Fact loads the fact row for a surrogate pair; it returns nil when absent.
func (s *Store) Fact(ctx context.Context, bookSK, movieSK int64) (*Fact, error) {
	var (
		f                        Fact
		dateSK, tickets          sql.NullInt64
		reviews, votes           sql.NullInt64
		kind                     sql.NullString
		gross, budget, profit    sql.NullFloat64
		roi, bookRating, mRating sql.NullFloat64
	)
	err := s.reader().queryRow(ctx, `SELECT book_sk, movie_sk, release_date_sk, adaptation_type, box_office_gross,
		tickets_sold, production_budget, profit, roi, book_rating, book_review_count, movie_rating, movie_vote_count
		FROM fact_book_adaptation WHERE book_sk = ? AND movie_sk = ?`, bookSK, movieSK,
	).Scan(&f.BookSK, &f.MovieSK, &dateSK, &kind, &gross, &tickets, &budget, &profit, &roi,
		&bookRating, &reviews, &mRating, &votes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fact %d/%d: %w", bookSK, movieSK, err)
	}
	f.ReleaseDateSK, f.AdaptationType = nullInt(dateSK), nullString(kind)
	f.Gross, f.TicketsSold, f.Budget = nullFloat(gross), nullInt(tickets), nullFloat(budget)
	f.Profit, f.ROI = nullFloat(profit), nullFloat(roi)
	f.BookRating, f.BookReviewCount = nullFloat(bookRating), nullInt(reviews)
	f.MovieRating, f.MovieVoteCount = nullFloat(mRating), nullInt(votes)
	return &f, nil
}

// ActorRole returns the bridged role for a movie/actor pair.
func (s *Store) ActorRole(ctx context.Context, movieSK, actorSK int64) (*string, bool, error) {
	var role sql.NullString
	err := s.reader().queryRow(ctx,
		"SELECT role FROM bridge_movie_actor WHERE movie_sk = ? AND actor_sk = ?", movieSK, actorSK,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read bridge role: %w", err)
	}
	return nullString(role), true, nil
}
