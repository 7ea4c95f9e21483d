package adaptation

import (
	"reelshelf/internal/normalize"
	"reelshelf/internal/source"
	"reelshelf/internal/warehouse"
)

var bookSchema = source.Schema{
	source.Aliases("id", "book_id", "bookid", "goodreads_book_id"),
	source.Aliases("title", "title"),
	source.Aliases("authors", "authors", "author"),
	source.Aliases("rating", "average_rating"),
	source.Aliases("language", "language_code"),
	source.Aliases("isbn", "isbn"),
	source.Aliases("isbn13", "isbn13"),
	source.Aliases("ratings", "ratings_count"),
	source.Aliases("text_reviews", "text_reviews_count", "work_text_reviews_count"),
	source.Aliases("published", "publication_date", "original_publication_year"),
	source.Aliases("pages", "num_pages", "pages"),
}

// bookRow maps one bound record; false means the id did not resolve.
func bookRow(bind source.Binding, r source.Record) (warehouse.BookRow, bool) {
	key, ok := normalize.BookKey(bind.Value(r, "id"))
	if !ok {
		return warehouse.BookRow{}, false
	}
	authors, hasAuthors := normalize.Authors(bind.Value(r, "authors"))
	isbn, hasISBN := normalize.ISBN(bind.Value(r, "isbn"))
	isbn13, hasISBN13 := normalize.ISBN(bind.Value(r, "isbn13"))
	lang, hasLang := normalize.LanguageCode(bind.Value(r, "language"))
	row := warehouse.BookRow{
		Key:              key,
		Title:            textOf(bind.Value(r, "title"), normalize.MaxTitle),
		Authors:          warehouse.Opt(authors, hasAuthors),
		ISBN:             warehouse.Opt(isbn, hasISBN),
		ISBN13:           warehouse.Opt(isbn13, hasISBN13),
		PublicationDate:  dateOf(bind.Value(r, "published")),
		LanguageCode:     warehouse.Opt(lang, hasLang),
		NumPages:         intOf(bind.Value(r, "pages"), normalize.Quantity),
		AverageRating:    floatOf(bind.Value(r, "rating"), normalize.BookRating),
		RatingsCount:     intOf(bind.Value(r, "ratings"), normalize.Quantity),
		TextReviewsCount: intOf(bind.Value(r, "text_reviews"), normalize.Quantity),
	}
	return row, true
}

var movieSchema = source.Schema{
	source.Aliases("imdb", "imdb_id", "imdbid"),
	source.Aliases("id", "id", "movie_id"),
	source.Aliases("title", "title"),
	source.Aliases("original_title", "original_title"),
	source.Aliases("release", "release_date", "released"),
	source.Aliases("distributor", "distributor"),
	source.Aliases("budget", "budget"),
	source.Aliases("revenue", "revenue", "gross"),
	source.Aliases("rating", "vote_average", "imdb_rating"),
	source.Aliases("votes", "vote_count", "imdb_votes"),
	source.Aliases("tmdb", "tmdb_id"),
}

// movieInput is one snapshot film plus the financials the fact row takes.
type movieInput struct {
	row     warehouse.MovieRow
	budget  *float64
	revenue *float64
}

func movieKeyOf(bind source.Binding, r source.Record) (string, bool) {
	if key, ok := normalize.MovieKey(bind.Value(r, "imdb")); ok {
		return key, true
	}
	return normalize.MovieKeyFromNumber(bind.Value(r, "id"))
}

func movieRow(bind source.Binding, r source.Record) (movieInput, bool) {
	key, ok := movieKeyOf(bind, r)
	if !ok {
		return movieInput{}, false
	}
	title := first(
		textOf(bind.Value(r, "title"), normalize.MaxTitle),
		textOf(bind.Value(r, "original_title"), normalize.MaxTitle),
	)
	row := warehouse.MovieRow{
		Key:         key,
		Title:       title,
		ReleaseDate: dateOf(bind.Value(r, "release")),
		Distributor: textOf(bind.Value(r, "distributor"), normalize.MaxTitle),
		Rating:      floatOf(bind.Value(r, "rating"), normalize.MovieRating),
		VoteCount:   intOf(bind.Value(r, "votes"), normalize.Quantity),
		TMDbID:      intOf(bind.Value(r, "tmdb"), normalize.Int),
	}
	if imdb, err := normalize.RemoteID(normalize.KindMovie, key); err == nil {
		row.IMDbID = &imdb
	}
	if title != nil {
		row.TitleKey = stringPtr(normalize.TitleKey(*title))
	}
	return movieInput{
		row:     row,
		budget:  amountOf(bind.Value(r, "budget")),
		revenue: amountOf(bind.Value(r, "revenue")),
	}, true
}
