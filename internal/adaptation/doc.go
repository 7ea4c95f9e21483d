// Package adaptation loads the core of the star schema: books from the
// Goodreads export, then films, snapshot books, cast, reviews and the
// book/film links from the books_films_reviews snapshot. Links resolve to
// surrogate pairs and become one fact row each.
package adaptation
