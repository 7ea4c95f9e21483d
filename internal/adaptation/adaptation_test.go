package adaptation_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"reelshelf/internal/adaptation"
	"reelshelf/internal/config"
	"reelshelf/internal/services"
	"reelshelf/internal/testsupport"
	"reelshelf/internal/warehouse"
)

func matrixSnapshot(t *testing.T, path string, extra ...testsupport.SnapshotTable) string {
	t.Helper()
	tables := []testsupport.SnapshotTable{
		{
			Name:    "movies",
			Columns: []string{"imdb_id", "title", "release_date"},
			Rows:    [][]any{{"tt0133093", "The Matrix", "1999-03-31"}},
		},
		{
			Name:    "books",
			Columns: []string{"goodreads_book_id", "title"},
			Rows:    [][]any{{"123", "Neuromancer"}},
		},
		{
			Name:    "booksmovies",
			Columns: []string{"goodreads_book_id", "imdb_id"},
			Rows:    [][]any{{"123", "tt0133093"}, {"123", "tt0133093"}},
		},
	}
	return testsupport.WriteSnapshot(t, path, append(tables, extra...)...)
}

func newLinks(t *testing.T, extra ...testsupport.SnapshotTable) (*adaptation.LinksStage, *warehouse.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Sources.BooksFilmsReviews = matrixSnapshot(t, filepath.Join(testsupport.BaseDir(cfg), "bfr.db"), extra...)
	store := testsupport.MustOpenStore(t, cfg)
	return adaptation.NewLinksStage(cfg, store), store
}

func runStage(t *testing.T, h interface {
	Prepare(context.Context) error
}, exec func(context.Context) error) {
	t.Helper()
	ctx := context.Background()
	if err := h.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := exec(ctx); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func count(t *testing.T, store *warehouse.Store, table string) int64 {
	t.Helper()
	n, err := store.Count(context.Background(), table)
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestLinksBuildsOneFactWithoutFinancials(t *testing.T) {
	links, store := newLinks(t)
	ctx := context.Background()
	if err := links.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	summary, err := links.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Inserted != 1 || summary.Processed != 1 {
		t.Fatalf("unexpected summary: %s", summary)
	}

	movie, err := store.Movie(ctx, "0133093")
	if err != nil || movie == nil {
		t.Fatalf("movie not stored: %v", err)
	}
	book, err := store.Book(ctx, "123")
	if err != nil || book == nil {
		t.Fatalf("book not stored: %v", err)
	}
	fact, err := store.Fact(ctx, book.SK, movie.SK)
	if err != nil || fact == nil {
		t.Fatalf("fact not stored: %v", err)
	}
	if fact.Gross != nil || fact.Budget != nil || fact.Profit != nil || fact.ROI != nil {
		t.Fatalf("expected no financial measures, got %+v", fact)
	}
	if fact.ReleaseDateSK == nil || *fact.ReleaseDateSK != 19990331 {
		t.Fatalf("expected release date key 19990331, got %v", fact.ReleaseDateSK)
	}
	if fact.AdaptationType == nil || *fact.AdaptationType != "direct" {
		t.Fatalf("expected direct adaptation, got %v", fact.AdaptationType)
	}
	if got := count(t, store, "dim_date"); got != 1 {
		t.Fatalf("expected 1 date row, got %d", got)
	}
}

func TestLinksRerunLeavesCountsUnchanged(t *testing.T) {
	links, store := newLinks(t)
	ctx := context.Background()
	if _, err := links.Execute(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := map[string]int64{}
	for _, table := range warehouse.Tables {
		before[table] = count(t, store, table)
	}

	summary, err := links.Execute(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Inserted != 0 || summary.Updated != 1 {
		t.Fatalf("expected rerun to update the existing fact, got %s", summary)
	}
	for _, table := range warehouse.Tables {
		if got := count(t, store, table); got != before[table] {
			t.Fatalf("%s count changed on rerun: %d -> %d", table, before[table], got)
		}
	}
}

func TestLinksCarriesSnapshotFinancialsAndCast(t *testing.T) {
	links, store := newLinks(t,
		testsupport.SnapshotTable{
			Name:    "credits",
			Columns: []string{"imdb_id", "person_id", "name", "category", "character"},
			Rows: [][]any{
				{"tt0133093", "nm0000206", "Keanu Reeves", "actor", `["Neo"]`},
				{"tt0133093", "nm0905154", "Lana Wachowski", "director", ""},
				{"tt9999999", "nm0000001", "Nobody", "actor", "Ghost"},
			},
		},
		testsupport.SnapshotTable{
			Name:    "movie_reviews",
			Columns: []string{"imdb_id", "rating"},
			Rows:    [][]any{{"tt0133093", 8.0}, {"tt0133093", 9.0}, {"tt0000001", 5.0}},
		},
	)
	ctx := context.Background()
	summary, err := links.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	movie, err := store.Movie(ctx, "0133093")
	if err != nil || movie == nil {
		t.Fatalf("movie not stored: %v", err)
	}
	if movie.Director == nil || *movie.Director != "Lana Wachowski" {
		t.Fatalf("expected director from credits, got %v", movie.Director)
	}
	actor, err := store.Actor(ctx, "nm0000206")
	if err != nil || actor == nil {
		t.Fatalf("actor not stored: %v", err)
	}
	role, ok, err := store.ActorRole(ctx, movie.SK, actor.SK)
	if err != nil || !ok || role == nil || *role != "Neo" {
		t.Fatalf("expected Neo role, got %v %v %v", role, ok, err)
	}
	if got := count(t, store, "dim_actor"); got != 1 {
		t.Fatalf("expected only the linked actor, got %d", got)
	}

	book, _ := store.Book(ctx, "123")
	fact, err := store.Fact(ctx, book.SK, movie.SK)
	if err != nil || fact == nil {
		t.Fatalf("fact not stored: %v", err)
	}
	if fact.MovieRating == nil || *fact.MovieRating != 8.5 {
		t.Fatalf("expected review mean 8.5, got %v", fact.MovieRating)
	}
	if fact.MovieVoteCount == nil || *fact.MovieVoteCount != 2 {
		t.Fatalf("expected 2 reviews, got %v", fact.MovieVoteCount)
	}
	if summary.Skipped < 1 {
		t.Fatalf("expected the orphan review to be skipped, got %s", summary)
	}
}

func TestLinksFallsBackToWikiMatching(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sources.BooksFilmsReviews = testsupport.WriteSnapshot(t, filepath.Join(testsupport.BaseDir(cfg), "bfr.db"),
		testsupport.SnapshotTable{Name: "movies", Columns: []string{"id", "title"}, Rows: [][]any{{133093, "The Matrix"}}},
		testsupport.SnapshotTable{Name: "books", Columns: []string{"book_id", "title"}, Rows: [][]any{{123, "Neuromancer"}}},
		testsupport.SnapshotTable{Name: "booksmovies", Columns: []string{"goodreads_book_id", "imdb_id"}},
		testsupport.SnapshotTable{
			Name:    "wiki_book_movie_ids_matching",
			Columns: []string{"book_id", "imdb_id"},
			Rows:    [][]any{{123, "tt0133093"}, {999, "tt0133093"}},
		},
	)
	store := testsupport.MustOpenStore(t, cfg)
	summary, err := adaptation.NewLinksStage(cfg, store).Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Inserted != 1 || summary.Skipped != 1 {
		t.Fatalf("expected one fact and one unresolved link, got %s", summary)
	}
}

func TestBooksStageCountsInsertsAndUpdates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sources.Books = testsupport.WriteLines(t, filepath.Join(testsupport.BaseDir(cfg), "books.csv"),
		"bookID,title,authors,average_rating,isbn,isbn13,language_code,  num_pages,ratings_count,text_reviews_count,publication_date",
		`123,Neuromancer,William Gibson/William Gibson,4.0,0441569595,9780441569595,eng,271,"12,345",900,7/1/1984`,
		`456,Count Zero,William Gibson,3.9,,,eng,256,100,10,1986`,
		`,Missing Id,Nobody,1.0,,,eng,1,1,1,2000`,
	)
	store := testsupport.MustOpenStore(t, cfg)
	books := adaptation.NewBooksStage(cfg, store)
	ctx := context.Background()
	if err := books.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	summary, err := books.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Inserted != 2 || summary.Skipped != 1 || summary.Updated != 0 {
		t.Fatalf("unexpected first summary: %s", summary)
	}
	book, err := store.Book(ctx, "123")
	if err != nil || book == nil {
		t.Fatalf("book not stored: %v", err)
	}
	if book.Authors == nil || *book.Authors != "William Gibson" {
		t.Fatalf("expected deduplicated authors, got %v", book.Authors)
	}
	if book.PublicationYear == nil || *book.PublicationYear != 1984 {
		t.Fatalf("expected 1984, got %v", book.PublicationYear)
	}

	summary, err = books.Execute(ctx)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if summary.Inserted != 0 || summary.Updated != 2 {
		t.Fatalf("unexpected rerun summary: %s", summary)
	}
}

func TestBooksFileStaysAuthoritativeOverSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	cfg.Sources.Books = testsupport.WriteLines(t, filepath.Join(base, "books.tsv"),
		"book_id\ttitle",
		"123\tNeuromancer (Sprawl #1)",
	)
	cfg.Sources.BooksFilmsReviews = matrixSnapshot(t, filepath.Join(base, "bfr.db"))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	books := adaptation.NewBooksStage(cfg, store)
	links := adaptation.NewLinksStage(cfg, store)
	runStage(t, books, func(ctx context.Context) error { _, err := books.Execute(ctx); return err })
	runStage(t, links, func(ctx context.Context) error { _, err := links.Execute(ctx); return err })

	book, err := store.Book(ctx, "123")
	if err != nil || book == nil {
		t.Fatalf("book not stored: %v", err)
	}
	if book.Title == nil || *book.Title != "Neuromancer (Sprawl #1)" {
		t.Fatalf("snapshot overwrote the books file title: %v", book.Title)
	}
}

func TestPrepareRejectsUnusableSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sources = config.Sources{Books: testsupport.WriteFile(t, filepath.Join(testsupport.BaseDir(cfg), "books.json"), "{}")}
	store := testsupport.MustOpenStore(t, cfg)

	err := adaptation.NewBooksStage(cfg, store).Prepare(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for .json, got %v", err)
	}
	err = adaptation.NewLinksStage(cfg, store).Prepare(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing snapshot, got %v", err)
	}
}
