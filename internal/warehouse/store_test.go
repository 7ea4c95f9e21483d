package warehouse_test

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"reelshelf/internal/testsupport"
	"reelshelf/internal/warehouse"
)

func str(s string) *string   { return &s }
func i64(n int64) *int64     { return &n }
func f64(f float64) *float64 { return &f }
func day(y, m, d int) *time.Time {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return &t
}

func openStore(t *testing.T) *warehouse.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func TestOpenIsReentrant(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := warehouse.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	second, err := warehouse.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.Warehouse.DSN)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	_, err = warehouse.Open(context.Background(), cfg)
	if !errors.Is(err, warehouse.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestUpsertBookMergesNonNullValues(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	var first, second int64
	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		var err error
		first, err = tx.UpsertBook(ctx, warehouse.BookRow{
			Key:             "22328",
			Title:           str("Neuromancer"),
			Authors:         str("William Gibson"),
			PublicationDate: day(1984, 7, 1),
			AverageRating:   f64(3.89),
		}, warehouse.ConflictMerge)
		if err != nil {
			return err
		}
		second, err = tx.UpsertBook(ctx, warehouse.BookRow{
			Key:           "22328",
			Title:         nil,
			AverageRating: f64(3.9),
			LanguageCode:  str("eng"),
		}, warehouse.ConflictMerge)
		return err
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first != second {
		t.Fatalf("surrogate key changed: %d vs %d", first, second)
	}

	book, err := store.Book(ctx, "22328")
	if err != nil || book == nil {
		t.Fatalf("read book: %v %v", book, err)
	}
	if book.Title == nil || *book.Title != "Neuromancer" {
		t.Fatalf("null title should not overwrite, got %v", book.Title)
	}
	if book.AverageRating == nil || *book.AverageRating != 3.9 {
		t.Fatalf("rating should be overwritten, got %v", book.AverageRating)
	}
	if book.PublicationYear == nil || *book.PublicationYear != 1984 {
		t.Fatalf("publication year = %v", book.PublicationYear)
	}
	if book.LanguageCode == nil || *book.LanguageCode != "eng" {
		t.Fatalf("language = %v", book.LanguageCode)
	}
}

func TestUpsertBookKeepModeReturnsExistingKey(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	var first, second int64
	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		var err error
		if first, err = tx.UpsertBook(ctx, warehouse.BookRow{Key: "1", Title: str("Original")}, warehouse.ConflictMerge); err != nil {
			return err
		}
		second, err = tx.UpsertBook(ctx, warehouse.BookRow{Key: "1", Title: str("Snapshot")}, warehouse.ConflictKeep)
		return err
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first != second || first == 0 {
		t.Fatalf("keep mode should resolve the existing key: %d vs %d", first, second)
	}
	book, _ := store.Book(ctx, "1")
	if book == nil || book.Title == nil || *book.Title != "Original" {
		t.Fatalf("keep mode overwrote the title: %+v", book)
	}
}

func TestEnsureDateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		for i := 0; i < 2; i++ {
			key, err := tx.EnsureDate(ctx, *day(1999, 3, 31))
			if err != nil {
				return err
			}
			if key != 19990331 {
				t.Fatalf("date key = %d", key)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ensure date: %v", err)
	}
	if n, _ := store.Count(ctx, "dim_date"); n != 1 {
		t.Fatalf("expected one date row, got %d", n)
	}
}

type pair struct{ book, movie int64 }

func seedPair(t *testing.T, store *warehouse.Store) pair {
	t.Helper()
	ctx := context.Background()
	var p pair
	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		var err error
		if p.book, err = tx.UpsertBook(ctx, warehouse.BookRow{Key: "22328", Title: str("Neuromancer")}, warehouse.ConflictMerge); err != nil {
			return err
		}
		p.movie, err = tx.UpsertMovie(ctx, warehouse.MovieRow{
			Key:         "0133093",
			IMDbID:      str("tt0133093"),
			Title:       str("The Matrix"),
			TitleKey:    str("the matrix"),
			ReleaseDate: day(1999, 3, 31),
		}, warehouse.ConflictMerge)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return p
}

func TestUpsertFactDerivesMeasures(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	p := seedPair(t, store)

	var inserted, again bool
	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		row := warehouse.FactRow{
			BookSK:  p.book,
			MovieSK: p.movie,
			Gross:   f64(463517383),
			Budget:  f64(63000000),
		}
		var err error
		if inserted, err = tx.UpsertFact(ctx, row); err != nil {
			return err
		}
		again, err = tx.UpsertFact(ctx, row)
		return err
	})
	if err != nil {
		t.Fatalf("upsert fact: %v", err)
	}
	if !inserted || again {
		t.Fatalf("inserted=%v again=%v", inserted, again)
	}
	if n, _ := store.Count(ctx, "fact_book_adaptation"); n != 1 {
		t.Fatalf("expected one fact row, got %d", n)
	}
	fact, err := store.Fact(ctx, p.book, p.movie)
	if err != nil || fact == nil {
		t.Fatalf("read fact: %v %v", fact, err)
	}
	if fact.Profit == nil || *fact.Profit != 400517383 {
		t.Fatalf("profit = %v", fact.Profit)
	}
	if fact.ROI == nil || math.Abs(*fact.ROI-635.7418777777778) > 1e-6 {
		t.Fatalf("roi = %v", fact.ROI)
	}
}

func TestApplyBoxOfficeOverwritesGrossAndFillsGenre(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	p := seedPair(t, store)

	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		if _, err := tx.UpsertFact(ctx, warehouse.FactRow{BookSK: p.book, MovieSK: p.movie, Gross: f64(1), Budget: f64(63000000)}); err != nil {
			return err
		}
		if _, err := tx.MergeMovie(ctx, p.movie, warehouse.Column{Name: "genre", Value: "Action", Policy: warehouse.Overwrite}); err != nil {
			return err
		}
		n, err := tx.ApplyBoxOffice(ctx, p.movie, warehouse.BoxOffice{
			Distributor: str("Warner Bros."),
			Genre:       str("Sci-Fi"),
			Gross:       f64(171479930),
			TicketsSold: i64(36253707),
		})
		if err != nil {
			return err
		}
		if n != 1 {
			t.Fatalf("expected one fact row touched, got %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("apply box office: %v", err)
	}
	movie, _ := store.Movie(ctx, "0133093")
	if movie.Genre == nil || *movie.Genre != "Action" {
		t.Fatalf("genre should be fill-if-null, got %v", movie.Genre)
	}
	if movie.Distributor == nil || *movie.Distributor != "Warner Bros." {
		t.Fatalf("distributor = %v", movie.Distributor)
	}
	fact, _ := store.Fact(ctx, p.book, p.movie)
	if fact.Gross == nil || *fact.Gross != 171479930 {
		t.Fatalf("gross = %v", fact.Gross)
	}
	if fact.Profit == nil || *fact.Profit != 171479930-63000000 {
		t.Fatalf("profit not recomputed: %v", fact.Profit)
	}
}

func TestApplyMovieDetailsFillsGrossOnly(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	p := seedPair(t, store)

	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		if _, err := tx.UpsertFact(ctx, warehouse.FactRow{BookSK: p.book, MovieSK: p.movie, Gross: f64(500)}); err != nil {
			return err
		}
		_, err := tx.ApplyMovieDetails(ctx, p.movie, warehouse.MovieDetails{
			TMDbID:     i64(603),
			Popularity: f64(83.2),
			Budget:     f64(100),
			Revenue:    f64(900),
		})
		return err
	})
	if err != nil {
		t.Fatalf("apply details: %v", err)
	}
	fact, _ := store.Fact(ctx, p.book, p.movie)
	if *fact.Gross != 500 || *fact.Budget != 100 {
		t.Fatalf("gross=%v budget=%v", *fact.Gross, *fact.Budget)
	}
	if *fact.Profit != 400 || *fact.ROI != 400 {
		t.Fatalf("profit=%v roi=%v", *fact.Profit, *fact.ROI)
	}
	movie, _ := store.Movie(ctx, "0133093")
	if movie.TMDbID == nil || *movie.TMDbID != 603 || movie.Popularity == nil {
		t.Fatalf("movie enrichment missing: %+v", movie)
	}
}

func TestLinkActorKeepsFirstRole(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	p := seedPair(t, store)

	var actorSK int64
	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		var err error
		actorSK, err = tx.UpsertActor(ctx, warehouse.ActorRow{Key: "nm0000206", Name: "Keanu Reeves"}, warehouse.ConflictKeep)
		if err != nil {
			return err
		}
		added, err := tx.LinkActor(ctx, p.movie, actorSK, str("Neo"))
		if err != nil || !added {
			t.Fatalf("first link: added=%v err=%v", added, err)
		}
		added, err = tx.LinkActor(ctx, p.movie, actorSK, str("Thomas Anderson"))
		if err != nil || added {
			t.Fatalf("duplicate link: added=%v err=%v", added, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	role, ok, err := store.ActorRole(ctx, p.movie, actorSK)
	if err != nil || !ok || role == nil || *role != "Neo" {
		t.Fatalf("role = %v ok=%v err=%v", role, ok, err)
	}
	linked, err := store.LinkedActorKeys(ctx)
	if err != nil || len(linked) != 1 || linked[0].Key != "nm0000206" {
		t.Fatalf("linked actors = %+v err=%v", linked, err)
	}
}

func TestStageActorsMergesChunk(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		_, err := tx.UpsertActor(ctx, warehouse.ActorRow{Key: "nm0000206", Name: "K. Reeves", BirthYear: i64(1964)}, warehouse.ConflictMerge)
		return err
	})
	if err != nil {
		t.Fatalf("seed actor: %v", err)
	}

	n, err := store.StageActors(ctx, []warehouse.ActorRow{
		{Key: "nm0000206", Name: "Keanu Reeves", Profession: str("actor")},
		{Key: "nm0000401", Name: "Laurence Fishburne", BirthYear: i64(1961)},
		{Key: "nm0000401", Name: "Laurence Fishburne", BirthYear: i64(1961), Profession: str("actor")},
	})
	if err != nil {
		t.Fatalf("stage actors: %v", err)
	}
	if n != 2 {
		t.Fatalf("applied = %d, want 2", n)
	}
	keanu, _ := store.Actor(ctx, "nm0000206")
	if keanu.Name != "Keanu Reeves" || keanu.BirthYear != nil || keanu.Profession == nil || *keanu.Profession != "actor" {
		t.Fatalf("merged actor = %+v", keanu)
	}
	if count, _ := store.Count(ctx, "dim_actor"); count != 2 {
		t.Fatalf("actor count = %d", count)
	}

	// A second chunk on the same connection must not trip over the staging table.
	if _, err := store.StageActors(ctx, []warehouse.ActorRow{{Key: "nm0005251", Name: "Carrie-Anne Moss"}}); err != nil {
		t.Fatalf("second chunk: %v", err)
	}
}

func TestStageActorsOverwritesWithNulls(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	if _, err := store.StageActors(ctx, []warehouse.ActorRow{
		{Key: "nm0000206", Name: "Keanu", BirthYear: i64(1964), Profession: str("actor")},
	}); err != nil {
		t.Fatalf("first chunk: %v", err)
	}
	if _, err := store.StageActors(ctx, []warehouse.ActorRow{{Key: "nm0000206", Name: "Keanu Reeves"}}); err != nil {
		t.Fatalf("second chunk: %v", err)
	}
	actor, err := store.Actor(ctx, "nm0000206")
	if err != nil || actor == nil {
		t.Fatalf("actor: %v", err)
	}
	if actor.Name != "Keanu Reeves" {
		t.Fatalf("name = %q", actor.Name)
	}
	if actor.BirthYear != nil || actor.Profession != nil {
		t.Fatalf("expected nulls from the later row, got birth=%v profession=%v", actor.BirthYear, actor.Profession)
	}
	err = store.View(ctx, func(tx *warehouse.Tx) error {
		sk, ok, err := tx.ActorSK(ctx, "nm0000206")
		if err != nil {
			return err
		}
		if !ok || sk != actor.SK {
			t.Fatalf("ActorSK = %d %v, want %d", sk, ok, actor.SK)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestFindMovieByTitleYear(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	p := seedPair(t, store)

	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		sk, ok, err := tx.FindMovieByTitleYear(ctx, "the matrix", 1999)
		if err != nil {
			return err
		}
		if !ok || sk != p.movie {
			t.Fatalf("match = %d %v", sk, ok)
		}
		if _, ok, _ := tx.FindMovieByTitleYear(ctx, "the matrix", 2003); ok {
			t.Fatal("year mismatch matched")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
}

func TestFillMovieRatingsOnlyFillsNulls(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	p := seedPair(t, store)

	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		if _, err := tx.UpsertFact(ctx, warehouse.FactRow{BookSK: p.book, MovieSK: p.movie, MovieRating: f64(8.7)}); err != nil {
			return err
		}
		found, err := tx.FillMovieRatings(ctx, "0133093", f64(7.0), i64(2000000))
		if !found {
			t.Fatal("movie should be found")
		}
		if err != nil {
			return err
		}
		missing, err := tx.FillMovieRatings(ctx, "999", f64(1), i64(1))
		if missing {
			t.Fatal("unknown movie reported as found")
		}
		return err
	})
	if err != nil {
		t.Fatalf("fill ratings: %v", err)
	}
	fact, _ := store.Fact(ctx, p.book, p.movie)
	if *fact.MovieRating != 8.7 || fact.MovieVoteCount == nil || *fact.MovieVoteCount != 2000000 {
		t.Fatalf("rating=%v votes=%v", *fact.MovieRating, fact.MovieVoteCount)
	}
}

func TestReleaseDateSKCreatesCalendarRow(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	p := seedPair(t, store)

	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		sk, err := tx.ReleaseDateSK(ctx, p.movie)
		if err != nil {
			return err
		}
		if sk == nil || *sk != 19990331 {
			t.Fatalf("release date key = %v", sk)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("release date: %v", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		if _, err := tx.UpsertBook(ctx, warehouse.BookRow{Key: "7"}, warehouse.ConflictMerge); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n, _ := store.Count(ctx, "dim_book"); n != 0 {
		t.Fatalf("rolled back insert persisted: %d", n)
	}
}
