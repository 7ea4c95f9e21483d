package enrich_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reelshelf/internal/enrich"
	"reelshelf/internal/services"
	"reelshelf/internal/testsupport"
	"reelshelf/internal/tmdb"
	"reelshelf/internal/warehouse"
)

func str(s string) *string   { return &s }
func f64(f float64) *float64 { return &f }

type seeded struct {
	bookSK  int64
	movieSK int64
	actorSK int64
}

// seedMatrix stores Neuromancer linked to The Matrix with Keanu Reeves on
// the bridge.
func seedMatrix(t *testing.T, store *warehouse.Store, budget *float64) seeded {
	t.Helper()
	ctx := context.Background()
	released := time.Date(1999, 3, 31, 0, 0, 0, 0, time.UTC)
	var out seeded
	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		var err error
		if out.bookSK, err = tx.UpsertBook(ctx, warehouse.BookRow{Key: "123", Title: str("Neuromancer")}, warehouse.ConflictMerge); err != nil {
			return err
		}
		out.movieSK, err = tx.UpsertMovie(ctx, warehouse.MovieRow{
			Key:         "0133093",
			Title:       str("The Matrix"),
			ReleaseDate: &released,
			Director:    str("Lana Wachowski"),
			Genre:       str("Action, Sci-Fi"),
		}, warehouse.ConflictMerge)
		if err != nil {
			return err
		}
		if out.actorSK, err = tx.UpsertActor(ctx, warehouse.ActorRow{Key: "nm0000206", Name: "Keanu Reeves"}, warehouse.ConflictMerge); err != nil {
			return err
		}
		if _, err = tx.LinkActor(ctx, out.movieSK, out.actorSK, str("Neo")); err != nil {
			return err
		}
		_, err = tx.UpsertFact(ctx, warehouse.FactRow{BookSK: out.bookSK, MovieSK: out.movieSK, Budget: budget})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return out
}

func fact(t *testing.T, store *warehouse.Store, s seeded) *warehouse.Fact {
	t.Helper()
	f, err := store.Fact(context.Background(), s.bookSK, s.movieSK)
	if err != nil || f == nil {
		t.Fatalf("fact missing: %v", err)
	}
	return f
}

func TestBoxOfficeOverwritesFinancialsOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sources.BoxOffice = testsupport.WriteLines(t, filepath.Join(testsupport.BaseDir(cfg), "box_office.csv"),
		"Movie,Release Date,Distributor,Genre,2025 Gross,Tickets Sold",
		`The Matrix,3/31/1999,Warner Bros.,Drama,"$465,000,000","12,345,678"`,
		`Unknown Film,2001-01-01,Nobody,Drama,"$1,000",10`,
	)
	store := testsupport.MustOpenStore(t, cfg)
	s := seedMatrix(t, store, nil)
	ctx := context.Background()

	stageBox := enrich.NewBoxOfficeStage(cfg, store)
	if err := stageBox.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	summary, err := stageBox.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Updated != 1 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %s", summary)
	}

	f := fact(t, store, s)
	if f.Gross == nil || *f.Gross != 465000000 {
		t.Fatalf("expected gross 465000000, got %v", f.Gross)
	}
	if f.TicketsSold == nil || *f.TicketsSold != 12345678 {
		t.Fatalf("expected tickets 12345678, got %v", f.TicketsSold)
	}
	movie, err := store.Movie(ctx, "0133093")
	if err != nil || movie == nil {
		t.Fatalf("movie missing: %v", err)
	}
	if movie.Director == nil || *movie.Director != "Lana Wachowski" {
		t.Fatalf("director changed: %v", movie.Director)
	}
	if movie.Genre == nil || *movie.Genre != "Action, Sci-Fi" {
		t.Fatalf("genre must only fill when null, got %v", movie.Genre)
	}
	if movie.Distributor == nil || *movie.Distributor != "Warner Bros." {
		t.Fatalf("expected distributor filled, got %v", movie.Distributor)
	}
}

func TestBoxOfficeRequiresColumns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sources.BoxOffice = testsupport.WriteLines(t, filepath.Join(testsupport.BaseDir(cfg), "box_office.csv"),
		"Movie,Distributor",
		"The Matrix,Warner Bros.",
	)
	store := testsupport.MustOpenStore(t, cfg)
	_, err := enrich.NewBoxOfficeStage(cfg, store).Execute(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type fakeLookup struct {
	mu       sync.Mutex
	find     map[string]*tmdb.FindResult
	movies   map[int64]*tmdb.MovieDetails
	people   map[int64]*tmdb.PersonDetails
	failures map[string]int
	calls    []string
}

func (f *fakeLookup) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.failures[call] > 0 {
		f.failures[call]--
		return services.Wrap(services.ErrTransient, "tmdb", call, "503", nil)
	}
	return nil
}

func (f *fakeLookup) FindByExternalID(_ context.Context, id string) (*tmdb.FindResult, error) {
	if err := f.record("find " + id); err != nil {
		return nil, err
	}
	if res, ok := f.find[id]; ok {
		return res, nil
	}
	return &tmdb.FindResult{}, nil
}

func (f *fakeLookup) MovieDetails(_ context.Context, id int64) (*tmdb.MovieDetails, error) {
	if err := f.record("movie"); err != nil {
		return nil, err
	}
	if d, ok := f.movies[id]; ok {
		return d, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "tmdb", "movie details", "", nil)
}

func (f *fakeLookup) PersonDetails(_ context.Context, id int64) (*tmdb.PersonDetails, error) {
	if err := f.record("person"); err != nil {
		return nil, err
	}
	if d, ok := f.people[id]; ok {
		return d, nil
	}
	return nil, services.Wrap(services.ErrDecode, "tmdb", "person details", "bad payload", nil)
}

func matrixLookup() *fakeLookup {
	return &fakeLookup{
		find: map[string]*tmdb.FindResult{
			"tt0133093": {MovieResults: []tmdb.MovieRef{{ID: 603}}},
			"nm0000206": {PersonResults: []tmdb.PersonRef{{ID: 6384}}},
		},
		movies: map[int64]*tmdb.MovieDetails{
			603: {ID: 603, Budget: 63000000, Revenue: 463517383, Popularity: 80.5},
		},
		people: map[int64]*tmdb.PersonDetails{
			6384: {ID: 6384, Popularity: 42.5},
		},
		failures: map[string]int{},
	}
}

func TestTMDBEnrichesActorsThenMovies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	s := seedMatrix(t, store, nil)
	lookup := matrixLookup()
	lookup.failures["find tt0133093"] = 1
	ctx := context.Background()

	stageTMDB := enrich.NewTMDBStage(cfg, store, enrich.WithLookup(lookup))
	if err := stageTMDB.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	summary, err := stageTMDB.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Updated != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %s", summary)
	}
	if len(lookup.calls) == 0 || lookup.calls[0] != "find nm0000206" {
		t.Fatalf("expected actors to be looked up first, got %v", lookup.calls)
	}

	actor, err := store.Actor(ctx, "nm0000206")
	if err != nil || actor == nil {
		t.Fatalf("actor missing: %v", err)
	}
	if actor.Popularity == nil || *actor.Popularity != 42.5 {
		t.Fatalf("expected popularity 42.5, got %v", actor.Popularity)
	}
	f := fact(t, store, s)
	if f.Budget == nil || *f.Budget != 63000000 {
		t.Fatalf("expected budget 63000000, got %v", f.Budget)
	}
	if f.Gross == nil || *f.Gross != 463517383 {
		t.Fatalf("expected gross filled from revenue, got %v", f.Gross)
	}
	if f.Profit == nil || *f.Profit != 463517383-63000000 {
		t.Fatalf("unexpected profit %v", f.Profit)
	}
}

func TestTMDBKeepsBoxOfficeGross(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sources.BoxOffice = testsupport.WriteLines(t, filepath.Join(testsupport.BaseDir(cfg), "box_office.csv"),
		"Movie,Release Date,Distributor,Genre,2025 Gross,Tickets Sold",
		`The Matrix,1999-03-31,Warner Bros.,Action,"$465,000,000","12,345,678"`,
	)
	store := testsupport.MustOpenStore(t, cfg)
	s := seedMatrix(t, store, nil)
	ctx := context.Background()

	if _, err := enrich.NewTMDBStage(cfg, store, enrich.WithLookup(matrixLookup())).Execute(ctx); err != nil {
		t.Fatalf("tmdb: %v", err)
	}
	if _, err := enrich.NewBoxOfficeStage(cfg, store).Execute(ctx); err != nil {
		t.Fatalf("box office: %v", err)
	}
	afterBoth := *fact(t, store, s)

	if _, err := enrich.NewTMDBStage(cfg, store, enrich.WithLookup(matrixLookup())).Execute(ctx); err != nil {
		t.Fatalf("tmdb rerun: %v", err)
	}
	f := fact(t, store, s)
	if f.Gross == nil || *f.Gross != 465000000 {
		t.Fatalf("box office gross must win, got %v", f.Gross)
	}
	if *f.Profit != *afterBoth.Profit || *f.ROI != *afterBoth.ROI {
		t.Fatalf("derived measures drifted: %v/%v vs %v/%v", *f.Profit, *f.ROI, *afterBoth.Profit, *afterBoth.ROI)
	}
	if want := 465000000.0 - 63000000; *f.Profit != want {
		t.Fatalf("expected profit %v, got %v", want, *f.Profit)
	}
}

func TestTMDBIsolatesRowFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seedMatrix(t, store, f64(1))
	ctx := context.Background()
	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		movieSK, err := tx.UpsertMovie(ctx, warehouse.MovieRow{Key: "nm0000002", Title: str("Mislabelled")}, warehouse.ConflictMerge)
		if err != nil {
			return err
		}
		actorSK, err := tx.UpsertActor(ctx, warehouse.ActorRow{Key: "nm0000003", Name: "Broken Payload"}, warehouse.ConflictMerge)
		if err != nil {
			return err
		}
		_, err = tx.LinkActor(ctx, movieSK, actorSK, nil)
		return err
	})
	if err != nil {
		t.Fatalf("seed extra rows: %v", err)
	}

	lookup := matrixLookup()
	lookup.find["nm0000003"] = &tmdb.FindResult{PersonResults: []tmdb.PersonRef{{ID: 77}}}
	summary, err := enrich.NewTMDBStage(cfg, store, enrich.WithLookup(lookup)).Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// Keanu and The Matrix update; the decode failure fails once without
	// retry; the nm-keyed film is rejected before any request.
	if summary.Updated != 2 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary: %s", summary)
	}
	personCalls := 0
	for _, call := range lookup.calls {
		if call == "person" {
			personCalls++
		}
		if call == "find tt0000002" || call == "find nm0000002" {
			t.Fatalf("mismatched prefix must not reach the remote service: %v", lookup.calls)
		}
	}
	if personCalls != 2 {
		t.Fatalf("expected one person call per actor, got %d", personCalls)
	}
}

func TestTMDBPrepareRequiresCredential(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	err := enrich.NewTMDBStage(cfg, store).Prepare(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTMDBStageUsesConfiguredServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/find/nm0000206":
			fmt.Fprint(w, `{"person_results":[{"id":6384,"name":"Keanu Reeves"}]}`)
		case "/find/tt0133093":
			fmt.Fprint(w, `{"movie_results":[{"id":603,"title":"The Matrix"}]}`)
		case "/person/6384":
			fmt.Fprint(w, `{"id":6384,"imdb_id":"nm0000206","name":"Keanu Reeves","popularity":42.5}`)
		case "/movie/603":
			fmt.Fprint(w, `{"id":603,"imdb_id":"tt0133093","title":"The Matrix","budget":63000000,"revenue":463517383}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithTMDB(server.URL, "test-key"))
	store := testsupport.MustOpenStore(t, cfg)
	s := seedMatrix(t, store, nil)
	ctx := context.Background()

	stageTMDB := enrich.NewTMDBStage(cfg, store)
	if err := stageTMDB.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	summary, err := stageTMDB.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Updated != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %s", summary)
	}
	f := fact(t, store, s)
	if f.Budget == nil || *f.Budget != 63000000 {
		t.Fatalf("expected budget from the server, got %v", f.Budget)
	}
}
