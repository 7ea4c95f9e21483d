package bulkload_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"reelshelf/internal/bulkload"
	"reelshelf/internal/source"
	"reelshelf/internal/testsupport"
	"reelshelf/internal/warehouse"
)

func TestActorRowsDropsNullNames(t *testing.T) {
	header := source.NewHeader([]string{"nconst", "primaryName", "birthYear", "primaryProfession"})
	bind := header.Bind(bulkload.NameSchema)
	records := []source.Record{
		{"nm0000206", "Keanu Reeves", "1964", "actor,producer,soundtrack"},
		{"nm0000001", nil, "1899", "actor"},
		{"nm0905154", "Lana Wachowski", nil, nil},
	}
	rows, dropped := bulkload.ActorRows(bind, records)
	if dropped != 1 || len(rows) != len(records)-1 {
		t.Fatalf("expected %d rows and 1 drop, got %d rows %d dropped", len(records)-1, len(rows), dropped)
	}
	if rows[0].Profession == nil || *rows[0].Profession != "actor" {
		t.Fatalf("expected first profession only, got %v", rows[0].Profession)
	}
	if rows[0].BirthYear == nil || *rows[0].BirthYear != 1964 {
		t.Fatalf("expected birth year 1964, got %v", rows[0].BirthYear)
	}
	if rows[1].BirthYear != nil || rows[1].Profession != nil {
		t.Fatalf("expected nulls to stay null, got %+v", rows[1])
	}
}

func TestExecuteMergesChunksAndOverwritesNames(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChunkSize(2))
	base := testsupport.BaseDir(cfg)
	cfg.Sources.Actors = testsupport.WriteLines(t, filepath.Join(base, "name.basics.tsv"),
		"nconst\tprimaryName\tbirthYear\tdeathYear\tprimaryProfession\tknownForTitles",
		"nm0000206\tKeanu Reeves\t1964\t\\N\tactor,producer\ttt0133093",
		"nm0000001\t\\N\t1899\t1987\tactor\t\\N",
		"nm0905154\tLana Wachowski\t1965\t\\N\tdirector,writer\ttt0133093",
		"nm0000206\tKeanu Charles Reeves\t1964\t\\N\tactor\ttt0133093",
	)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	actors := bulkload.NewActorsStage(cfg, store)
	if err := actors.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	summary, err := actors.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Processed != 4 || summary.Dropped != 1 || summary.Updated != 3 {
		t.Fatalf("unexpected summary: %s", summary)
	}
	n, err := store.Count(ctx, "dim_actor")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 actors, got %d", n)
	}
	keanu, err := store.Actor(ctx, "nm0000206")
	if err != nil || keanu == nil {
		t.Fatalf("actor missing: %v", err)
	}
	if keanu.Name != "Keanu Charles Reeves" {
		t.Fatalf("expected the later chunk to overwrite the name, got %q", keanu.Name)
	}
	lana, _ := store.Actor(ctx, "nm0905154")
	if lana == nil || lana.Profession == nil || *lana.Profession != "director" {
		t.Fatalf("expected director profession, got %+v", lana)
	}
}

func TestExecuteFillsRatingsForKnownFilms(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	cfg.Sources.Actors = testsupport.WriteLines(t, filepath.Join(base, "name.basics.tsv"),
		"nconst\tprimaryName\tbirthYear\tprimaryProfession",
		"nm0000206\tKeanu Reeves\t1964\tactor",
	)
	cfg.Sources.IMDbRatings = testsupport.WriteLines(t, filepath.Join(base, "title.ratings.tsv"),
		"tconst\taverageRating\tnumVotes",
		"tt0133093\t8.7\t2100000",
		"tt0000001\t5.7\t2000",
	)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	title := "The Matrix"
	err := store.WithTx(ctx, func(tx *warehouse.Tx) error {
		_, err := tx.UpsertMovie(ctx, warehouse.MovieRow{Key: "0133093", Title: &title}, warehouse.ConflictMerge)
		return err
	})
	if err != nil {
		t.Fatalf("seed movie: %v", err)
	}

	if _, err := bulkload.NewActorsStage(cfg, store).Execute(ctx); err != nil {
		t.Fatalf("execute: %v", err)
	}
	movie, err := store.Movie(ctx, "0133093")
	if err != nil || movie == nil {
		t.Fatalf("movie missing: %v", err)
	}
	if movie.Rating == nil || *movie.Rating != 8.7 {
		t.Fatalf("expected rating 8.7, got %v", movie.Rating)
	}
	if movie.VoteCount == nil || *movie.VoteCount != 2100000 {
		t.Fatalf("expected 2100000 votes, got %v", movie.VoteCount)
	}
	n, _ := store.Count(ctx, "dim_movie")
	if n != 1 {
		t.Fatalf("ratings must not create films, got %d", n)
	}
}

// flakyStager fails the first merge and delegates the rest.
type flakyStager struct {
	store *warehouse.Store
	calls int
}

func (f *flakyStager) StageActors(ctx context.Context, rows []warehouse.ActorRow) (int64, error) {
	f.calls++
	if f.calls == 1 {
		return 0, errors.New("disk full")
	}
	return f.store.StageActors(ctx, rows)
}

func TestExecuteSkipsFailedChunkAndContinues(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChunkSize(2))
	cfg.Sources.Actors = testsupport.WriteLines(t, filepath.Join(testsupport.BaseDir(cfg), "name.basics.tsv"),
		"nconst\tprimaryName\tbirthYear\tprimaryProfession",
		"nm0000206\tKeanu Reeves\t1964\tactor",
		"nm0000401\tLaurence Fishburne\t1961\tactor",
		"nm0905154\tLana Wachowski\t1965\tdirector",
	)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stager := &flakyStager{store: store}
	summary, err := bulkload.NewActorsStage(cfg, store, bulkload.WithStager(stager)).Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if stager.calls != 2 {
		t.Fatalf("expected both chunks attempted, got %d", stager.calls)
	}
	if summary.Processed != 3 || summary.Failed != 2 || summary.Updated != 1 {
		t.Fatalf("unexpected summary: %s", summary)
	}
	if keanu, _ := store.Actor(ctx, "nm0000206"); keanu != nil {
		t.Fatalf("failed chunk must not land, got %+v", keanu)
	}
	lana, err := store.Actor(ctx, "nm0905154")
	if err != nil || lana == nil {
		t.Fatalf("second chunk missing: %v", err)
	}
}
