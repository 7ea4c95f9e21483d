package crosswalk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"reelshelf/internal/logging"
	"reelshelf/internal/source"
)

const defaultPrincipalChunk = 50000

// Options tunes Load.
type Options struct {
	// Movies is the already-read movies table; id pairs and a genres column
	// are taken from it when present.
	Movies *source.Table
	// KnownMovie filters principal credits to films this run loads. Nil keeps all.
	KnownMovie func(key string) bool
	// PrincipalsPath optionally names an IMDb title.principals TSV.
	PrincipalsPath string
	ChunkSize      int
	Logger         *slog.Logger
}

var (
	linkTables   = []string{"links"}
	genreTables  = []string{"genres", "movie_genres"}
	peopleTables = []string{"people", "persons", "names", "name_basics"}
	creditTables = []string{"credits", "cast_crew", "movie_people"}
)

// Load builds the crosswalk from a snapshot. Missing tables are skipped.
func Load(ctx context.Context, snap *source.Snapshot, opts Options) (*Crosswalk, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	b := NewBuilder()

	for _, name := range linkTables {
		table, err := snap.ReadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		b.AddIDLinks(table)
	}
	if opts.Movies != nil {
		b.AddIDLinks(opts.Movies)
		if opts.Movies.Bind(genreSchema).Column("genre") == "genres" {
			b.AddGenres(opts.Movies)
		}
	}
	genres, err := snap.FirstNonEmpty(ctx, genreTables...)
	if err != nil {
		return nil, err
	}
	b.AddGenres(genres)

	people, err := snap.FirstNonEmpty(ctx, peopleTables...)
	if err != nil {
		return nil, err
	}
	b.AddPeople(people)

	for _, name := range creditTables {
		table, err := snap.ReadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		b.AddCredits(table)
	}

	if opts.PrincipalsPath != "" {
		used, err := b.AddPrincipals(ctx, opts.PrincipalsPath, opts.KnownMovie, opts.ChunkSize)
		if err != nil {
			return nil, err
		}
		logger.Info("principal credits merged",
			logging.String(logging.FieldEventType, "crosswalk_principals"),
			logging.Int("credits", used),
		)
	}

	c := b.Build()
	stats := c.Stats()
	logger.Info("crosswalk built",
		logging.String(logging.FieldEventType, "crosswalk_built"),
		logging.Int("tmdb_links", stats.TMDbLinks),
		logging.Int("genres", stats.Genres),
		logging.Int("directors", stats.Directors),
		logging.Int("actors", stats.Actors),
		logging.Int("roles", stats.Roles),
		logging.Int("excluded", stats.Excluded),
	)
	return c, nil
}

var principalSchema = source.Schema{
	source.Aliases("movie", "tconst"),
	source.Aliases("person", "nconst"),
	source.Aliases("category", "category"),
	source.Aliases("character", "characters"),
}

// AddPrincipals streams an IMDb title.principals TSV in chunks, keeping
// credits whose movie passes keep. It returns the number of credits used.
func (b *Builder) AddPrincipals(ctx context.Context, path string, keep func(string) bool, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = defaultPrincipalChunk
	}
	reader, err := source.OpenDelimited(path, source.FormatTSV)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	bind := reader.Header().Bind(principalSchema)
	if missing := bind.Missing("movie", "person"); len(missing) > 0 {
		return 0, fmt.Errorf("principals %s: missing columns %v", path, missing)
	}

	used := 0
	for {
		records, err := reader.Chunk(ctx, chunkSize)
		if errors.Is(err, io.EOF) {
			return used, nil
		}
		if err != nil {
			return used, fmt.Errorf("read principals: %w", err)
		}
		for _, r := range records {
			credit, ok := b.bindCredit(bind, r)
			if !ok {
				b.excluded++
				continue
			}
			if keep != nil && !keep(credit.MovieKey) {
				continue
			}
			if b.AddCredit(credit) {
				used++
			}
		}
	}
}
