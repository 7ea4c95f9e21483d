package bulkload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"reelshelf/internal/config"
	"reelshelf/internal/logging"
	"reelshelf/internal/normalize"
	"reelshelf/internal/services"
	"reelshelf/internal/source"
	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

// NameSchema binds the name.basics columns.
var NameSchema = source.Schema{
	source.Aliases("id", "nconst"),
	source.Aliases("name", "primaryname"),
	source.Aliases("birth", "birthyear"),
	source.Aliases("profession", "primaryprofession"),
}

// Stager merges one chunk of people into the actor dimension.
type Stager interface {
	StageActors(ctx context.Context, rows []warehouse.ActorRow) (int64, error)
}

// ActorsStage bulk loads name.basics and, when configured, fills film
// ratings from title.ratings.
type ActorsStage struct {
	cfg    *config.Config
	store  *warehouse.Store
	stager Stager
	logger *slog.Logger
}

// ActorsOption configures an ActorsStage.
type ActorsOption func(*ActorsStage)

// WithStager routes chunk merges through st instead of the store.
func WithStager(st Stager) ActorsOption {
	return func(s *ActorsStage) {
		if st != nil {
			s.stager = st
		}
	}
}

// NewActorsStage constructs the bulk actors stage.
func NewActorsStage(cfg *config.Config, store *warehouse.Store, opts ...ActorsOption) *ActorsStage {
	s := &ActorsStage{cfg: cfg, store: store, stager: store, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger replaces the stage logger.
func (s *ActorsStage) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s.logger = logger
}

// Prepare validates the reference file paths.
func (s *ActorsStage) Prepare(context.Context) error {
	if err := stage.RequireSource(stage.Actors, "actors", s.cfg.Sources.Actors); err != nil {
		return err
	}
	if s.cfg.Sources.IMDbRatings != "" {
		return stage.RequireSource(stage.Actors, "imdb_ratings", s.cfg.Sources.IMDbRatings)
	}
	return nil
}

// HealthCheck reports whether the reference files are usable.
func (s *ActorsStage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.Prepare(ctx); err != nil {
		return stage.Unhealthy(stage.Actors, err.Error())
	}
	return stage.Healthy(stage.Actors)
}

// Execute loads people chunk by chunk. A chunk that fails to merge is
// logged and counted as failed; the next chunk still runs.
func (s *ActorsStage) Execute(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	reader, err := s.open(s.cfg.Sources.Actors)
	if err != nil {
		return summary, err
	}
	defer reader.Close()

	bind := reader.Header().Bind(NameSchema)
	if missing := bind.Missing("id", "name"); len(missing) > 0 {
		return summary, services.Wrap(services.ErrConfiguration, stage.Actors, "bind columns",
			fmt.Sprintf("actors file lacks %s", strings.Join(missing, ", ")), nil)
	}

	chunkSize := s.cfg.Bulk.ChunkSize
	for chunk := 1; ; chunk++ {
		records, err := reader.Chunk(ctx, chunkSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}
		rows, dropped := ActorRows(bind, records)
		summary.Processed += int64(len(records))
		summary.Dropped += int64(dropped)

		applied, err := s.stager.StageActors(ctx, rows)
		if err != nil {
			summary.Failed += int64(len(rows))
			logging.WarnWithContext(s.logger, "actor chunk failed", "chunk_failed",
				logging.Int(logging.FieldChunk, chunk),
				logging.Int("rows", len(rows)),
				logging.Error(err),
			)
			continue
		}
		summary.Updated += applied
		s.logger.Info("actor chunk merged",
			logging.String(logging.FieldEventType, "chunk_merged"),
			logging.Int(logging.FieldChunk, chunk),
			logging.Int64("rows", applied),
			logging.Int(logging.FieldDropped, dropped),
		)
	}
	if malformed := reader.Malformed(); malformed > 0 {
		summary.Skipped += int64(malformed)
		summary.Notef("%d malformed lines", malformed)
	}
	if summary.Dropped > 0 {
		summary.Notef("%d people without a name dropped", summary.Dropped)
	}

	if s.cfg.Sources.IMDbRatings != "" {
		if err := s.loadRatings(ctx, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (s *ActorsStage) open(path string) (*source.DelimitedReader, error) {
	format, err := source.FormatFor(path)
	if err != nil {
		return nil, err
	}
	if format == source.FormatXLSX {
		format = source.FormatTSV
	}
	return source.OpenDelimited(path, format)
}

// ActorRows maps one chunk of name.basics records. Rows without an id or a
// name are dropped and counted; only the first listed profession is kept.
func ActorRows(bind source.Binding, records []source.Record) ([]warehouse.ActorRow, int) {
	rows := make([]warehouse.ActorRow, 0, len(records))
	dropped := 0
	for _, r := range records {
		key, okKey := normalize.ActorKey(bind.Value(r, "id"))
		name, okName := normalize.ClippedText(bind.Value(r, "name"), normalize.MaxName)
		if !okKey || !okName {
			dropped++
			continue
		}
		row := warehouse.ActorRow{Key: key, Name: name}
		if year, ok := normalize.Int(bind.Value(r, "birth")); ok && year > 0 {
			row.BirthYear = &year
		}
		if prof, ok := firstProfession(bind.Value(r, "profession")); ok {
			row.Profession = &prof
		}
		rows = append(rows, row)
	}
	return rows, dropped
}

func firstProfession(v any) (string, bool) {
	raw, ok := normalize.Text(v)
	if !ok {
		return "", false
	}
	first, _, _ := strings.Cut(raw, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return "", false
	}
	return normalize.Clip(first, normalize.MaxName), true
}
