package bulkload

import (
	"context"
	"errors"
	"io"

	"reelshelf/internal/logging"
	"reelshelf/internal/normalize"
	"reelshelf/internal/source"
	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

var ratingSchema = source.Schema{
	source.Aliases("id", "tconst"),
	source.Aliases("rating", "averagerating"),
	source.Aliases("votes", "numvotes"),
}

// loadRatings fills missing film ratings from title.ratings, one
// transaction per chunk. Titles absent from dim_movie are ignored.
func (s *ActorsStage) loadRatings(ctx context.Context, summary *stage.Summary) error {
	reader, err := s.open(s.cfg.Sources.IMDbRatings)
	if err != nil {
		return err
	}
	defer reader.Close()
	bind := reader.Header().Bind(ratingSchema)
	if !bind.Has("id") {
		s.logger.Warn("ratings file has no tconst column; skipping",
			logging.String(logging.FieldEventType, "ratings_skipped"),
		)
		return nil
	}

	var matched int64
	for chunk := 1; ; chunk++ {
		records, err := reader.Chunk(ctx, s.cfg.Bulk.ChunkSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		var found int64
		err = s.store.WithTx(ctx, func(tx *warehouse.Tx) error {
			found = 0
			for _, r := range records {
				key, ok := normalize.MovieKey(bind.Value(r, "id"))
				if !ok {
					continue
				}
				var rating *float64
				if f, ok := normalize.MovieRating(bind.Value(r, "rating")); ok {
					rating = &f
				}
				var votes *int64
				if n, ok := normalize.Quantity(bind.Value(r, "votes")); ok {
					votes = &n
				}
				if rating == nil && votes == nil {
					continue
				}
				ok, err := tx.FillMovieRatings(ctx, key, rating, votes)
				if err != nil {
					return err
				}
				if ok {
					found++
				}
			}
			return nil
		})
		if err != nil {
			summary.Failed += int64(len(records))
			logging.WarnWithContext(s.logger, "ratings chunk failed", "chunk_failed",
				logging.Int(logging.FieldChunk, chunk),
				logging.Error(err),
			)
			continue
		}
		matched += found
	}
	summary.Notef("%d films rated", matched)
	return nil
}
