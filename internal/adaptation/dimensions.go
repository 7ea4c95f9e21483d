package adaptation

import (
	"context"

	"reelshelf/internal/crosswalk"
	"reelshelf/internal/normalize"
	"reelshelf/internal/services"
	"reelshelf/internal/source"
	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

// loadMovies upserts the snapshot films, filling genre, director and TMDb
// id from the crosswalk where the movies table has none.
func (r *linkRun) loadMovies(ctx context.Context, order []string, cw *crosswalk.Crosswalk) error {
	progress := stage.NewProgress(r.logger, "movies")
	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := r.movies[key].row
		if row.Genre == nil {
			if g, ok := cw.Genre(key); ok {
				row.Genre = &g
			}
		}
		if d, ok := cw.Director(key); ok && row.Director == nil {
			row.Director = &d
		}
		if id, ok := cw.TMDbForMovie(key); ok && row.TMDbID == nil {
			row.TMDbID = &id
		}
		var sk int64
		err := r.store.WithTx(services.WithRowKey(ctx, key), func(tx *warehouse.Tx) error {
			var err error
			sk, err = tx.UpsertMovie(ctx, row, warehouse.ConflictMerge)
			return err
		})
		if err != nil {
			r.films.failed++
			stage.RowFailed(r.logger, "movie upsert failed", key, err)
			continue
		}
		r.movieSK[key] = sk
		r.films.loaded++
		progress.Tick(stage.Summary{Inserted: r.films.loaded, Failed: r.films.failed})
	}
	return nil
}

// loadBooks inserts snapshot books without touching books already known.
func (r *linkRun) loadBooks(ctx context.Context, snap *source.Snapshot) error {
	table, err := snap.ReadTable(ctx, "books")
	if err != nil || table == nil {
		return err
	}
	bind := table.Bind(bookSchema)
	for _, record := range table.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, ok := bookRow(bind, record)
		if !ok {
			r.books.skipped++
			stage.RowSkipped(r.logger, "unresolved book id", "")
			continue
		}
		var sk int64
		err := r.store.WithTx(services.WithRowKey(ctx, row.Key), func(tx *warehouse.Tx) error {
			var err error
			sk, err = tx.UpsertBook(ctx, row, warehouse.ConflictKeep)
			return err
		})
		if err != nil {
			r.books.failed++
			stage.RowFailed(r.logger, "snapshot book insert failed", row.Key, err)
			continue
		}
		r.bookSK[row.Key] = sk
		r.books.loaded++
	}
	return nil
}

// loadCast writes one actor per credited person and a bridge row for each
// role whose film resolves. People with no resolvable film are skipped.
func (r *linkRun) loadCast(ctx context.Context, cw *crosswalk.Crosswalk) error {
	for _, person := range cw.People() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, ok := normalize.ActorKey(person.Key)
		if !ok {
			r.actors.skipped++
			continue
		}
		var res castResult
		err := r.store.WithTx(services.WithRowKey(ctx, key), func(tx *warehouse.Tx) error {
			var err error
			res, err = r.linkPerson(ctx, tx, key, person)
			return err
		})
		if err != nil {
			r.actors.failed++
			stage.RowFailed(r.logger, "cast load failed", key, err)
			continue
		}
		r.roles.loaded += res.added
		r.roles.skipped += res.unresolved
		if res.linked {
			r.actors.loaded++
		} else {
			r.actors.skipped++
		}
	}
	return nil
}

type castResult struct {
	linked     bool
	added      int64
	unresolved int64
}

func (r *linkRun) linkPerson(ctx context.Context, tx *warehouse.Tx, key string, person crosswalk.Person) (castResult, error) {
	type resolved struct {
		movieSK int64
		role    *string
	}
	var (
		res   castResult
		roles []resolved
	)
	for _, role := range person.Roles {
		sk, ok, err := r.resolveMovie(ctx, tx, role.MovieKey)
		if err != nil {
			return res, err
		}
		if !ok {
			res.unresolved++
			continue
		}
		roles = append(roles, resolved{movieSK: sk, role: stringPtr(role.Role)})
	}
	if len(roles) == 0 {
		return res, nil
	}
	actorSK, err := tx.UpsertActor(ctx, warehouse.ActorRow{Key: key, Name: person.Name}, warehouse.ConflictKeep)
	if err != nil {
		return res, err
	}
	res.linked = true
	for _, role := range roles {
		added, err := tx.LinkActor(ctx, role.movieSK, actorSK, role.role)
		if err != nil {
			return res, err
		}
		if added {
			res.added++
		}
	}
	return res, nil
}
