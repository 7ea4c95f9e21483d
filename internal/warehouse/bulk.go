package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const actorStageTable = "stage_actor"

var actorStageColumns = []string{"actor_id_source", "name", "birth_year", "primary_profession"}

// StageActors merges one chunk of reference people with a single set-based
// statement. The chunk goes into a temporary staging table first: Postgres
// uses COPY, SQLite a prepared insert on the same connection. Duplicate keys
// within the chunk collapse to the last occurrence. It returns the number of
// distinct rows applied.
func (s *Store) StageActors(ctx context.Context, rows []ActorRow) (int64, error) {
	rows = dedupeActors(rows)
	if len(rows) == 0 {
		return 0, nil
	}
	var err error
	if s.dialect.Name == postgresDialect.Name {
		err = s.stageActorsCopy(ctx, rows)
	} else {
		err = s.stageActorsPrepared(ctx, rows)
	}
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func dedupeActors(rows []ActorRow) []ActorRow {
	index := make(map[string]int, len(rows))
	out := make([]ActorRow, 0, len(rows))
	for _, row := range rows {
		if row.Key == "" || row.Name == "" {
			continue
		}
		if i, ok := index[row.Key]; ok {
			out[i] = row
			continue
		}
		index[row.Key] = len(out)
		out = append(out, row)
	}
	return out
}

func stageCreateSQL(d Dialect) string {
	return "CREATE TEMP TABLE " + actorStageTable + ` (
		actor_id_source TEXT NOT NULL,
		name TEXT NOT NULL,
		birth_year BIGINT,
		primary_profession TEXT
	)` + d.tempSuffix
}

func stageMergeSQL() string {
	cols := strings.Join(actorStageColumns, ", ")
	// A reference row replaces every descriptive field, nulls included.
	sets := make([]string, 0, len(actorStageColumns))
	for _, name := range actorStageColumns[1:] {
		expr, _ := mergeExpr("dim_actor", name, "excluded."+name, Overwrite)
		sets = append(sets, name+" = "+expr)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	// WHERE true keeps SQLite from reading ON CONFLICT as a join constraint.
	return fmt.Sprintf("INSERT INTO dim_actor (%s) SELECT %s FROM %s WHERE true ON CONFLICT (actor_id_source) DO UPDATE SET %s",
		cols, cols, actorStageTable, strings.Join(sets, ", "))
}

func actorValues(row ActorRow) []any {
	return []any{row.Key, row.Name, value(row.BirthYear), value(row.Profession)}
}

func (s *Store) stageActorsPrepared(ctx context.Context, rows []ActorRow) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.exec(ctx, "DROP TABLE IF EXISTS temp."+actorStageTable); err != nil {
			return fmt.Errorf("reset staging table: %w", err)
		}
		if _, err := tx.exec(ctx, stageCreateSQL(s.dialect)); err != nil {
			return fmt.Errorf("create staging table: %w", err)
		}
		stmt, err := tx.raw.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			actorStageTable, strings.Join(actorStageColumns, ", "), placeholders(len(actorStageColumns))))
		if err != nil {
			return fmt.Errorf("prepare staging insert: %w", err)
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, actorValues(row)...); err != nil {
				return fmt.Errorf("stage actor %s: %w", row.Key, err)
			}
		}
		if _, err := tx.exec(ctx, stageMergeSQL()); err != nil {
			return fmt.Errorf("merge staged actors: %w", err)
		}
		if _, err := tx.exec(ctx, "DROP TABLE temp."+actorStageTable); err != nil {
			return fmt.Errorf("drop staging table: %w", err)
		}
		return nil
	})
}

func (s *Store) stageActorsCopy(ctx context.Context, rows []ActorRow) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("copy staging: unexpected driver connection %T", driverConn)
		}
		tx, err := sc.Conn().Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin copy tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if _, err := tx.Exec(ctx, stageCreateSQL(s.dialect)); err != nil {
			return fmt.Errorf("create staging table: %w", err)
		}
		values := make([][]any, 0, len(rows))
		for _, row := range rows {
			values = append(values, actorValues(row))
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{actorStageTable}, actorStageColumns, pgx.CopyFromRows(values))
		if err != nil {
			return fmt.Errorf("copy staged actors: %w", err)
		}
		if n != int64(len(values)) {
			return fmt.Errorf("copy staged actors: copied %d of %d rows", n, len(values))
		}
		if _, err := tx.Exec(ctx, stageMergeSQL()); err != nil {
			return fmt.Errorf("merge staged actors: %w", err)
		}
		return tx.Commit(ctx)
	})
}
