package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a keyed bulk write.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified ("atlas.geocode_cache")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns

	// NewestBy names a column (e.g. "updated_at") that decides between
	// writers: a stored row is only replaced by one whose value is not older,
	// and duplicates inside one batch collapse to their newest row.
	NewestBy string
}

// BulkUpsert writes rows in one transaction: COPY into a temp table that
// is dropped on commit, then INSERT ... SELECT ... ON CONFLICT DO UPDATE.
// It returns the number of rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tempTable := "_tmp_upsert_" + strings.ReplaceAll(cfg.Table, ".", "_")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, upsertSQL(cfg, tempTable))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// upsertSQL builds the INSERT ... ON CONFLICT statement that moves rows
// from tempTable into cfg.Table.
func upsertSQL(cfg UpsertConfig, tempTable string) string {
	updateCols := cfg.UpdateCols
	if updateCols == nil {
		isKey := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			isKey[k] = true
		}
		for _, c := range cfg.Columns {
			if !isKey[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	colList := quoteAndJoin(cfg.Columns)
	keyList := quoteAndJoin(cfg.ConflictKeys)

	sets := make([]string, len(updateCols))
	for i, col := range updateCols {
		q := pgx.Identifier{col}.Sanitize()
		sets[i] = q + " = EXCLUDED." + q
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS t (%s) SELECT", sanitizeTable(cfg.Table), colList)
	if cfg.NewestBy != "" {
		fmt.Fprintf(&b, " DISTINCT ON (%s)", keyList)
	}
	fmt.Fprintf(&b, " %s FROM %s", colList, pgx.Identifier{tempTable}.Sanitize())
	if cfg.NewestBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s, %s DESC", keyList, pgx.Identifier{cfg.NewestBy}.Sanitize())
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", keyList, strings.Join(sets, ", "))
	if cfg.NewestBy != "" {
		q := pgx.Identifier{cfg.NewestBy}.Sanitize()
		fmt.Fprintf(&b, " WHERE t.%s <= EXCLUDED.%s", q, q)
	}
	return b.String()
}

// sanitizeTable handles schema-qualified table names like "atlas.geocode_cache".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
