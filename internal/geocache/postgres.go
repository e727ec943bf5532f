package geocache

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/heritage-atlas/heritage-cli/internal/db"
)

// DefaultTable is the postgres table used when none is configured.
const DefaultTable = "geocode_cache"

var pgColumns = []string{"address", "status", "latitude", "longitude", "source", "run_id", "updated_at"}

// PostgresStore persists the cache in a shared postgres table so several
// machines can reuse one another's lookups.
type PostgresStore struct {
	pool  db.Pool
	table string
}

// NewPostgres returns a store over pool using table (DefaultTable if empty).
// The store owns the pool and closes it on Close.
func NewPostgres(pool db.Pool, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{pool: pool, table: table}
}

// Migrate creates the cache table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	address    TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	latitude   DOUBLE PRECISION,
	longitude  DOUBLE PRECISION,
	source     TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, db.QuoteTable(s.table))
	_, err := s.pool.Exec(ctx, q)
	return eris.Wrapf(err, "postgres: migrate %s", s.table)
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) (map[string]Entry, error) {
	q := fmt.Sprintf(`SELECT address, status, latitude, longitude, source, run_id, updated_at FROM %s`,
		db.QuoteTable(s.table))
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load cache")
	}
	defer rows.Close()

	out := make(map[string]Entry)
	for rows.Next() {
		var (
			e        Entry
			status   string
			lat, lon *float64
			updated  time.Time
		)
		if err := rows.Scan(&e.Address, &status, &lat, &lon, &e.Source, &e.RunID, &updated); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cache row")
		}
		e.Status = Status(status)
		if lat != nil && lon != nil {
			e.Latitude, e.Longitude = *lat, *lon
		}
		e.UpdatedAt = updated.UTC()
		out[e.Address] = e
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate cache")
}

// Upsert implements Store using a COPY into a temp table followed by
// INSERT ... ON CONFLICT. When runs share the table, an entry never
// replaces one written later.
func (s *PostgresStore) Upsert(ctx context.Context, entries []Entry) error {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		var lat, lon any
		if e.Matched() {
			lat, lon = e.Latitude, e.Longitude
		}
		rows = append(rows, []any{e.Address, string(e.Status), lat, lon, e.Source, e.RunID, e.UpdatedAt.UTC()})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        s.table,
		Columns:      pgColumns,
		ConflictKeys: []string{"address"},
		NewestBy:     "updated_at",
	}, rows)
	return eris.Wrap(err, "postgres: upsert cache")
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE address = ANY($1)`, db.QuoteTable(s.table))
	_, err := s.pool.Exec(ctx, q, addresses)
	return eris.Wrap(err, "postgres: delete cache entries")
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
