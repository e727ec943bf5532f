package geocache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the cache in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode
// and creates the cache table.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address    TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	latitude   REAL,
	longitude  REAL,
	source     TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_status ON geocode_cache(status);
`

// Migrate creates the cache table if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, status, latitude, longitude, source, run_id, updated_at FROM geocode_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load cache")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]Entry)
	for rows.Next() {
		var (
			e        Entry
			status   string
			lat, lon sql.NullFloat64
			updated  string
		)
		if err := rows.Scan(&e.Address, &status, &lat, &lon, &e.Source, &e.RunID, &updated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache row")
		}
		e.Status = Status(status)
		e.Latitude = lat.Float64
		e.Longitude = lon.Float64
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			e.UpdatedAt = t
		}
		out[e.Address] = e
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate cache")
}

// Upsert implements Store. All entries are written in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO geocode_cache (address, status, latitude, longitude, source, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			status = excluded.status,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			source = excluded.source,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, e := range entries {
		lat, lon := nullCoords(e)
		if _, err := stmt.ExecContext(ctx, e.Address, string(e.Status), lat, lon, e.Source, e.RunID,
			e.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return eris.Wrapf(err, "sqlite: upsert %q", e.Address)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert")
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, addresses []string) error {
	for _, a := range addresses {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM geocode_cache WHERE address = ?`, a); err != nil {
			return eris.Wrapf(err, "sqlite: delete %q", a)
		}
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullCoords(e Entry) (lat, lon sql.NullFloat64) {
	if !e.Matched() {
		return lat, lon
	}
	return sql.NullFloat64{Float64: e.Latitude, Valid: true}, sql.NullFloat64{Float64: e.Longitude, Valid: true}
}
