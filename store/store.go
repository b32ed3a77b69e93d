// Package store persists flights, profiles, deals, and the scan log
// to a file-backed SQLite database. It is the only package that
// issues SQL; every other package talks to it through model types.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every accessor
// method below works unchanged whether it runs against the pool
// directly or inside a transaction opened by WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store wraps the SQL connection pool used by every table accessor in
// this package. conn is the real pool, used to open transactions; db
// is whichever of conn or an open transaction the accessor methods
// should issue queries against.
type Store struct {
	conn *sql.DB
	db   dbtx
}

// Open opens (creating if necessary) the SQLite database at path,
// applies the busy-tolerant pragmas the concurrency model depends on,
// and runs any pending schema migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=30000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &Store{conn: db, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// WithTx runs fn against a Store backed by a single transaction,
// committing on success and rolling back if fn returns an error or
// panics. An orchestration run wraps its Harvester, Matcher, and
// Notifier calls in one WithTx so a failure midway leaves no partial
// state behind.
func (s *Store) WithTx(ctx context.Context, fn func(*Store) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	txStore := &Store{conn: s.conn, db: tx}
	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) migrate() error {
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration1Flights},
		{2, migration2ScanLog},
		{3, migration3Profiles},
		{4, migration4Deals},
		{5, migration5Users},
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

const migration1Flights = `
CREATE TABLE IF NOT EXISTS flights (
	id TEXT PRIMARY KEY,
	origin TEXT NOT NULL,
	destination TEXT NOT NULL,
	origin_full_name TEXT,
	destination_full_name TEXT,
	departure_instant DATETIME NOT NULL,
	arrival_instant DATETIME NOT NULL,
	flight_number TEXT,
	price REAL NOT NULL,
	currency TEXT NOT NULL,
	party_size INTEGER NOT NULL,
	source_api TEXT,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_flights_origin_party ON flights(origin, party_size);
CREATE INDEX IF NOT EXISTS idx_flights_destination ON flights(destination);
CREATE INDEX IF NOT EXISTS idx_flights_departure ON flights(departure_instant);
CREATE INDEX IF NOT EXISTS idx_flights_route_departure ON flights(origin, destination, departure_instant);
`

const migration2ScanLog = `
CREATE TABLE IF NOT EXISTS scan_log (
	origin TEXT NOT NULL,
	party_size INTEGER NOT NULL,
	scanned_at DATETIME NOT NULL,
	PRIMARY KEY (origin, party_size)
);
`

const migration3Profiles = `
CREATE TABLE IF NOT EXISTS search_profiles (
	id TEXT PRIMARY KEY,
	owner_user_id TEXT,
	name TEXT NOT NULL,
	origins TEXT NOT NULL,
	party_size INTEGER NOT NULL,
	max_price_pp REAL NOT NULL,
	strategy_blob TEXT,
	allowed_destinations TEXT,
	notify_destinations TEXT,
	allow_nearby_origins INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_profiles_active ON search_profiles(is_active);
`

// profile_id, outbound_flight_id, and inbound_flight_id are
// deliberately plain TEXT rather than declared foreign keys: a deal is
// allowed to outlive the flight rows it was matched against (they are
// pruned on their own staleness schedule), and callers that read a
// deal are expected to treat a missing flight as "pruned", not corrupt.
const migration4Deals = `
CREATE TABLE IF NOT EXISTS deals (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	outbound_flight_id TEXT NOT NULL,
	inbound_flight_id TEXT NOT NULL,
	total_price_pp REAL NOT NULL,
	updated_at DATETIME NOT NULL,
	notified INTEGER NOT NULL DEFAULT 0,
	UNIQUE (profile_id, outbound_flight_id, inbound_flight_id)
);

CREATE INDEX IF NOT EXISTS idx_deals_profile ON deals(profile_id);
CREATE INDEX IF NOT EXISTS idx_deals_updated ON deals(updated_at);
`

const migration5Users = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	excluded_destinations TEXT,
	notify_channel TEXT
);
`

// batchSize caps how many rows go into a single INSERT round trip;
// SQLite's default parameter limit makes unbounded batches risky once
// a harvest returns several thousand legs.
const batchSize = 1000

func chunk(n, size int) [][2]int {
	var ranges [][2]int
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		ranges = append(ranges, [2]int{lo, hi})
	}
	return ranges
}
