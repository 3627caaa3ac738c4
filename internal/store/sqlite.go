package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements RouteStore, PriceCache and HistorySink using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu      sync.Mutex // guards entropy
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Search workers write the cache concurrently; one connection serializes
	// them and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS routes (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		airline_code TEXT NOT NULL,
		origin       TEXT NOT NULL,
		destination  TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		UNIQUE(airline_code, origin, destination)
	);
	CREATE INDEX IF NOT EXISTS idx_routes_origin ON routes(origin);
	CREATE INDEX IF NOT EXISTS idx_routes_destination ON routes(destination);

	CREATE TABLE IF NOT EXISTS price_cache (
		query_key   TEXT PRIMARY KEY,
		fetched_at  TEXT NOT NULL,
		provider    TEXT NOT NULL,
		itineraries TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS searches (
		id          TEXT PRIMARY KEY,
		timestamp   TEXT NOT NULL,
		origins     TEXT NOT NULL,
		destination TEXT NOT NULL,
		depart_date TEXT NOT NULL,
		return_date TEXT,
		params_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS prices (
		id           TEXT PRIMARY KEY,
		query_key    TEXT NOT NULL,
		route        TEXT NOT NULL,
		price        INTEGER NOT NULL,
		currency     TEXT NOT NULL,
		booking_type TEXT NOT NULL,
		airline      TEXT,
		fetched_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_prices_route ON prices(route, fetched_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
