package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragmas configure the recorder connection. The pool is capped at one
// connection, so they hold for every statement.
var pragmas = []struct {
	name  string
	value string
}{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migrations[v] upgrades a recorder database at user_version v to v+1.
// Append only.
var migrations = []func(*sql.Tx) error{
	addTagHistoryIndex,
}

// Store records engine runs in SQLite: one row per run, one per published
// snapshot and one per tag value in that snapshot.
type Store struct {
	db *sql.DB
}

// Open creates or opens a recorder database at path and brings its schema
// up to date. Reopening an existing recording keeps its runs.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder %s: %w", path, err)
	}

	// One writer: the scan loop's update callback.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open recorder %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return err
	}
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return migrate(db)
}

// migrate runs every migration past the database's user_version, each in
// its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := migrations[v](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	return nil
}

// addTagHistoryIndex serves ReadTagHistory, which filters one tag of one
// run in publication order.
func addTagHistoryIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_tag_values_history ON tag_values(run_id, tag_id, seq)`)
	return err
}

// pragma reads the current value of a connection setting.
func (s *Store) pragma(name string) (string, error) {
	var value string
	err := s.db.QueryRow("PRAGMA " + name).Scan(&value)
	return value, err
}
