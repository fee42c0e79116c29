// Package store persists precompiled script chunks in a SQLite library,
// keyed by id and content hash.
package store

import (
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/halcyon-games/lua4/vm"
)

// ErrScriptNotFound indicates the requested script doesn't exist
var ErrScriptNotFound = errors.New("script not found")

// Entry describes one stored script.
type Entry struct {
	ID        string
	Name      string
	Hash      [32]byte
	Size      int
	CreatedAt time.Time
}

// Store handles SQLite storage for precompiled chunks. Chunks are validated
// with vm.Load before they are written; the library never holds a chunk the
// engine cannot load.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) a script library at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS scripts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		hash BLOB NOT NULL,
		data BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put validates and stores a chunk under the given name, replacing any
// previous chunk with that name. It returns the stored entry's id.
func (s *Store) Put(name string, data []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("script name is empty")
	}
	if _, err := vm.Load(data); err != nil {
		return "", fmt.Errorf("rejecting chunk %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	hash := sha256.Sum256(data)
	_, err := s.db.Exec(
		`INSERT INTO scripts (id, name, hash, data, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET hash = excluded.hash, data = excluded.data`,
		id, name, hash[:], data, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("saving script %q: %w", name, err)
	}

	// A replaced row keeps its original id; read back whichever won.
	var storedID string
	if err := s.db.QueryRow("SELECT id FROM scripts WHERE name = ?", name).Scan(&storedID); err != nil {
		return "", fmt.Errorf("reading back script %q: %w", name, err)
	}
	return storedID, nil
}

// Get returns the raw chunk bytes stored under name.
func (s *Store) Get(name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM scripts WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScriptNotFound
		}
		return nil, fmt.Errorf("querying script %q: %w", name, err)
	}
	return data, nil
}

// Load fetches the named chunk and parses it into a prototype.
func (s *Store) Load(name string) (*vm.FuncProto, error) {
	data, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	p, err := vm.Load(data)
	if err != nil {
		return nil, fmt.Errorf("stored chunk %q: %w", name, err)
	}
	return p, nil
}

// Stat returns the entry metadata for name without the chunk bytes.
func (s *Store) Stat(name string) (*Entry, error) {
	row := s.db.QueryRow(
		"SELECT id, name, hash, length(data), created_at FROM scripts WHERE name = ?", name)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScriptNotFound
		}
		return nil, fmt.Errorf("querying script %q: %w", name, err)
	}
	return e, nil
}

// List returns metadata for every stored script, ordered by name.
func (s *Store) List() ([]*Entry, error) {
	rows, err := s.db.Query(
		"SELECT id, name, hash, length(data), created_at FROM scripts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning script: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the named script. Deleting a missing script is not an
// error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM scripts WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting script %q: %w", name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var hash []byte
	if err := row.Scan(&e.ID, &e.Name, &hash, &e.Size, &e.CreatedAt); err != nil {
		return nil, err
	}
	copy(e.Hash[:], hash)
	return &e, nil
}
