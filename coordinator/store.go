package coordinator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veilbit/otprelay/codes"
	"github.com/veilbit/otprelay/dbopen"
)

// bufferKey is the single durable-state key holding the serialized code
// buffer. Written on every mutation, read once at startup.
const bufferKey = "code_buffer"

const storeSchema = `
CREATE TABLE IF NOT EXISTS relay_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store persists the code buffer to SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the relay database at path.
func OpenStore(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(storeSchema))
	if err != nil {
		return nil, fmt.Errorf("coordinator: open store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open database (tests use an in-memory one).
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(storeSchema); err != nil {
		return nil, fmt.Errorf("coordinator: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes the full buffer under the single state key.
func (s *Store) Save(ctx context.Context, buffer []codes.Record) error {
	data, err := json.Marshal(buffer)
	if err != nil {
		return fmt.Errorf("coordinator: marshal buffer: %w", err)
	}
	_, err = dbopen.Exec(ctx, s.db, `
		INSERT INTO relay_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		bufferKey, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("coordinator: save buffer: %w", err)
	}
	return nil
}

// Load reads the buffer back. A missing key is an empty buffer, not an
// error.
func (s *Store) Load(ctx context.Context) ([]codes.Record, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM relay_state WHERE key = ?`, bufferKey).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("coordinator: load buffer: %w", err)
	}
	var buffer []codes.Record
	if err := json.Unmarshal(data, &buffer); err != nil {
		return nil, fmt.Errorf("coordinator: unmarshal buffer: %w", err)
	}
	return buffer, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
