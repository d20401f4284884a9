// Package teicache persists external parser responses in a small SQLite
// database keyed by content hash, so an unchanged PDF is processed once.
package teicache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache wraps the SQLite connection.
type Cache struct {
	db *sql.DB
}

// Key derives the cache key for file content.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE IF NOT EXISTS tei_responses (
			key TEXT PRIMARY KEY,
			tei BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached response for key, if any.
func (c *Cache) Get(key string) ([]byte, bool) {
	var tei []byte
	err := c.db.QueryRow("SELECT tei FROM tei_responses WHERE key = ?", key).Scan(&tei)
	if err != nil {
		return nil, false
	}
	return tei, true
}

// Put stores a response under key, replacing any previous entry.
func (c *Cache) Put(key string, tei []byte) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO tei_responses (key, tei, created_at) VALUES (?, ?, ?)",
		key, tei, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}
