package palette

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/spotrgb/agent/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cachedEntry is the serialized form of one extracted palette.
type cachedEntry struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	N int   `json:"n"`
}

// Store persists extracted palettes keyed by album art URL so the same
// cover never has to be downloaded and quantized twice. The raw merged
// palette is cached, not the selected colors, so changing the selection
// strategy does not invalidate entries.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS palettes (
	url        TEXT PRIMARY KEY,
	palette    TEXT NOT NULL,
	avg_sat    REAL NOT NULL,
	created_at INTEGER NOT NULL
);`

// OpenStore opens (and if needed creates) the palette database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening palette cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing palette cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached palette for url, or ok=false on a miss.
func (s *Store) Get(url string) (colors []weighted, avgSat float64, ok bool) {
	var raw string
	err := s.db.QueryRow(
		`SELECT palette, avg_sat FROM palettes WHERE url = ?`, url,
	).Scan(&raw, &avgSat)
	if err != nil {
		return nil, 0, false
	}
	var entries []cachedEntry
	if err := json.UnmarshalFromString(raw, &entries); err != nil {
		return nil, 0, false
	}
	for _, e := range entries {
		colors = append(colors, weighted{
			color: models.RGB{R: e.R, G: e.G, B: e.B},
			count: e.N,
		})
	}
	return colors, avgSat, len(colors) > 0
}

// Put stores the palette for url, replacing any previous entry.
func (s *Store) Put(url string, colors []weighted, avgSat float64) error {
	entries := make([]cachedEntry, 0, len(colors))
	for _, wc := range colors {
		entries = append(entries, cachedEntry{
			R: wc.color.R, G: wc.color.G, B: wc.color.B, N: wc.count,
		})
	}
	raw, err := json.MarshalToString(entries)
	if err != nil {
		return fmt.Errorf("encoding palette: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO palettes (url, palette, avg_sat, created_at) VALUES (?, ?, ?, ?)`,
		url, raw, avgSat, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing palette cache: %w", err)
	}
	return nil
}

// Clear drops every cached palette.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM palettes`)
	return err
}
