package tiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kaireichart/vor-nav-display/log"
)

// ErrNotFound is returned for keys with no stored tile.
var ErrNotFound = errors.New("tile not found")

// DefaultServer is recorded with imported tiles as their origin.
const DefaultServer = "https://a.tile.openstreetmap.org/{z}/{x}/{y}.png"

const schema = `
	CREATE TABLE IF NOT EXISTS tiles (
		zoom INTEGER,
		x INTEGER,
		y INTEGER,
		server TEXT,
		tile_image BLOB,
		PRIMARY KEY (zoom, x, y)
	);
`

// Key addresses one slippy-map tile.
type Key struct {
	Zoom, X, Y int
}

func (k Key) String() string { return fmt.Sprintf("%d/%d/%d", k.Zoom, k.X, k.Y) }

// Valid reports whether x and y lie inside the zoom level's grid.
func (k Key) Valid() bool {
	if k.Zoom < 0 || k.Zoom > 30 {
		return false
	}
	n := 1 << k.Zoom
	return k.X >= 0 && k.X < n && k.Y >= 0 && k.Y < n
}

// Options tune the lookup cache in front of sqlite.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Store is the offline tile database. The server opens it read-only;
// the import command opens it writable.
type Store struct {
	db       *sql.DB
	cache    *lru.LRU[Key, []byte]
	readOnly bool
	lg       *log.Logger
}

// Open opens an existing tile database read-only.
func Open(path string, opts Options, lg *log.Logger) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open tile database: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_query_only=true", path)
	s, err := open(dsn, true, opts, lg)
	if err != nil {
		return nil, err
	}
	if err := verifySchema(s.db); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("invalid tile database %s: %w", path, err)
	}
	return s, nil
}

// Create opens path for writing, creating the file and schema if needed.
func Create(path string, lg *log.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create tile database directory: %w", err)
		}
	}
	s, err := open(path, false, Options{}, lg)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(schema); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to create tiles schema: %w", err)
	}
	return s, nil
}

func open(dsn string, readOnly bool, opts Options, lg *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping tile database: %w", err)
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}

	return &Store{
		db:       db,
		cache:    lru.NewLRU[Key, []byte](opts.CacheSize, nil, opts.CacheTTL),
		readOnly: readOnly,
		lg:       lg,
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the image stored for k.
func (s *Store) Get(ctx context.Context, k Key) ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("tile %s: %w", k, ErrNotFound)
	}
	if img, ok := s.cache.Get(k); ok {
		return img, nil
	}

	var img []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT tile_image FROM tiles WHERE zoom = ? AND x = ? AND y = ?",
		k.Zoom, k.X, k.Y).Scan(&img)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tile %s: %w", k, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tile %s: %w", k, err)
	}

	s.cache.Add(k, img)
	return img, nil
}

// Put stores or replaces one tile.
func (s *Store) Put(ctx context.Context, k Key, server string, img []byte) error {
	if s.readOnly {
		return errors.New("tile database is open read-only")
	}
	if !k.Valid() {
		return fmt.Errorf("tile %s is outside its zoom grid", k)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tiles (zoom, x, y, server, tile_image)
		VALUES (?, ?, ?, ?, ?)
	`, k.Zoom, k.X, k.Y, server, img)
	if err != nil {
		return fmt.Errorf("failed to store tile %s: %w", k, err)
	}
	s.cache.Remove(k)
	return nil
}

// Stats summarises the database contents per zoom level.
type Stats struct {
	Total  int         `json:"total"`
	ByZoom map[int]int `json:"by_zoom"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByZoom: map[int]int{}}
	rows, err := s.db.QueryContext(ctx, "SELECT zoom, COUNT(*) FROM tiles GROUP BY zoom")
	if err != nil {
		return st, fmt.Errorf("failed to count tiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var zoom, n int
		if err := rows.Scan(&zoom, &n); err != nil {
			return st, fmt.Errorf("failed to scan tile counts: %w", err)
		}
		st.ByZoom[zoom] = n
		st.Total += n
	}
	return st, rows.Err()
}
