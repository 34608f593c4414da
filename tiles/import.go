package tiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ImportResult reports what an import run did.
type ImportResult struct {
	Stored  int
	Missing []Key
}

// TileFilename is the on-disk name the download pipeline saves tiles
// under.
func TileFilename(k Key) string {
	return fmt.Sprintf("%d_%d_%d.png", k.Zoom, k.X, k.Y)
}

// ParseTileFilename is the inverse of TileFilename.
func ParseTileFilename(name string) (Key, error) {
	var k Key
	base := filepath.Base(name)
	if _, err := fmt.Sscanf(strings.TrimSuffix(base, ".png"), "%d_%d_%d", &k.Zoom, &k.X, &k.Y); err != nil || !strings.HasSuffix(base, ".png") {
		return Key{}, fmt.Errorf("%s: not a {z}_{x}_{y}.png tile file", base)
	}
	if !k.Valid() {
		return Key{}, fmt.Errorf("%s: tile %s is outside its zoom grid", base, k)
	}
	return k, nil
}

// ImportFiles stores individual tile files, each named as TileFilename
// names them. It is meant for patching a few tiles; ImportDir is faster
// for a full tree.
func (s *Store) ImportFiles(ctx context.Context, paths []string, server string) (ImportResult, error) {
	var res ImportResult
	if server == "" {
		server = DefaultServer
	}
	for _, p := range paths {
		k, err := ParseTileFilename(p)
		if err != nil {
			return res, err
		}
		img, err := os.ReadFile(p)
		if err != nil {
			return res, fmt.Errorf("failed to read tile %s: %w", k, err)
		}
		if err := s.Put(ctx, k, server, img); err != nil {
			return res, err
		}
		res.Stored++
	}
	s.lg.Info("imported tile files", "stored", res.Stored)
	return res, nil
}

// ImportDir stores every {z}_{x}_{y}.png found in dir for zoom levels
// 0..maxZoom in one transaction. Missing files are reported, not fatal.
func (s *Store) ImportDir(ctx context.Context, dir string, maxZoom int, server string) (ImportResult, error) {
	var res ImportResult
	if s.readOnly {
		return res, errors.New("tile database is open read-only")
	}
	if maxZoom < 0 || maxZoom > 20 {
		return res, fmt.Errorf("max zoom %d out of range 0..20", maxZoom)
	}
	if server == "" {
		server = DefaultServer
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO tiles (zoom, x, y, server, tile_image)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return res, fmt.Errorf("failed to prepare tile insert: %w", err)
	}
	defer stmt.Close()

	for z := 0; z <= maxZoom; z++ {
		n := 1 << z
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				if err := ctx.Err(); err != nil {
					return res, err
				}

				k := Key{Zoom: z, X: x, Y: y}
				img, err := os.ReadFile(filepath.Join(dir, TileFilename(k)))
				if errors.Is(err, fs.ErrNotExist) {
					s.lg.Warn("missing tile file", "tile", k.String())
					res.Missing = append(res.Missing, k)
					continue
				} else if err != nil {
					return res, fmt.Errorf("failed to read tile %s: %w", k, err)
				}

				if err := insert(ctx, stmt, k, server, img); err != nil {
					return res, err
				}
				res.Stored++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.cache.Purge()

	s.lg.Info("imported tiles", "dir", dir, "stored", res.Stored, "missing", len(res.Missing))
	return res, nil
}

func insert(ctx context.Context, stmt *sql.Stmt, k Key, server string, img []byte) error {
	if _, err := stmt.ExecContext(ctx, k.Zoom, k.X, k.Y, server, img); err != nil {
		return fmt.Errorf("failed to store tile %s: %w", k, err)
	}
	return nil
}

// verifySchema checks that db looks like a tile database.
func verifySchema(db *sql.DB) error {
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='tiles'").Scan(&name)
	if err != nil {
		return fmt.Errorf("required table 'tiles' not found")
	}
	return nil
}
