package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kaireichart/vor-nav-display/frame"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vornav.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	// The default file name is relative, so run from an empty directory.
	t.Chdir(t.TempDir())

	cfg, rest, err := LoadWith("vornav", nil, env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Frame.MaxBytes != frame.DefaultMaxBytes || cfg.Indicator.Interval != 800*time.Millisecond {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if len(rest) != 0 {
		t.Errorf("unexpected positional args %v", rest)
	}
}

func TestLayering(t *testing.T) {
	path := writeFile(t, `
listen: 0.0.0.0:9000
tile_db: /data/tiles.db
log:
  level: debug
indicator:
  interval: 500ms
tiles:
  cache_size: 64
  cache_ttl: 10m
producer:
  command: ./main
`)

	cfg, _, err := LoadWith("vornav", []string{"--config", path, "--tiles-cache-size", "32"}, env(map[string]string{
		"VORNAV_TILE_DB":            "/env/tiles.db",
		"VORNAV_TILES_CACHE_SIZE":   "128",
		"VORNAV_INDICATOR_INTERVAL": "250ms",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen != "0.0.0.0:9000" || cfg.Log.Level != "debug" || cfg.Producer.Command != "./main" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.TileDB != "/env/tiles.db" || cfg.Indicator.Interval != 250*time.Millisecond {
		t.Errorf("environment should override the file: %+v", cfg)
	}
	if cfg.Tiles.CacheSize != 32 {
		t.Errorf("flag should override the environment, got %d", cfg.Tiles.CacheSize)
	}
	if cfg.Tiles.CacheTTL != 10*time.Minute {
		t.Errorf("unexpected cache ttl %s", cfg.Tiles.CacheTTL)
	}
}

func TestUnsetFlagsDoNotOverride(t *testing.T) {
	path := writeFile(t, "listen: 0.0.0.0:9000\n")
	cfg, rest, err := LoadWith("vornav", []string{"--config", path, "extra"}, env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("default flag value must not override the file, got %q", cfg.Listen)
	}
	if len(rest) != 1 || rest[0] != "extra" {
		t.Errorf("unexpected positional args %v", rest)
	}
}

func TestExplicitMissingFile(t *testing.T) {
	_, _, err := LoadWith("vornav", []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, env(nil))
	if err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Frame.MaxBytes = 0
	cfg.Indicator.Interval = -time.Second
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"frame.max_bytes", "indicator.interval", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}

func TestBadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := LoadWith("vornav", nil, env(map[string]string{"VORNAV_FRAME_MAX_BYTES": "lots"}))
	if err == nil || !strings.Contains(err.Error(), "VORNAV_FRAME_MAX_BYTES") {
		t.Errorf("expected an environment parse error, got %v", err)
	}
}
