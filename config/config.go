// Package config loads the display's settings.
//
// Values are layered, each layer overriding the one before it:
//   - built-in defaults,
//   - the YAML file named by --config (vornav.yaml if not given; a
//     missing default file is not an error),
//   - VORNAV_* environment variables, after loading .env if present,
//   - command-line flags that were set explicitly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kaireichart/vor-nav-display/frame"
	"github.com/kaireichart/vor-nav-display/indicator"
	"github.com/kaireichart/vor-nav-display/log"
)

// DefaultFile is read when --config is not given.
const DefaultFile = "vornav.yaml"

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "VORNAV_"

type Config struct {
	// Listen is the renderer's HTTP address.
	Listen string `yaml:"listen"`

	// TileDB is the offline tile database. Empty disables the map
	// background.
	TileDB string `yaml:"tile_db"`

	// Catalog is the VOR station CSV used for origin search.
	Catalog string `yaml:"catalog"`

	Log       LogConfig       `yaml:"log"`
	Events    EventsConfig    `yaml:"events"`
	Frame     FrameConfig     `yaml:"frame"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Producer  ProducerConfig  `yaml:"producer"`
	Tiles     TilesConfig     `yaml:"tiles"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Dir defaults to the user config directory.
	Dir string `yaml:"dir"`
}

type EventsConfig struct {
	// Dir receives one events_<timestamp>.log per session. Empty keeps
	// events in memory only.
	Dir string `yaml:"dir"`
}

type FrameConfig struct {
	MaxBytes int `yaml:"max_bytes"`
}

type IndicatorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type ProducerConfig struct {
	// Command, if set, is launched and used for both channels instead of
	// stdin and stdout.
	Command string `yaml:"command"`
}

type TilesConfig struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

func Default() Config {
	return Config{
		Listen: "127.0.0.1:8080",
		Log:    LogConfig{Level: "info"},
		Events: EventsConfig{Dir: "logs"},
		Frame:  FrameConfig{MaxBytes: frame.DefaultMaxBytes},
		Indicator: IndicatorConfig{
			Interval: indicator.DefaultInterval,
		},
		Tiles: TilesConfig{CacheSize: 256, CacheTTL: time.Hour},
	}
}

// Load builds the configuration from args (without the program name), the
// process environment and an optional .env file.
func Load(name string, args []string) (Config, []string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadWith(name, args, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(name string, args []string, lookupEnv func(string) (string, bool)) (Config, []string, error) {
	flagCfg := Default()
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configPath := flagSet.String("config", DefaultFile, "path to the YAML configuration file")
	registerFlags(flagSet, &flagCfg)

	if err := flagSet.Parse(args); err != nil {
		return Config{}, nil, err
	}

	cfg := Default()
	if err := loadFile(*configPath, &cfg, flagSet.Changed("config")); err != nil {
		return Config{}, nil, err
	}
	if err := applyEnv(&cfg, lookupEnv); err != nil {
		return Config{}, nil, err
	}
	flagSet.Visit(func(f *pflag.Flag) {
		applyFlag(&cfg, &flagCfg, f.Name)
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	return cfg, flagSet.Args(), nil
}

func registerFlags(f *pflag.FlagSet, c *Config) {
	f.StringVar(&c.Listen, "listen", c.Listen, "HTTP listen address of the display")
	f.StringVar(&c.TileDB, "tile-db", c.TileDB, "offline tile database (sqlite)")
	f.StringVar(&c.Catalog, "catalog", c.Catalog, "VOR station catalog (CSV)")
	f.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: debug, info, warn or error")
	f.StringVar(&c.Log.Dir, "log-dir", c.Log.Dir, "directory for the rotating log file")
	f.StringVar(&c.Events.Dir, "events-dir", c.Events.Dir, "directory for the session event journal")
	f.IntVar(&c.Frame.MaxBytes, "frame-max-bytes", c.Frame.MaxBytes, "maximum bytes of one incomplete input message")
	f.DurationVar(&c.Indicator.Interval, "indicator-interval", c.Indicator.Interval, "flash phase duration")
	f.StringVar(&c.Producer.Command, "producer", c.Producer.Command, "producer command to launch instead of using stdin/stdout")
	f.IntVar(&c.Tiles.CacheSize, "tiles-cache-size", c.Tiles.CacheSize, "number of tiles kept in memory")
	f.DurationVar(&c.Tiles.CacheTTL, "tiles-cache-ttl", c.Tiles.CacheTTL, "how long cached tiles stay valid")
}

func applyFlag(dst, src *Config, name string) {
	switch name {
	case "listen":
		dst.Listen = src.Listen
	case "tile-db":
		dst.TileDB = src.TileDB
	case "catalog":
		dst.Catalog = src.Catalog
	case "log-level":
		dst.Log.Level = src.Log.Level
	case "log-dir":
		dst.Log.Dir = src.Log.Dir
	case "events-dir":
		dst.Events.Dir = src.Events.Dir
	case "frame-max-bytes":
		dst.Frame.MaxBytes = src.Frame.MaxBytes
	case "indicator-interval":
		dst.Indicator.Interval = src.Indicator.Interval
	case "producer":
		dst.Producer.Command = src.Producer.Command
	case "tiles-cache-size":
		dst.Tiles.CacheSize = src.Tiles.CacheSize
	case "tiles-cache-ttl":
		dst.Tiles.CacheTTL = src.Tiles.CacheTTL
	}
}

func loadFile(path string, cfg *Config, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("LISTEN", &cfg.Listen)
	str("TILE_DB", &cfg.TileDB)
	str("CATALOG", &cfg.Catalog)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_DIR", &cfg.Log.Dir)
	str("EVENTS_DIR", &cfg.Events.Dir)
	str("PRODUCER_COMMAND", &cfg.Producer.Command)

	return errors.Join(
		num("FRAME_MAX_BYTES", &cfg.Frame.MaxBytes),
		num("TILES_CACHE_SIZE", &cfg.Tiles.CacheSize),
		dur("INDICATOR_INTERVAL", &cfg.Indicator.Interval),
		dur("TILES_CACHE_TTL", &cfg.Tiles.CacheTTL),
	)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen: address is required"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Frame.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("frame.max_bytes: must be positive, got %d", c.Frame.MaxBytes))
	}
	if c.Indicator.Interval <= 0 {
		errs = append(errs, fmt.Errorf("indicator.interval: must be positive, got %s", c.Indicator.Interval))
	}
	if c.Tiles.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("tiles.cache_size: must be positive, got %d", c.Tiles.CacheSize))
	}
	if c.Tiles.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("tiles.cache_ttl: must be positive, got %s", c.Tiles.CacheTTL))
	}
	return errors.Join(errs...)
}
