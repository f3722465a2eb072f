// Package config loads the daemon configuration from layered sources:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "SECTIOND_CONFIG"

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"sectiond.yaml",
	"sectiond.yml",
	"/etc/sectiond/config.yaml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Cache    CacheConfig    `koanf:"cache"`
	Sampling SamplingConfig `koanf:"sampling"`
	Datasets DatasetsConfig `koanf:"datasets"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level   string `koanf:"level" validate:"oneof=debug info warn error"`
	Console bool   `koanf:"console"`
}

type CacheConfig struct {
	// Size bounds the number of completed profiles held in memory.
	Size int `koanf:"size" validate:"gt=0"`
}

type SamplingConfig struct {
	// DefaultStep is the raster sampling interval used when a request
	// leaves Step at zero, in the dataset's linear units.
	DefaultStep float64 `koanf:"default_step" validate:"gte=0"`
	// MaxPreviewPoints caps the reduced topographic polyline when the
	// request does not set its own budget. Zero selects the automatic
	// viewport-derived target.
	MaxPreviewPoints int `koanf:"max_preview_points" validate:"gte=0"`
}

// DatasetsConfig names the data the daemon serves. Rasters map a raster
// reference to an ESRI ASCII grid path; Layers map a layer reference to a
// GeoJSON feature collection path.
type DatasetsConfig struct {
	Rasters map[string]string `koanf:"rasters"`
	Layers  map[string]string `koanf:"layers"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: false,
		},
		Cache: CacheConfig{
			Size: 64,
		},
		Sampling: SamplingConfig{
			DefaultStep:      0, // 0 = raster resolution
			MaxPreviewPoints: 0, // 0 = viewport-derived
		},
	}
}

// Load builds the configuration. path may be empty, in which case the
// default locations (and SECTIOND_CONFIG) are searched; a missing file is
// not an error, the defaults plus environment apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// SECTIOND_SERVER_ADDR -> server.addr, SECTIOND_LOGGING_LEVEL -> logging.level
	if err := k.Load(env.Provider("SECTIOND_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings pins the environment surface; unknown variables are ignored
// so stray SECTIOND_* names cannot silently change behavior.
var envMappings = map[string]string{
	"server_addr":                 "server.addr",
	"server_read_timeout":         "server.read_timeout",
	"server_write_timeout":        "server.write_timeout",
	"server_idle_timeout":         "server.idle_timeout",
	"server_shutdown_timeout":     "server.shutdown_timeout",
	"log_level":                   "logging.level",
	"log_console":                 "logging.console",
	"cache_size":                  "cache.size",
	"sampling_default_step":       "sampling.default_step",
	"sampling_max_preview_points": "sampling.max_preview_points",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "SECTIOND_"))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
