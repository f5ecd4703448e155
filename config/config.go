// Package config loads the settings of the snapfilter service from the environment.
package config

import (
	"os"
	"time"

	"github.com/facefx/snapfilter"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Prefix is prepended to every environment variable name read by Load.
const Prefix = "SNAPFILTER"

type Config struct {
	// Server
	Addr        string `envconfig:"ADDR" default:":8080"`
	Environment string `envconfig:"ENV" default:"development"`
	BodyLimit   int    `envconfig:"BODY_LIMIT" default:"10485760"`
	// RateLimit is the number of filter requests per second allowed for a client IP, 0 disables it.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"0"`
	RateBurst int     `envconfig:"RATE_BURST" default:"5"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Assets, given either as name:path pairs or as a directory of <name>.png files.
	Assets   map[string]string `envconfig:"ASSETS"`
	AssetDir string            `envconfig:"ASSET_DIR"`
	AssetTTL time.Duration     `envconfig:"ASSET_TTL" default:"0"`

	// Face detection
	Cascades string  `envconfig:"CASCADES" default:"cascade"`
	MinSize  int     `envconfig:"MIN_SIZE" default:"20"`
	MaxSize  int     `envconfig:"MAX_SIZE" default:"1000"`
	Quality  float32 `envconfig:"QUALITY" default:"5"`
	Angle    float64 `envconfig:"ANGLE" default:"0"`
}

// Load reads the dotenv files, then processes the environment.
// Variables already present in the environment take precedence over the dotenv files.
// Without arguments an optional .env file from the working directory is used.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, errors.Wrap(err, "load dotenv")
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if len(cfg.Assets) == 0 && cfg.AssetDir == "" {
		return nil, errors.Errorf("either %s_ASSETS or %s_ASSET_DIR is required", Prefix, Prefix)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Registry builds the asset registry. Explicit assets override the ones found in the asset directory.
func (c *Config) Registry() (*snapfilter.Registry, error) {
	reg := snapfilter.NewRegistry(nil)
	if c.AssetDir != "" {
		var err error
		if reg, err = snapfilter.RegistryFromDir(c.AssetDir); err != nil {
			return nil, err
		}
	}
	for name, path := range c.Assets {
		reg.Register(name, path)
	}
	return reg.WithCache(c.AssetTTL), nil
}

// Cascade returns the pigo detector settings.
func (c *Config) Cascade() snapfilter.CascadeConfig {
	return snapfilter.CascadeConfig{
		Dir:              c.Cascades,
		MinSize:          c.MinSize,
		MaxSize:          c.MaxSize,
		QualityThreshold: c.Quality,
		Angle:            c.Angle,
	}
}
