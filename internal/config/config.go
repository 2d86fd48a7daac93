// Package config handles configuration loading and shared defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/woozymasta/geotrack/internal/geo"
	"github.com/woozymasta/geotrack/internal/track"

	"gopkg.in/yaml.v3"
)

// Simplification methods.
const (
	SimplifyNone     = "none"
	SimplifyDistance = "distance"
	SimplifyDouglas  = "douglas"
)

// Config represents the root configuration file structure.
type Config struct {
	// Datum is the output datum, empty keeps the datum of each source.
	Datum    string   `yaml:"datum,omitempty" json:"datum,omitempty"`
	Fetch    Fetch    `yaml:"fetch" json:"fetch"`
	Simplify Simplify `yaml:"simplify" json:"simplify"`
	GeoJSON  GeoJSON  `yaml:"geojson" json:"geojson"`
	AMap     AMap     `yaml:"amap" json:"-"`
}

// Fetch configures retrieval of source documents.
type Fetch struct {
	UserAgent string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	RPS       float64       `yaml:"rps,omitempty" json:"rps,omitempty"`
	Burst     int           `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// Simplify holds default simplification settings.
type Simplify struct {
	Method      string  `yaml:"method,omitempty" json:"method,omitempty"`
	MinDistance float64 `yaml:"min_distance,omitempty" json:"min_distance,omitempty"` // meters
	Epsilon     float64 `yaml:"epsilon,omitempty" json:"epsilon,omitempty"`           // projected meters
	// Prefilter thins dense tracks radially before Douglas-Peucker.
	Prefilter bool `yaml:"prefilter,omitempty" json:"prefilter,omitempty"`
}

// GeoJSON configures track output.
type GeoJSON struct {
	// Precision is the number of significant digits kept, 0 keeps all.
	Precision int `yaml:"precision,omitempty" json:"precision,omitempty"`
}

// AMap configures the batch conversion fallback.
type AMap struct {
	Key string `yaml:"key,omitempty"`
	URL string `yaml:"url,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Load reads and parses the YAML configuration file from the specified path.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "geotrack/1.0"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.Burst <= 0 {
		c.Fetch.Burst = 1
	}
	if c.Simplify.Method == "" {
		c.Simplify.Method = SimplifyNone
	}
	if c.Simplify.MinDistance == 0 {
		c.Simplify.MinDistance = track.DefaultMinDistance
	}
}

// Validate rejects values the processing pipeline cannot honor.
func (c *Config) Validate() error {
	if _, err := geo.ParseDatum(c.Datum); err != nil {
		return err
	}
	if err := ValidateMethod(c.Simplify.Method); err != nil {
		return err
	}
	if c.Simplify.MinDistance < 0 || c.Simplify.Epsilon < 0 {
		return fmt.Errorf("simplify thresholds must not be negative")
	}
	if c.Fetch.RPS < 0 || c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch rps and timeout must not be negative")
	}
	if c.GeoJSON.Precision < 0 {
		return fmt.Errorf("geojson precision must not be negative")
	}
	return nil
}

// ValidateMethod checks a simplification method name.
func ValidateMethod(method string) error {
	switch method {
	case SimplifyNone, SimplifyDistance, SimplifyDouglas:
		return nil
	}
	return fmt.Errorf("unknown simplify method %q", method)
}
