// Package config loads and validates the service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30m".
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or a nanosecond integer.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// Std converts back to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration.
type Config struct {
	Listen     string   `yaml:"listen" validate:"required,hostname_port"`
	StoreDSN   string   `yaml:"store_dsn"`
	SessionTTL Duration `yaml:"session_ttl" validate:"min=0"`

	Fetch FetchConfig `yaml:"fetch"`
}

// FetchConfig bounds outbound page and image fetching.
type FetchConfig struct {
	MaxBytes   int64    `yaml:"max_bytes" validate:"min=1024"`
	Timeout    Duration `yaml:"timeout" validate:"gt=0"`
	RatePerSec float64  `yaml:"rate_per_sec" validate:"gt=0"`
	Burst      int      `yaml:"burst" validate:"min=1"`
	MaxTextLen int      `yaml:"max_text_len" validate:"min=100"`
	HashImages bool     `yaml:"hash_images"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:     "localhost:8080",
		StoreDSN:   "",
		SessionTTL: Duration(time.Hour),
		Fetch: FetchConfig{
			MaxBytes:   10 << 20,
			Timeout:    Duration(20 * time.Second),
			RatePerSec: 5,
			Burst:      5,
			MaxTextLen: 200000,
			HashImages: true,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
