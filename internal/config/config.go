package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultPath = "lessonplay.yaml"
	EnvPrefix   = "LESSON_"
)

type Config struct {
	Narration NarrationConfig `koanf:"narration"`
	Stream    StreamConfig    `koanf:"stream"`
	Suppress  SuppressConfig  `koanf:"suppress"`
	Playback  PlaybackConfig  `koanf:"playback"`
	Sandbox   SandboxConfig   `koanf:"sandbox"`
	Repair    RepairConfig    `koanf:"repair"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

type NarrationConfig struct {
	// BaseURL is where root-relative narration URLs are resolved.
	BaseURL string `koanf:"base_url"`
}

type StreamConfig struct {
	URL string `koanf:"url"`
}

type SuppressConfig struct {
	Window         string `koanf:"window"` // Duration string like "30s"
	MaxPerFragment int    `koanf:"max_per_fragment"`
}

type PlaybackConfig struct {
	Tick string `koanf:"tick"` // Duration string like "250ms"
}

type SandboxConfig struct {
	Dynamic bool `koanf:"dynamic"`
}

type RepairConfig struct {
	URL         string `koanf:"url"`
	MaxAttempts int    `koanf:"max_attempts"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

var defaults = map[string]any{
	"suppress.window":           "5s",
	"suppress.max_per_fragment": 3,
	"playback.tick":             "250ms",
	"sandbox.dynamic":           true,
	"repair.max_attempts":       1,
	"log.level":                 "info",
}

// Load reads path (a missing file is fine) and then LESSON_ environment
// variables, which win. A double underscore in a variable name separates
// key levels, so LESSON_NARRATION__BASE_URL sets narration.base_url.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("error loading config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.SuppressWindow(); err != nil {
		return err
	}
	if _, err := c.PlaybackTick(); err != nil {
		return err
	}
	if c.Suppress.MaxPerFragment < 1 {
		return fmt.Errorf("suppress.max_per_fragment must be at least 1, got %d", c.Suppress.MaxPerFragment)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) SuppressWindow() (time.Duration, error) {
	return parsePositiveDuration("suppress.window", c.Suppress.Window)
}

func (c *Config) PlaybackTick() (time.Duration, error) {
	return parsePositiveDuration("playback.tick", c.Playback.Tick)
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}
