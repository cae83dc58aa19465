package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lessonplay.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	window, _ := cfg.SuppressWindow()
	if window != 5*time.Second {
		t.Errorf("expected 5s suppression window, got %v", window)
	}
	tick, _ := cfg.PlaybackTick()
	if tick != 250*time.Millisecond {
		t.Errorf("expected 250ms tick, got %v", tick)
	}
	if cfg.Suppress.MaxPerFragment != 3 {
		t.Errorf("expected 3 reports per fragment, got %d", cfg.Suppress.MaxPerFragment)
	}
	if !cfg.Sandbox.Dynamic {
		t.Errorf("expected dynamic compile to default to true")
	}
	if level, _ := cfg.LogLevel(); level != slog.LevelInfo {
		t.Errorf("expected info log level, got %v", level)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
narration:
  base_url: https://tts.example
stream:
  url: https://lessons.example/stream
suppress:
  window: 1m
  max_per_fragment: 2
playback:
  tick: 100ms
sandbox:
  dynamic: false
repair:
  url: https://lessons.example/repair
telemetry:
  enabled: true
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Narration.BaseURL != "https://tts.example" {
		t.Errorf("unexpected narration base url %q", cfg.Narration.BaseURL)
	}
	if cfg.Stream.URL != "https://lessons.example/stream" {
		t.Errorf("unexpected stream url %q", cfg.Stream.URL)
	}
	if window, _ := cfg.SuppressWindow(); window != time.Minute {
		t.Errorf("expected 1m window, got %v", window)
	}
	if cfg.Suppress.MaxPerFragment != 2 {
		t.Errorf("expected 2 reports per fragment, got %d", cfg.Suppress.MaxPerFragment)
	}
	if tick, _ := cfg.PlaybackTick(); tick != 100*time.Millisecond {
		t.Errorf("expected 100ms tick, got %v", tick)
	}
	if cfg.Sandbox.Dynamic {
		t.Errorf("expected dynamic compile to be disabled")
	}
	if cfg.Repair.URL != "https://lessons.example/repair" || cfg.Repair.MaxAttempts != 1 {
		t.Errorf("unexpected repair config %+v", cfg.Repair)
	}
	if !cfg.Telemetry.Enabled {
		t.Errorf("expected telemetry to be enabled")
	}
	if level, _ := cfg.LogLevel(); level != slog.LevelDebug {
		t.Errorf("expected debug log level, got %v", level)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "narration:\n  base_url: https://file.example\n")
	t.Setenv("LESSON_NARRATION__BASE_URL", "https://env.example")
	t.Setenv("LESSON_SUPPRESS__WINDOW", "2s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Narration.BaseURL != "https://env.example" {
		t.Errorf("expected env to win, got %q", cfg.Narration.BaseURL)
	}
	if window, _ := cfg.SuppressWindow(); window != 2*time.Second {
		t.Errorf("expected 2s window, got %v", window)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{name: "bad window", contents: "suppress:\n  window: soon\n"},
		{name: "negative tick", contents: "playback:\n  tick: -1s\n"},
		{name: "zero reports", contents: "suppress:\n  max_per_fragment: 0\n"},
		{name: "unknown level", contents: "log:\n  level: loud\n"},
		{name: "invalid yaml", contents: "suppress: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.contents)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}
