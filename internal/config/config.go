// Package config resolves, parses, validates, and defaults undertone
// configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

// Config is the fully materialized runtime configuration.
type Config struct {
	Call       CallConfig       `toml:"call"`
	Recognizer RecognizerConfig `toml:"recognizer"`
	Subtitle   SubtitleConfig   `toml:"subtitle"`
	Audio      AudioConfig      `toml:"audio"`
	Notify     NotifyConfig     `toml:"notify"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// CallConfig points at the video-call signaling endpoint.
type CallConfig struct {
	URL           string `toml:"url"`
	DialTimeoutMS int    `toml:"dial_timeout_ms"`
}

// RecognizerConfig points at the speech-recognition service. An empty URL
// means recognition is unavailable on this deployment.
type RecognizerConfig struct {
	URL           string `toml:"url"`
	SampleRate    int    `toml:"sample_rate"`
	ChunkBytes    int    `toml:"chunk_bytes"`
	DialTimeoutMS int    `toml:"dial_timeout_ms"`
}

// SubtitleConfig controls languages, placeholder text, and restart pacing.
type SubtitleConfig struct {
	Language    string       `toml:"language"`
	Languages   []string     `toml:"languages"`
	Placeholder string       `toml:"placeholder"`
	Restart     RestartDelay `toml:"restart"`
}

// RestartDelay overrides the engine restart debounce windows, in
// milliseconds. Zero keeps the built-in default.
type RestartDelay struct {
	ErrorMS    int `toml:"error_ms"`
	EndMS      int `toml:"end_ms"`
	LanguageMS int `toml:"language_ms"`
}

// AudioConfig controls input-source selection and device polling.
type AudioConfig struct {
	Input           string `toml:"input"`
	WatchIntervalMS int    `toml:"watch_interval_ms"`
}

// NotifyConfig controls desktop notifications.
type NotifyConfig struct {
	Enable bool `toml:"enable"`
}

// MetricsConfig controls the Prometheus scrape listener. An empty bind
// address disables it.
type MetricsConfig struct {
	Bind string `toml:"bind"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Message string
}

// Default returns the canonical configuration used when no file is present.
func Default() Config {
	return Config{
		Call: CallConfig{
			URL:           "ws://127.0.0.1:8089/signaling",
			DialTimeoutMS: 5000,
		},
		Recognizer: RecognizerConfig{
			URL:           "ws://127.0.0.1:8090/recognize",
			SampleRate:    16000,
			ChunkBytes:    3200,
			DialTimeoutMS: 3000,
		},
		Subtitle: SubtitleConfig{
			Language:    "en-US",
			Languages:   []string{"en-US", "es-ES", "fr-FR", "de-DE", "ja-JP", "tr-TR"},
			Placeholder: "Listening…",
		},
		Audio: AudioConfig{
			Input:           "default",
			WatchIntervalMS: 5000,
		},
		Notify:  NotifyConfig{Enable: true},
		Metrics: MetricsConfig{},
	}
}

// Loaded captures the resolved config path, parsed values, and non-fatal
// warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// ResolvePath applies CLI/XDG/home fallback rules for the config location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "undertone", "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", "undertone", "config.toml"), nil
}

// Load resolves, reads, parses, and validates the runtime configuration.
// A missing file is not an error: defaults apply with a warning.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	cfg := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: cfg,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Call.URL) == "" {
		return nil, fmt.Errorf("call.url must not be empty")
	}
	if cfg.Call.DialTimeoutMS < 0 {
		return nil, fmt.Errorf("call.dial_timeout_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.Recognizer.URL) == "" {
		warnings = append(warnings, Warning{Message: "recognizer.url is empty; subtitles will be unavailable"})
	}
	if cfg.Recognizer.SampleRate <= 0 {
		return nil, fmt.Errorf("recognizer.sample_rate must be > 0")
	}
	if cfg.Recognizer.ChunkBytes <= 0 {
		return nil, fmt.Errorf("recognizer.chunk_bytes must be > 0")
	}
	if cfg.Recognizer.DialTimeoutMS < 0 {
		return nil, fmt.Errorf("recognizer.dial_timeout_ms must be >= 0")
	}

	if len(cfg.Subtitle.Languages) == 0 {
		return nil, fmt.Errorf("subtitle.languages must not be empty")
	}
	for _, code := range cfg.Subtitle.Languages {
		if _, err := language.Parse(code); err != nil {
			return nil, fmt.Errorf("subtitle.languages entry %q is not a valid BCP 47 tag", code)
		}
	}
	if !containsLanguage(cfg.Subtitle.Languages, cfg.Subtitle.Language) {
		return nil, fmt.Errorf("subtitle.language %q is not in subtitle.languages", cfg.Subtitle.Language)
	}
	if cfg.Subtitle.Restart.ErrorMS < 0 || cfg.Subtitle.Restart.EndMS < 0 || cfg.Subtitle.Restart.LanguageMS < 0 {
		return nil, fmt.Errorf("subtitle.restart delays must be >= 0")
	}

	if cfg.Audio.WatchIntervalMS <= 0 {
		return nil, fmt.Errorf("audio.watch_interval_ms must be > 0")
	}

	return warnings, nil
}

func containsLanguage(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
