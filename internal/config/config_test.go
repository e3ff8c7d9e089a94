package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.Len(t, loaded.Warnings, 1)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[call]
url = "wss://calls.example.net/signaling"

[recognizer]
url = "wss://stt.example.net/recognize"
sample_rate = 8000

[subtitle]
language = "tr-TR"
languages = ["tr-TR", "en-US"]
placeholder = "Dinleniyor…"

[subtitle.restart]
error_ms = 2000

[audio]
input = "elgato"

[metrics]
bind = "127.0.0.1:9464"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)

	cfg := loaded.Config
	require.Equal(t, "wss://calls.example.net/signaling", cfg.Call.URL)
	require.Equal(t, "wss://stt.example.net/recognize", cfg.Recognizer.URL)
	require.Equal(t, 8000, cfg.Recognizer.SampleRate)
	require.Equal(t, "tr-TR", cfg.Subtitle.Language)
	require.Equal(t, []string{"tr-TR", "en-US"}, cfg.Subtitle.Languages)
	require.Equal(t, "Dinleniyor…", cfg.Subtitle.Placeholder)
	require.Equal(t, 2000, cfg.Subtitle.Restart.ErrorMS)
	require.Equal(t, 0, cfg.Subtitle.Restart.EndMS)
	require.Equal(t, "elgato", cfg.Audio.Input)
	require.Equal(t, "127.0.0.1:9464", cfg.Metrics.Bind)

	// Untouched sections keep their defaults.
	require.Equal(t, Default().Audio.WatchIntervalMS, cfg.Audio.WatchIntervalMS)
	require.Equal(t, Default().Notify, cfg.Notify)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[call\nurl="), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
}

func TestValidateRejectsBadLanguageTag(t *testing.T) {
	cfg := Default()
	cfg.Subtitle.Languages = []string{"en-US", "not a tag"}

	_, err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "BCP 47")
}

func TestValidateRejectsDefaultOutsideList(t *testing.T) {
	cfg := Default()
	cfg.Subtitle.Language = "pt-BR"

	_, err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not in subtitle.languages")
}

func TestValidateWarnsOnEmptyRecognizerURL(t *testing.T) {
	cfg := Default()
	cfg.Recognizer.URL = ""

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "unavailable")
}

func TestValidateRejectsNegativeDelays(t *testing.T) {
	cfg := Default()
	cfg.Subtitle.Restart.EndMS = -1

	_, err := Validate(cfg)
	require.Error(t, err)
}

func TestResolvePathPrefersExplicitThenXDG(t *testing.T) {
	explicit, err := ResolvePath("/tmp/custom.toml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.toml", explicit)

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	resolved, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/xdg", "undertone", "config.toml"), resolved)
}
