package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("SMARTNOTES_CONFIG", "")
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	return home
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.File != "" {
		t.Fatalf("expected no config file, got %q", cfg.File)
	}
	if cfg.Audio.Backend != "ffmpeg" || cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.Gemini.Model != "gemini-1.5-flash" || cfg.Gemini.DiarizeEnabled() {
		t.Fatalf("unexpected gemini defaults: %+v", cfg.Gemini)
	}
	wantDB := filepath.Join(home, ".local", "share", "smartnotes", "smartnotes.db")
	if cfg.Store.Path != wantDB {
		t.Fatalf("unexpected store path: %q", cfg.Store.Path)
	}
	if !cfg.Deepgram.SmartFormatEnabled() || cfg.Deepgram.EndpointingMS != 300 {
		t.Fatalf("unexpected deepgram defaults: %+v", cfg.Deepgram)
	}
	if cfg.Session.StreamingGrace != time.Second {
		t.Fatalf("unexpected grace: %s", cfg.Session.StreamingGrace)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".config", "smartnotes", "config.toml")
	writeFile(t, path, `
[deepgram]
api_key = "file-key"
model = "nova-3"
smart_format = false

[audio]
backend = "native"
sample_rate = 48000
channels = 2

[session]
recordings_dir = "~/notes/audio"
streaming_grace_ms = 250

[gemini]
api_key = "gem-file"
diarize = true

[store]
path = "/tmp/notes.db"

[corrections]
iteration_limit = 7

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.File != path {
		t.Fatalf("expected file %q, got %q", path, cfg.File)
	}
	if cfg.Deepgram.APIKey != "file-key" || cfg.Deepgram.Model != "nova-3" || cfg.Deepgram.SmartFormatEnabled() {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Audio.Backend != "native" || cfg.Audio.SampleRate != 48000 || cfg.Audio.Channels != 2 {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Session.RecordingsDir != filepath.Join(home, "notes", "audio") {
		t.Fatalf("unexpected recordings dir: %q", cfg.Session.RecordingsDir)
	}
	if cfg.Session.StreamingGrace != 250*time.Millisecond {
		t.Fatalf("unexpected grace: %s", cfg.Session.StreamingGrace)
	}
	if cfg.Gemini.APIKey != "gem-file" || !cfg.Gemini.DiarizeEnabled() {
		t.Fatalf("unexpected gemini config: %+v", cfg.Gemini)
	}
	if cfg.Store.Path != "/tmp/notes.db" || cfg.Corrections.IterationLimit != 7 {
		t.Fatalf("unexpected store/corrections: %+v %+v", cfg.Store, cfg.Corrections)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.toml")
	writeFile(t, path, `
[deepgram]
api_key = "file-key"

[audio]
sample_rate = 48000
`)

	t.Setenv("SMARTNOTES_CONFIG", path)
	t.Setenv("DEEPGRAM_API_KEY", "env-key")
	t.Setenv("DEEPGRAM_API_BASE", "https://example.com/v1")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("SMARTNOTES_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("SMARTNOTES_AUDIO_INPUT_FORMAT", "alsa")
	t.Setenv("SMARTNOTES_AUDIO_INPUT_DEVICE", "mic0")
	t.Setenv("SMARTNOTES_SAMPLE_RATE", "22050")
	t.Setenv("SMARTNOTES_AUDIO_CHUNK_SIZE", "512")
	t.Setenv("SMARTNOTES_STREAMING_GRACE_MS", "25")
	t.Setenv("GEMINI_API_KEY", "gem-env")
	t.Setenv("SMARTNOTES_CORRECTIONS_FILE", "/tmp/c.rules")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Deepgram.APIKey != "env-key" || cfg.Deepgram.APIBaseURL != "https://example.com/v1" || cfg.Deepgram.SmartFormatEnabled() {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Audio.RecorderCommand != "my-ffmpeg" || cfg.Audio.InputFormat != "alsa" || cfg.Audio.InputDevice != "mic0" {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Audio.SampleRate != 22050 || cfg.Audio.ChunkSize != 512 {
		t.Fatalf("unexpected sample rate/chunk: %+v", cfg.Audio)
	}
	if cfg.Session.StreamingGrace != 25*time.Millisecond {
		t.Fatalf("unexpected grace: %s", cfg.Session.StreamingGrace)
	}
	if cfg.Gemini.APIKey != "gem-env" || cfg.Corrections.Path != "/tmp/c.rules" {
		t.Fatalf("unexpected overrides: %+v %+v", cfg.Gemini, cfg.Corrections)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	home := isolate(t)
	t.Setenv("SMARTNOTES_CONFIG", filepath.Join(home, "nope.toml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "smartnotes", "config.toml"), "[audio\nbroken")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	isolate(t)
	t.Setenv("SMARTNOTES_SAMPLE_RATE", "bad")
	t.Setenv("SMARTNOTES_CHANNELS", "-1")
	t.Setenv("SMARTNOTES_CORRECTION_ITERATION_LIMIT", "0")
	t.Setenv("SMARTNOTES_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("SMARTNOTES_STREAMING_GRACE_MS", "bad")
	t.Setenv("SMARTNOTES_LEVEL_GAIN", "-2")
	t.Setenv("SMARTNOTES_AUDIO_BACKEND", "carrier-pigeon")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("expected audio defaults, got %+v", cfg.Audio)
	}
	if cfg.Corrections.IterationLimit != 30 {
		t.Fatalf("expected default iteration limit, got %d", cfg.Corrections.IterationLimit)
	}
	if cfg.Audio.ChunkSize != 4096 || cfg.Audio.LevelGain != 5 || cfg.Audio.Backend != "ffmpeg" {
		t.Fatalf("expected fallbacks, got %+v", cfg.Audio)
	}
	if cfg.Session.StreamingGrace != time.Second {
		t.Fatalf("expected default grace, got %s", cfg.Session.StreamingGrace)
	}
	if !cfg.Deepgram.SmartFormatEnabled() {
		t.Fatalf("expected default smart format true")
	}
}
