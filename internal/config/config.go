package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config stores runtime configuration. Values resolve as defaults, then the
// optional config.toml, then environment variables.
type Config struct {
	Deepgram    DeepgramConfig
	Audio       AudioConfig
	Session     SessionConfig
	Gemini      GeminiConfig
	Store       StoreConfig
	Corrections CorrectionsConfig
	Log         LogConfig

	// File is the config file that was read, if any.
	File string
}

type DeepgramConfig struct {
	APIKey      string `toml:"api_key"`
	APIBaseURL  string `toml:"api_base"`
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	SmartFormat *bool  `toml:"smart_format"`
	// EndpointingMS is the silence in milliseconds that ends an utterance.
	EndpointingMS int `toml:"endpointing_ms"`
}

type AudioConfig struct {
	// Backend is "ffmpeg" or "native".
	Backend         string  `toml:"backend"`
	RecorderCommand string  `toml:"recorder_command"`
	InputFormat     string  `toml:"input_format"`
	InputDevice     string  `toml:"input_device"`
	SampleRate      int     `toml:"sample_rate"`
	Channels        int     `toml:"channels"`
	ChunkSize       int     `toml:"chunk_size"`
	LevelGain       float64 `toml:"level_gain"`
}

type SessionConfig struct {
	RecordingsDir  string        `toml:"recordings_dir"`
	StreamingGrace time.Duration `toml:"-"`
	// StreamingGraceMS is the file form of StreamingGrace.
	StreamingGraceMS int `toml:"streaming_grace_ms"`
}

type GeminiConfig struct {
	APIKey     string `toml:"api_key"`
	APIBaseURL string `toml:"api_base"`
	Model      string `toml:"model"`
	Diarize    *bool  `toml:"diarize"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type CorrectionsConfig struct {
	Path           string `toml:"path"`
	IterationLimit int    `toml:"iteration_limit"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
	Format string `toml:"format"`
}

type fileConfig struct {
	Deepgram    DeepgramConfig    `toml:"deepgram"`
	Audio       AudioConfig       `toml:"audio"`
	Session     SessionConfig     `toml:"session"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Store       StoreConfig       `toml:"store"`
	Corrections CorrectionsConfig `toml:"corrections"`
	Log         LogConfig         `toml:"log"`
}

// SmartFormatEnabled reports the effective smart_format flag.
func (d DeepgramConfig) SmartFormatEnabled() bool {
	return d.SmartFormat == nil || *d.SmartFormat
}

// DiarizeEnabled reports whether speaker labelling should run after summarizing.
func (g GeminiConfig) DiarizeEnabled() bool {
	return g.Diarize != nil && *g.Diarize
}

// Load resolves configuration from the config file, environment variables and
// sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	dataDir := filepath.Join(home, ".local", "share", "smartnotes")
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		dataDir = filepath.Join(xdg, "smartnotes")
	}

	cfg := defaults(home, dataDir)

	path, explicit := configFilePath(home)
	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else {
			mergeFile(&cfg, fc)
			cfg.File = path
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func defaults(home, dataDir string) Config {
	configDir := filepath.Join(home, ".config", "smartnotes")
	return Config{
		Deepgram: DeepgramConfig{
			APIBaseURL:    "https://api.deepgram.com/v1",
			Model:         "nova-2",
			EndpointingMS: 300,
		},
		Audio: AudioConfig{
			Backend:         "ffmpeg",
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
			ChunkSize:       4096,
			LevelGain:       5,
		},
		Session: SessionConfig{
			RecordingsDir:  filepath.Join(dataDir, "recordings"),
			StreamingGrace: time.Second,
		},
		Gemini: GeminiConfig{
			APIBaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Model:      "gemini-1.5-flash",
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "smartnotes.db"),
		},
		Corrections: CorrectionsConfig{
			Path:           filepath.Join(configDir, "corrections.rules"),
			IterationLimit: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func mergeFile(cfg *Config, fc fileConfig) {
	d := fc.Deepgram
	cfg.Deepgram.APIKey = firstNonEmpty(d.APIKey, cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = firstNonEmpty(d.APIBaseURL, cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = firstNonEmpty(d.Model, cfg.Deepgram.Model)
	cfg.Deepgram.Language = firstNonEmpty(d.Language, cfg.Deepgram.Language)
	if d.SmartFormat != nil {
		cfg.Deepgram.SmartFormat = d.SmartFormat
	}
	if d.EndpointingMS > 0 {
		cfg.Deepgram.EndpointingMS = d.EndpointingMS
	}

	a := fc.Audio
	cfg.Audio.Backend = firstNonEmpty(a.Backend, cfg.Audio.Backend)
	cfg.Audio.RecorderCommand = firstNonEmpty(a.RecorderCommand, cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = firstNonEmpty(a.InputFormat, cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(a.InputDevice, cfg.Audio.InputDevice)
	if a.SampleRate > 0 {
		cfg.Audio.SampleRate = a.SampleRate
	}
	if a.Channels > 0 {
		cfg.Audio.Channels = a.Channels
	}
	if a.ChunkSize > 0 {
		cfg.Audio.ChunkSize = a.ChunkSize
	}
	if a.LevelGain > 0 {
		cfg.Audio.LevelGain = a.LevelGain
	}

	cfg.Session.RecordingsDir = expandTilde(firstNonEmpty(fc.Session.RecordingsDir, cfg.Session.RecordingsDir))
	if fc.Session.StreamingGraceMS > 0 {
		cfg.Session.StreamingGrace = time.Duration(fc.Session.StreamingGraceMS) * time.Millisecond
	}

	g := fc.Gemini
	cfg.Gemini.APIKey = firstNonEmpty(g.APIKey, cfg.Gemini.APIKey)
	cfg.Gemini.APIBaseURL = firstNonEmpty(g.APIBaseURL, cfg.Gemini.APIBaseURL)
	cfg.Gemini.Model = firstNonEmpty(g.Model, cfg.Gemini.Model)
	if g.Diarize != nil {
		cfg.Gemini.Diarize = g.Diarize
	}

	cfg.Store.Path = expandTilde(firstNonEmpty(fc.Store.Path, cfg.Store.Path))
	cfg.Corrections.Path = expandTilde(firstNonEmpty(fc.Corrections.Path, cfg.Corrections.Path))
	if fc.Corrections.IterationLimit > 0 {
		cfg.Corrections.IterationLimit = fc.Corrections.IterationLimit
	}

	cfg.Log.Level = firstNonEmpty(fc.Log.Level, cfg.Log.Level)
	cfg.Log.Dir = expandTilde(firstNonEmpty(fc.Log.Dir, cfg.Log.Dir))
	cfg.Log.Format = firstNonEmpty(fc.Log.Format, cfg.Log.Format)
}

func applyEnvOverrides(cfg *Config) {
	cfg.Deepgram.APIKey = firstNonEmpty(os.Getenv("DEEPGRAM_API_KEY"), cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", cfg.Deepgram.Language)
	smart := envOrDefaultBool("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormatEnabled())
	cfg.Deepgram.SmartFormat = &smart
	cfg.Deepgram.EndpointingMS = envOrDefaultInt("DEEPGRAM_ENDPOINTING_MS", cfg.Deepgram.EndpointingMS)

	cfg.Audio.Backend = envOrDefault("SMARTNOTES_AUDIO_BACKEND", cfg.Audio.Backend)
	cfg.Audio.RecorderCommand = envOrDefault("SMARTNOTES_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("SMARTNOTES_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(
		os.Getenv("SMARTNOTES_AUDIO_INPUT_DEVICE"),
		os.Getenv("DEEPGRAM_PULSE_SOURCE"),
		cfg.Audio.InputDevice,
	)
	cfg.Audio.SampleRate = envOrDefaultInt("SMARTNOTES_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("SMARTNOTES_CHANNELS", cfg.Audio.Channels)
	cfg.Audio.ChunkSize = envOrDefaultInt("SMARTNOTES_AUDIO_CHUNK_SIZE", cfg.Audio.ChunkSize)
	cfg.Audio.LevelGain = envOrDefaultFloat("SMARTNOTES_LEVEL_GAIN", cfg.Audio.LevelGain)

	cfg.Session.RecordingsDir = expandTilde(envOrDefault("SMARTNOTES_RECORDINGS_DIR", cfg.Session.RecordingsDir))
	grace := firstNonNegativeInt("SMARTNOTES_STREAMING_GRACE_MS", "DEEPGRAM_STREAMING_GRACE_MS", int(cfg.Session.StreamingGrace/time.Millisecond))
	cfg.Session.StreamingGrace = time.Duration(grace) * time.Millisecond

	cfg.Gemini.APIKey = firstNonEmpty(os.Getenv("SMARTNOTES_GEMINI_API_KEY"), os.Getenv("GEMINI_API_KEY"), cfg.Gemini.APIKey)
	cfg.Gemini.APIBaseURL = envOrDefault("SMARTNOTES_GEMINI_API_BASE", cfg.Gemini.APIBaseURL)
	cfg.Gemini.Model = envOrDefault("SMARTNOTES_GEMINI_MODEL", cfg.Gemini.Model)
	diarize := envOrDefaultBool("SMARTNOTES_DIARIZE", cfg.Gemini.DiarizeEnabled())
	cfg.Gemini.Diarize = &diarize

	cfg.Store.Path = expandTilde(envOrDefault("SMARTNOTES_DB", cfg.Store.Path))
	cfg.Corrections.Path = expandTilde(envOrDefault("SMARTNOTES_CORRECTIONS_FILE", cfg.Corrections.Path))
	cfg.Corrections.IterationLimit = envOrDefaultInt("SMARTNOTES_CORRECTION_ITERATION_LIMIT", cfg.Corrections.IterationLimit)

	cfg.Log.Level = envOrDefault("SMARTNOTES_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Dir = expandTilde(envOrDefault("SMARTNOTES_LOG_DIR", cfg.Log.Dir))
	cfg.Log.Format = envOrDefault("SMARTNOTES_LOG_FORMAT", cfg.Log.Format)
}

func normalize(cfg *Config) {
	cfg.Audio.Backend = strings.ToLower(cfg.Audio.Backend)
	if cfg.Audio.Backend != "native" {
		cfg.Audio.Backend = "ffmpeg"
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Audio.LevelGain <= 0 {
		cfg.Audio.LevelGain = 5
	}
	if cfg.Deepgram.EndpointingMS < 0 {
		cfg.Deepgram.EndpointingMS = 0
	}
	if cfg.Corrections.IterationLimit <= 0 {
		cfg.Corrections.IterationLimit = 30
	}
	cfg.Session.StreamingGraceMS = int(cfg.Session.StreamingGrace / time.Millisecond)
}

// configFilePath returns the config file to read and whether it was named
// explicitly through SMARTNOTES_CONFIG.
func configFilePath(home string) (string, bool) {
	if explicit := strings.TrimSpace(os.Getenv("SMARTNOTES_CONFIG")); explicit != "" {
		return expandTilde(explicit), true
	}
	configDir := filepath.Join(home, ".config", "smartnotes")
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		configDir = filepath.Join(xdg, "smartnotes")
	}
	return filepath.Join(configDir, "config.toml"), false
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func firstNonNegativeInt(primary string, secondary string, fallback int) int {
	for _, key := range []string{primary, secondary} {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}
