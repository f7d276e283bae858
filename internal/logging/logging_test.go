package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "session").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if entry["message"] != "shown" || entry["component"] != "session" || entry["level"] != "warn" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewConsoleWritesToFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	logger, closer, err := New(Options{Dir: dir}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info().Msg("recording started")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "recording started") {
		t.Fatalf("log file missing message: %q", data)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Fatalf("file output should not contain colour codes")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, _, err := New(Options{Level: "chatty"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
