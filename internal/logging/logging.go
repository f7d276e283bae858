package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const fileName = "smartnotes.log"

// Options mirrors the log section of the config file.
type Options struct {
	Level  string
	Dir    string
	Format string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the process logger. Without a directory it writes to fallback;
// with one it appends to smartnotes.log there. The returned closer releases the
// log file.
func New(opts Options, fallback io.Writer) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := fallback
	var closer io.Closer = nopCloser{}
	toFile := strings.TrimSpace(opts.Dir) != ""
	if toFile {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("creating log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(opts.Dir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closer = f
	}

	if !strings.EqualFold(opts.Format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    toFile,
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Int("pid", os.Getpid()).Logger()
	return logger, closer, nil
}
