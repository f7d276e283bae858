package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smartnotes/internal/domain"
	"smartnotes/internal/ports"
)

const (
	// startupProbe is how long ffmpeg must survive before capture counts as started.
	startupProbe = 250 * time.Millisecond
	// stopGrace is how long ffmpeg gets to exit after SIGINT before it is killed.
	stopGrace = 1200 * time.Millisecond
)

// FFMPEGCapture records the microphone by running ffmpeg and reading s16le
// PCM from its stdout. Each session is one ffmpeg process.
type FFMPEGCapture struct {
	command string
	log     zerolog.Logger
}

func NewFFMPEGCapture(command string, logger zerolog.Logger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{
		command: command,
		log:     logger.With().Str("component", "ffmpeg").Logger(),
	}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withDefaults(cfg)

	cmd := exec.CommandContext(ctx, c.command, ffmpegArgs(cfg)...)
	diag := &stderrTail{}
	cmd.Stderr = diag

	pcm, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			err = errors.Join(domain.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := &ffmpegSession{
		pcm:    pcm,
		diag:   diag,
		proc:   cmd.Process,
		exited: make(chan struct{}),
		log:    c.log,
	}
	go func() {
		s.exitErr = cmd.Wait()
		close(s.exited)
	}()

	select {
	case <-s.exited:
		return nil, s.startupFailure()
	case <-time.After(startupProbe):
	}

	c.log.Debug().
		Str("format", cfg.InputFormat).
		Str("device", cfg.InputDevice).
		Int("rate", cfg.SampleRate).
		Int("pid", cmd.Process.Pid).
		Msg("microphone capture started")
	return s, nil
}

func ffmpegArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type ffmpegSession struct {
	pcm  io.ReadCloser
	diag *stderrTail
	proc *os.Process
	log  zerolog.Logger

	exited  chan struct{}
	exitErr error // valid once exited is closed

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.pcm.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop asks ffmpeg to flush and exit, killing it if it does not. Safe to call
// more than once.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.proc.Signal(os.Interrupt)

		select {
		case <-s.exited:
		case <-time.After(stopGrace):
			s.log.Warn().Int("pid", s.proc.Pid).Msg("ffmpeg ignored interrupt; killing")
			_ = s.proc.Kill()
			<-s.exited
		}

		err := ignoreExitStatus(s.exitErr)
		if closeErr := s.pcm.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
			err = closeErr
		}
		if err != nil {
			if detail := s.diag.String(); detail != "" {
				err = fmt.Errorf("%w: %s", err, detail)
			}
		}
		s.stopErr = err
	})
	return s.stopErr
}

// startupFailure explains why ffmpeg exited during the startup probe.
func (s *ffmpegSession) startupFailure() error {
	detail := s.diag.String()
	switch {
	case permissionDenied(detail):
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, detail)
	case s.exitErr != nil:
		return fmt.Errorf("ffmpeg exited before capture started: %w: %s", s.exitErr, detail)
	default:
		return errors.New("ffmpeg exited before capture started")
	}
}

// stderrTail keeps ffmpeg's diagnostics. exec copies stderr from its own
// goroutine, so access is locked.
type stderrTail struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

const stderrLimit = 4096

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - stderrLimit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

// String returns the trimmed diagnostics.
func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}

func withDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

func permissionDenied(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "permission denied") || strings.Contains(lower, "not authorized")
}

// ignoreExitStatus drops the non-zero exit ffmpeg reports after SIGINT.
func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
