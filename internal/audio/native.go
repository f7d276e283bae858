package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"smartnotes/internal/domain"
	"smartnotes/internal/ports"
)

// callbackQueue bounds how many device buffers may wait for the reader.
const callbackQueue = 64

// nativeDevice is an opened platform input device.
type nativeDevice interface {
	stop()
}

// NativeCapture records through the platform audio server without spawning
// a helper process.
type NativeCapture struct {
	log zerolog.Logger
	// open starts the device. deliver is called from the audio server's
	// thread and must not block.
	open func(cfg ports.AudioConfig, deliver func([]byte)) (nativeDevice, error)
}

func NewNativeCapture(logger zerolog.Logger) *NativeCapture {
	return &NativeCapture{
		log:  logger.With().Str("component", "native-audio").Logger(),
		open: openNativeDevice,
	}
}

func (c *NativeCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withDefaults(cfg)

	s := &callbackSession{
		chunks:  make(chan []byte, callbackQueue),
		stopped: make(chan struct{}),
	}
	dev, err := c.open(cfg, s.push)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to open input device: %w", err)
	}
	s.device = dev
	s.log = c.log

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-s.stopped:
		}
	}()
	return s, nil
}

// callbackSession turns device callbacks into an io.Reader. When the reader
// falls behind, whole buffers are dropped rather than stalling the device.
type callbackSession struct {
	device  nativeDevice
	log     zerolog.Logger
	chunks  chan []byte
	pending []byte

	stopped  chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
}

func (s *callbackSession) push(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case <-s.stopped:
	case s.chunks <- buf:
	default:
		s.dropped.Add(1)
	}
}

func (s *callbackSession) Read(p []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	select {
	case chunk := <-s.chunks:
		n := copy(p, chunk)
		s.pending = chunk[n:]
		return n, nil
	case <-s.stopped:
		return 0, io.EOF
	}
}

func (s *callbackSession) Close() error {
	return s.Stop()
}

func (s *callbackSession) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopped)
		if s.device != nil {
			s.device.stop()
		}
		if n := s.dropped.Load(); n > 0 {
			s.log.Warn().Uint64("buffers", n).Msg("dropped audio buffers while reader was busy")
		}
	})
	return nil
}

// NewCapture picks the capture backend named in the config.
func NewCapture(backend, recorderCommand string, logger zerolog.Logger) ports.AudioCapture {
	if backend == "native" {
		return NewNativeCapture(logger)
	}
	return NewFFMPEGCapture(recorderCommand, logger)
}
