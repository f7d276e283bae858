package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smartnotes/internal/domain"
	"smartnotes/internal/ports"
)

type fakeDevice struct {
	mu      sync.Mutex
	deliver func([]byte)
	stops   int
}

func (d *fakeDevice) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
}

func (d *fakeDevice) stopCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

func newFakeNative(dev *fakeDevice, err error) *NativeCapture {
	c := NewNativeCapture(zerolog.Nop())
	c.open = func(_ ports.AudioConfig, deliver func([]byte)) (nativeDevice, error) {
		if err != nil {
			return nil, err
		}
		dev.deliver = deliver
		return dev, nil
	}
	return c
}

func TestNativeCaptureReadsCallbackBuffers(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	session, err := newFakeNative(dev, nil).Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	dev.deliver([]byte{1, 2, 3, 4, 5, 6})

	buf := make([]byte, 4)
	n, err := session.Read(buf)
	if err != nil || n != 4 {
		t.Fatalf("first read = %d, %v", n, err)
	}
	n, err = session.Read(buf)
	if err != nil || n != 2 || buf[0] != 5 || buf[1] != 6 {
		t.Fatalf("second read = %d %v %v", n, buf[:n], err)
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if _, err := session.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after stop, got %v", err)
	}
	_ = session.Close()
	if dev.stopCount() != 1 {
		t.Fatalf("expected device stopped once, got %d", dev.stopCount())
	}
}

func TestNativeCaptureDropsWhenReaderIsBehind(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	session, err := newFakeNative(dev, nil).Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Stop()

	for i := 0; i < callbackQueue+10; i++ {
		dev.deliver([]byte{byte(i), 0})
	}
	if got := session.(*callbackSession).dropped.Load(); got != 10 {
		t.Fatalf("expected 10 dropped buffers, got %d", got)
	}
}

func TestNativeCaptureStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	ctx, cancel := context.WithCancel(context.Background())
	session, err := newFakeNative(dev, nil).Start(ctx, ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := session.Read(make([]byte, 8))
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected EOF, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("read did not unblock after cancel")
	}
}

func TestNativeCapturePermissionError(t *testing.T) {
	t.Parallel()

	_, err := newFakeNative(nil, fmt.Errorf("open: %w", os.ErrPermission)).Start(context.Background(), ports.AudioConfig{})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestNewCaptureSelectsBackend(t *testing.T) {
	t.Parallel()

	if _, ok := NewCapture("native", "", zerolog.Nop()).(*NativeCapture); !ok {
		t.Fatalf("expected native capture")
	}
	if _, ok := NewCapture("ffmpeg", "ffmpeg", zerolog.Nop()).(*FFMPEGCapture); !ok {
		t.Fatalf("expected ffmpeg capture")
	}
}
