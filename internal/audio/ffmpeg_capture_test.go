package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smartnotes/internal/domain"
	"smartnotes/internal/ports"
)

func TestFFMPEGCaptureStreamsStdout(t *testing.T) {
	t.Parallel()

	script := fakeRecorder(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'hello'\nsleep 2\n")
	capture := NewFFMPEGCapture(script, zerolog.Nop())

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "hello") {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}

func TestFFMPEGCaptureReportsEarlyExit(t *testing.T) {
	t.Parallel()

	script := fakeRecorder(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error: %v", err)
	}
	if errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("generic failure must not be reported as permission denied")
	}
}

func TestFFMPEGCaptureReportsPermissionDenied(t *testing.T) {
	t.Parallel()

	script := fakeRecorder(t, "denied.sh", "#!/usr/bin/env bash\necho 'default: Permission denied' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script, zerolog.Nop())

	_, err := capture.Start(context.Background(), ports.AudioConfig{})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestFFMPEGCapturePassesAudioArguments(t *testing.T) {
	t.Parallel()

	argsFile := filepath.Join(t.TempDir(), "args.txt")
	script := fakeRecorder(t, "args.sh", "#!/usr/bin/env bash\necho \"$@\" > "+argsFile+"\nsleep 2\n")
	capture := NewFFMPEGCapture(script, zerolog.Nop())

	session, err := capture.Start(context.Background(), ports.AudioConfig{
		SampleRate:  48000,
		Channels:    2,
		InputFormat: "alsa",
		InputDevice: "hw:1",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Stop()

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	args := string(data)
	for _, want := range []string{"-f alsa", "-i hw:1", "-ac 2", "-ar 48000", "-f s16le"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %q", want, args)
		}
	}
}

func TestIgnoreExitStatus(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := ignoreExitStatus(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
	other := errors.New("wait failed")
	if got := ignoreExitStatus(other); !errors.Is(got, other) {
		t.Fatalf("expected other errors to pass through, got %v", got)
	}
}

func TestStderrTailKeepsLastBytes(t *testing.T) {
	t.Parallel()

	var tail stderrTail
	tail.Write([]byte(strings.Repeat("x", stderrLimit)))
	tail.Write([]byte("  device busy\n"))

	got := tail.String()
	if len(got) > stderrLimit || !strings.HasSuffix(got, "device busy") {
		t.Fatalf("unexpected tail: len=%d suffix=%q", len(got), got[len(got)-12:])
	}
}

func TestFFMPEGArgsUseDefaults(t *testing.T) {
	t.Parallel()

	args := strings.Join(ffmpegArgs(withDefaults(ports.AudioConfig{})), " ")
	if !strings.Contains(args, "-f pulse -i default -ac 1 -ar 16000 -f s16le -") {
		t.Fatalf("unexpected args: %s", args)
	}
}

func fakeRecorder(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("write fake recorder: %v", err)
	}
	return path
}
