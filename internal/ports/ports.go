package ports

import (
	"context"
	"io"

	"smartnotes/internal/domain"
)

// AudioConfig selects the input device and PCM format for a capture.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session. Stopping it removes the tap; a new
// session must be started to capture again.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture opens the microphone.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig is the audio format announced to a transcription backend.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is one transcription request.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider begins transcription requests. Each Start/Resume
// gets its own request.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// CaptureFile receives raw PCM for the duration of a recording.
type CaptureFile interface {
	Write(pcm []byte) error
	Finalize() (domain.RecordingLocation, error)
}

// CaptureSink creates capture files.
type CaptureSink interface {
	Create(path string) (CaptureFile, error)
	Extension() string
}

// Summarizer is the network collaborator invoked once per completed session.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
	ExtractActionItems(ctx context.Context, summary string) ([]string, error)
	Diarize(ctx context.Context, text string) (string, error)
}

// TranscriptCorrector applies deterministic fixes to a finished transcript.
type TranscriptCorrector interface {
	Apply(text string) (string, error)
}

// RecordingStore persists completed recordings.
type RecordingStore interface {
	Save(ctx context.Context, rec domain.Recording) error
	Get(ctx context.Context, id string) (domain.Recording, error)
	List(ctx context.Context, limit int) ([]domain.Recording, error)
}

// Clipboard receives the finished note summary.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink receives session updates for a presentation layer.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	TranscriptChanged(live string, committed string)
	AudioLevelChanged(level float64)
	RecordingFinalized(loc domain.RecordingLocation)
	SessionError(code domain.ErrorCode, detail string)
}
