package domain

import (
	"fmt"
	"time"
)

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRecording SessionState = "recording"
	SessionStatePaused    SessionState = "paused"
	SessionStateFailed    SessionState = "failed"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady                 SessionStateReason = "ready"
	SessionReasonRecordingStarted      SessionStateReason = "recording_started"
	SessionReasonRecordingPaused       SessionStateReason = "recording_paused"
	SessionReasonRecordingResumed      SessionStateReason = "recording_resumed"
	SessionReasonRecordingStopped      SessionStateReason = "recording_stopped"
	SessionReasonSessionReset          SessionStateReason = "session_reset"
	SessionReasonPermissionDenied      SessionStateReason = "permission_denied"
	SessionReasonCaptureFailed         SessionStateReason = "capture_failed"
	SessionReasonTranscriptionFailed   SessionStateReason = "transcription_failed"
	SessionReasonTranscriptionEnded    SessionStateReason = "transcription_ended"
	SessionReasonRecordingFileFailed   SessionStateReason = "recording_file_failed"
	SessionReasonSummarizing           SessionStateReason = "summarizing"
	SessionReasonNoteSaved             SessionStateReason = "note_saved"
	SessionReasonNoteSavedClipboardErr SessionStateReason = "note_saved_clipboard_failed"
	SessionReasonSummarizationFailed   SessionStateReason = "summarization_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodePermission    ErrorCode = "permission"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeFileIO        ErrorCode = "file_io"
	ErrorCodeSummarization ErrorCode = "summarization"
	ErrorCodeClipboard     ErrorCode = "clipboard"
	ErrorCodeStore         ErrorCode = "store"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent is one hypothesis from a streaming provider. Text covers the
// utterance currently being recognised; a final event freezes it.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
	Confidence    float64        `json:"confidence,omitempty"`
}

// RecordingLocation describes a finalized capture file.
type RecordingLocation struct {
	Path     string        `json:"path"`
	Format   string        `json:"format"`
	Duration time.Duration `json:"duration"`
	Samples  uint64        `json:"samples"`
	Bytes    int64         `json:"bytes"`
}

// Snapshot is the published view of the recording session.
type Snapshot struct {
	State         SessionState       `json:"state"`
	Reason        SessionStateReason `json:"reason"`
	LiveText      string             `json:"liveText"`
	CommittedText string             `json:"committedText"`
	AudioLevel    float64            `json:"audioLevel"`
	AppendMode    bool               `json:"appendMode"`
	RecordingID   string             `json:"recordingId,omitempty"`
	StartedAt     time.Time          `json:"startedAt,omitempty"`
	Elapsed       time.Duration      `json:"elapsed"`
	Failure       string             `json:"failure,omitempty"`
}

// Active reports whether audio is being captured or is held open by a pause.
func (s Snapshot) Active() bool {
	return s.State == SessionStateRecording || s.State == SessionStatePaused
}

// Recording is a completed session stored in the recordings library.
type Recording struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	AudioPath   string        `json:"audioPath"`
	Transcript  string        `json:"transcript"`
	Summary     string        `json:"summary"`
	ActionItems []string      `json:"actionItems"`
	Diarized    string        `json:"diarized,omitempty"`
	Duration    time.Duration `json:"duration"`
	Starred     bool          `json:"starred"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Status summarizes the current runtime status for front ends.
type Status struct {
	State   SessionState `json:"state"`
	Active  bool         `json:"active"`
	Elapsed string       `json:"elapsed"`
	Message string       `json:"message,omitempty"`
}

// FormatElapsed renders a duration as MM:SS, rolling minutes past 59.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
