package usecase

import (
	"context"
	"time"

	"smartnotes/internal/domain"
	"smartnotes/internal/ports"
)

// request is one transcription request plus the audio tap feeding it. A
// request lives from start/resume until the next pause, stop or failure.
type request struct {
	token     uint64
	stopAudio context.CancelFunc
	endStream context.CancelFunc
	audio     ports.AudioSession
	stream    ports.StreamingSession

	pumpDone   chan struct{}
	eventsDone chan struct{}
}

// session is owned by the controller loop and never touched elsewhere.
type session struct {
	id     string
	state  domain.SessionState
	reason domain.SessionStateReason

	transcript transcriptMerger
	level      float64
	failure    string

	file     ports.CaptureFile
	filePath string

	startedAt    time.Time
	recorded     time.Duration
	segmentStart time.Time
}

func (s *session) openSegment(now time.Time) {
	s.segmentStart = now
}

func (s *session) closeSegment(now time.Time) {
	if s.segmentStart.IsZero() {
		return
	}
	s.recorded += now.Sub(s.segmentStart)
	s.segmentStart = time.Time{}
}

func (s *session) elapsed(now time.Time) time.Duration {
	if s.segmentStart.IsZero() {
		return s.recorded
	}
	return s.recorded + now.Sub(s.segmentStart)
}

// published is the copy readers see; it is replaced after every loop step.
type published struct {
	session      session
	lastLocation *domain.RecordingLocation
	abandoned    []domain.RecordingLocation
}

// Loop inbox messages.
type (
	commandMsg struct {
		op   commandOp
		done chan struct{}
	}
	transcriptMsg struct {
		token uint64
		event domain.TranscriptEvent
	}
	levelMsg struct {
		token uint64
		level float64
	}
	requestEndedMsg struct {
		token uint64
		err   error
	}
	pumpFailedMsg struct {
		token uint64
		err   pumpError
	}
)

type commandOp int

const (
	opStart commandOp = iota
	opPause
	opResume
	opStop
	opReset
	opSettle
)

func (op commandOp) String() string {
	switch op {
	case opStart:
		return "start"
	case opPause:
		return "pause"
	case opResume:
		return "resume"
	case opStop:
		return "stop"
	case opReset:
		return "reset"
	case opSettle:
		return "settle"
	default:
		return "unknown"
	}
}
