package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"smartnotes/internal/domain"
)

type (
	stateMsg struct {
		state  domain.SessionState
		reason domain.SessionStateReason
	}
	transcriptMsg struct {
		live      string
		committed string
	}
	levelMsg      float64
	finalizedMsg  domain.RecordingLocation
	sessionErrMsg struct {
		code   domain.ErrorCode
		detail string
	}
)

// Sink forwards session events into a running program. Events that arrive
// before Attach are dropped; the model reads a snapshot on start.
type Sink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func NewSink() *Sink {
	return &Sink{}
}

// Attach routes events to p until Detach.
func (s *Sink) Attach(p *tea.Program) {
	s.mu.Lock()
	s.send = p.Send
	s.mu.Unlock()
}

// Detach stops forwarding. Call it once the program has exited so late
// events do not block on a dead program.
func (s *Sink) Detach() {
	s.mu.Lock()
	s.send = nil
	s.mu.Unlock()
}

func (s *Sink) forward(msg tea.Msg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (s *Sink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.forward(stateMsg{state: state, reason: reason})
}

func (s *Sink) TranscriptChanged(live string, committed string) {
	s.forward(transcriptMsg{live: live, committed: committed})
}

func (s *Sink) AudioLevelChanged(level float64) {
	s.forward(levelMsg(level))
}

func (s *Sink) RecordingFinalized(loc domain.RecordingLocation) {
	s.forward(finalizedMsg(loc))
}

func (s *Sink) SessionError(code domain.ErrorCode, detail string) {
	s.forward(sessionErrMsg{code: code, detail: detail})
}
