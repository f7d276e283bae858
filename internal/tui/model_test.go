package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"smartnotes/internal/domain"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	snap     domain.Snapshot
	startErr error
}

func (f *fakeController) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeController) Start() error {
	f.record("start")
	return f.startErr
}
func (f *fakeController) Pause() error  { f.record("pause"); return nil }
func (f *fakeController) Resume() error { f.record("resume"); return nil }
func (f *fakeController) Stop() error   { f.record("stop"); return nil }

func (f *fakeController) Settle(_ context.Context) error {
	f.record("settle")
	return nil
}

func (f *fakeController) Snapshot() domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return model, cmd
}

func TestSpaceTogglesPause(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := New(ctrl)
	m, _ = update(t, m, stateMsg{state: domain.SessionStateRecording})
	m, _ = update(t, m, key(" "))
	m, _ = update(t, m, stateMsg{state: domain.SessionStatePaused})
	update(t, m, key(" "))

	got := ctrl.called()
	if len(got) != 2 || got[0] != "pause" || got[1] != "resume" {
		t.Fatalf("unexpected calls: %v", got)
	}
}

func TestStopKeySavesAndQuits(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := New(ctrl)
	m, _ = update(t, m, stateMsg{state: domain.SessionStateRecording})
	m, cmd := update(t, m, key("s"))
	if cmd == nil {
		t.Fatalf("expected stop command")
	}
	if m.Outcome() != OutcomeSave {
		t.Fatalf("expected save outcome, got %v", m.Outcome())
	}

	msg := cmd()
	if _, ok := msg.(stoppedMsg); !ok {
		t.Fatalf("expected stoppedMsg, got %T", msg)
	}
	got := ctrl.called()
	if len(got) != 2 || got[0] != "stop" || got[1] != "settle" {
		t.Fatalf("unexpected calls: %v", got)
	}

	// Further keys are ignored while stopping.
	m, extra := update(t, m, key(" "))
	if extra != nil {
		t.Fatalf("expected no command while stopping")
	}
	if _, quit := update(t, m, msg); quit == nil {
		t.Fatalf("expected quit command")
	}
}

func TestDiscardKey(t *testing.T) {
	t.Parallel()

	m := New(&fakeController{})
	m, cmd := update(t, m, key("q"))
	if cmd == nil || m.Outcome() != OutcomeDiscard {
		t.Fatalf("expected discard with stop command, outcome %v", m.Outcome())
	}
}

func TestInitStartFailureShowsError(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{startErr: errors.New("closed")}
	msg := startCmd(ctrl)()
	m, _ := update(t, New(ctrl), msg)
	if !strings.Contains(m.View(), "closed") {
		t.Fatalf("expected error in view:\n%s", m.View())
	}
}

func TestTickReadsSnapshot(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{snap: domain.Snapshot{State: domain.SessionStateRecording, Elapsed: 75 * time.Second}}
	m, cmd := update(t, New(ctrl), tickMsg(time.Now()))
	if cmd == nil {
		t.Fatalf("expected next tick")
	}
	view := m.View()
	if !strings.Contains(view, "01:15") || !strings.Contains(view, "REC") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestTranscriptRendering(t *testing.T) {
	t.Parallel()

	m := New(&fakeController{})
	if !strings.Contains(m.View(), "Listening") {
		t.Fatalf("expected placeholder")
	}

	m, _ = update(t, m, transcriptMsg{live: "hello world and more", committed: "hello world"})
	view := m.View()
	if !strings.Contains(view, "hello world") || !strings.Contains(view, "and more") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestSessionErrorAndFinalizedShown(t *testing.T) {
	t.Parallel()

	m := New(&fakeController{})
	m, _ = update(t, m, sessionErrMsg{code: domain.ErrorCodeCapture, detail: "device gone"})
	m, _ = update(t, m, finalizedMsg(domain.RecordingLocation{Path: "/tmp/a.flac"}))
	view := m.View()
	if !strings.Contains(view, "capture: device gone") || !strings.Contains(view, "/tmp/a.flac") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestLevelDropsToZero(t *testing.T) {
	t.Parallel()

	m := New(&fakeController{})
	m, _ = update(t, m, levelMsg(1))
	if m.level != 0.5 {
		t.Fatalf("expected smoothed level, got %f", m.level)
	}
	m, _ = update(t, m, levelMsg(0))
	if m.level != 0 {
		t.Fatalf("expected level reset, got %f", m.level)
	}
}

func TestRenderMeterClamps(t *testing.T) {
	t.Parallel()

	full := renderMeter(2, 10)
	if strings.Count(full, "█") != 10 {
		t.Fatalf("expected full meter: %q", full)
	}
	empty := renderMeter(-1, 10)
	if strings.Count(empty, "░") != 10 {
		t.Fatalf("expected empty meter: %q", empty)
	}
}

func TestSinkDropsUntilAttached(t *testing.T) {
	t.Parallel()

	s := NewSink()
	s.AudioLevelChanged(0.3)

	var got []tea.Msg
	s.send = func(msg tea.Msg) { got = append(got, msg) }
	s.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	s.TranscriptChanged("a b", "a")
	s.RecordingFinalized(domain.RecordingLocation{Path: "x"})
	s.SessionError(domain.ErrorCodeFileIO, "disk")
	s.Detach()
	s.AudioLevelChanged(0.9)

	if len(got) != 4 {
		t.Fatalf("expected 4 forwarded messages, got %d", len(got))
	}
	if st, ok := got[0].(stateMsg); !ok || st.state != domain.SessionStateRecording {
		t.Fatalf("unexpected first message: %#v", got[0])
	}
}
