// Package tui is the live recording view used by the record command.
package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"smartnotes/internal/domain"
)

// Controller is the part of the session controller the view drives.
type Controller interface {
	Start() error
	Pause() error
	Resume() error
	Stop() error
	Settle(ctx context.Context) error
	Snapshot() domain.Snapshot
}

// Outcome is how the user left the view.
type Outcome int

const (
	OutcomeNone Outcome = iota
	// OutcomeSave means stop and turn the recording into a note.
	OutcomeSave
	// OutcomeDiscard means stop and throw the recording away.
	OutcomeDiscard
)

const (
	tickInterval = 200 * time.Millisecond
	settleWait   = 5 * time.Second
	meterWidth   = 32
)

type (
	tickMsg    time.Time
	stoppedMsg struct{ err error }
	cmdErrMsg  struct{ err error }
)

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	timerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	meterOn      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterHot     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	meterOff     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	liveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

// Model is the bubbletea model for a single recording.
type Model struct {
	ctrl Controller

	state     domain.SessionState
	reason    domain.SessionStateReason
	live      string
	committed string
	level     float64
	elapsed   time.Duration
	errText   string
	location  *domain.RecordingLocation

	outcome  Outcome
	stopping bool
	width    int
}

func New(ctrl Controller) Model {
	return Model{ctrl: ctrl, state: domain.SessionStateIdle, width: 80}
}

// Outcome reports how the view was left. Valid after the program exits.
func (m Model) Outcome() Outcome { return m.outcome }

func (m Model) Init() tea.Cmd {
	return tea.Batch(startCmd(m.ctrl), tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func startCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Start(); err != nil {
			return cmdErrMsg{err: err}
		}
		return nil
	}
}

func stopCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Stop(); err != nil {
			return stoppedMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), settleWait)
		defer cancel()
		return stoppedMsg{err: ctrl.Settle(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		snap := m.ctrl.Snapshot()
		m.elapsed = snap.Elapsed
		m.state, m.reason = snap.State, snap.Reason
		return m, tick()

	case stateMsg:
		m.state, m.reason = msg.state, msg.reason
		if msg.state != domain.SessionStateFailed {
			m.errText = ""
		}

	case transcriptMsg:
		m.live, m.committed = msg.live, msg.committed

	case levelMsg:
		m.level = m.level*0.5 + float64(msg)*0.5
		if msg == 0 {
			m.level = 0
		}

	case finalizedMsg:
		loc := domain.RecordingLocation(msg)
		m.location = &loc

	case sessionErrMsg:
		m.errText = string(msg.code) + ": " + msg.detail

	case cmdErrMsg:
		m.errText = msg.err.Error()

	case stoppedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.stopping {
		return m, nil
	}

	switch msg.String() {
	case " ":
		var err error
		switch m.state {
		case domain.SessionStateRecording:
			err = m.ctrl.Pause()
		case domain.SessionStatePaused:
			err = m.ctrl.Resume()
		case domain.SessionStateFailed:
			// A retry is a new session; the failed take is not kept.
			err = m.ctrl.Start()
		}
		if err != nil {
			m.errText = err.Error()
		}

	case "s", "enter":
		m.stopping = true
		m.outcome = OutcomeSave
		return m, stopCmd(m.ctrl)

	case "q", "esc", "ctrl+c":
		m.stopping = true
		m.outcome = OutcomeDiscard
		return m, stopCmd(m.ctrl)
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.stateBadge())
	b.WriteString("  ")
	b.WriteString(timerStyle.Render(domain.FormatElapsed(m.elapsed)))
	b.WriteString("\n")
	b.WriteString(renderMeter(m.level, meterWidth))
	b.WriteString("\n\n")

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	b.WriteString(panelStyle.Width(width).Render(m.renderTranscript()))
	b.WriteString("\n")

	if m.errText != "" {
		b.WriteString(errStyle.Render("! " + m.errText))
		b.WriteString("\n")
	}
	if m.location != nil {
		b.WriteString(idleStyle.Render("audio: " + m.location.Path))
		b.WriteString("\n")
	}

	b.WriteString(helpLine(m.state, m.stopping))
	return b.String()
}

func (m Model) stateBadge() string {
	switch {
	case m.stopping:
		return idleStyle.Render("■ STOPPING")
	case m.state == domain.SessionStateRecording:
		return recStyle.Render("● REC")
	case m.state == domain.SessionStatePaused:
		return pausedStyle.Render("❚❚ PAUSED")
	case m.state == domain.SessionStateFailed:
		return errStyle.Render("✕ FAILED")
	default:
		return idleStyle.Render("○ IDLE")
	}
}

func (m Model) renderTranscript() string {
	if strings.TrimSpace(m.live) == "" {
		return idleStyle.Render("Listening...")
	}
	if m.committed != "" && strings.HasPrefix(m.live, m.committed) {
		tail := strings.TrimSpace(strings.TrimPrefix(m.live, m.committed))
		if tail == "" {
			return m.committed
		}
		return m.committed + " " + liveStyle.Render(tail)
	}
	if m.committed == "" {
		return liveStyle.Render(m.live)
	}
	return m.live
}

func renderMeter(level float64, width int) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level*float64(width) + 0.5)
	hot := width * 85 / 100

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i >= filled:
			b.WriteString(meterOff.Render("░"))
		case i >= hot:
			b.WriteString(meterHot.Render("█"))
		default:
			b.WriteString(meterOn.Render("█"))
		}
	}
	return b.String()
}

func helpLine(state domain.SessionState, stopping bool) string {
	if stopping {
		return helpStyle.Render("finishing recording...")
	}
	space := "pause"
	switch state {
	case domain.SessionStatePaused:
		space = "resume"
	case domain.SessionStateFailed:
		space = "retry (drops this take)"
	}
	return helpKeyStyle.Render("space") + helpStyle.Render(" "+space+"  ") +
		helpKeyStyle.Render("s") + helpStyle.Render(" stop & summarize  ") +
		helpKeyStyle.Render("q") + helpStyle.Render(" discard")
}
