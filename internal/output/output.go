package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"smartnotes/internal/domain"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	starStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) Summarizing() {
	fmt.Fprintf(f.w, "🤖 Summarizing transcript...\n")
}

func (f *Formatter) RecordingStopped(d time.Duration, path string) {
	fmt.Fprintf(f.w, "⏹️  Recording stopped (%s)\n", formatDuration(d))
	if path != "" {
		fmt.Fprintf(f.w, "🎙️  Audio saved: %s\n", path)
	}
}

func (f *Formatter) NoteSaved(rec domain.Recording, copied bool) {
	fmt.Fprintf(f.w, "\n%s\n\n", headingStyle.Render(rec.Title))
	f.noteBody(rec)
	fmt.Fprintln(f.w)
	if copied {
		f.Success("Note saved and copied to clipboard (" + rec.ID + ")")
	} else {
		f.Warning("Note saved, clipboard write failed (" + rec.ID + ")")
	}
}

func (f *Formatter) RecordingListHeader() {
	fmt.Fprintf(f.w, "📁 Recordings:\n\n")
}

func (f *Formatter) RecordingListItem(rec domain.Recording) {
	star := " "
	if rec.Starred {
		star = starStyle.Render("★")
	}
	fmt.Fprintf(f.w, "  %s %s  %s  %s\n",
		star,
		dimStyle.Render(rec.ID),
		rec.Title,
		dimStyle.Render(rec.CreatedAt.Local().Format("2006-01-02 15:04")+" · "+formatDuration(rec.Duration)),
	)
}

func (f *Formatter) Recording(rec domain.Recording) {
	title := rec.Title
	if rec.Starred {
		title += " " + starStyle.Render("★")
	}
	fmt.Fprintf(f.w, "%s\n", headingStyle.Render(title))
	fmt.Fprintf(f.w, "%s\n", dimStyle.Render(fmt.Sprintf("%s · %s · %s",
		rec.ID, rec.CreatedAt.Local().Format("2006-01-02 15:04"), formatDuration(rec.Duration))))
	if rec.AudioPath != "" {
		fmt.Fprintf(f.w, "%s\n", dimStyle.Render(rec.AudioPath))
	}
	fmt.Fprintln(f.w)
	f.noteBody(rec)

	transcript := rec.Transcript
	if rec.Diarized != "" {
		transcript = rec.Diarized
	}
	fmt.Fprintf(f.w, "\n%s\n%s\n", headingStyle.Render("Transcript"), transcript)
}

func (f *Formatter) noteBody(rec domain.Recording) {
	fmt.Fprintf(f.w, "%s\n%s\n", headingStyle.Render("Summary"), strings.TrimSpace(rec.Summary))
	if len(rec.ActionItems) == 0 {
		return
	}
	fmt.Fprintf(f.w, "\n%s\n", headingStyle.Render("Action items"))
	for _, item := range rec.ActionItems {
		fmt.Fprintf(f.w, "  • %s\n", item)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
