package usecase

import (
	"strings"

	"smartnotes/internal/domain"
)

// transcriptMerger keeps the displayed transcript growing across pauses.
// live is always committed followed by whatever the active request has said
// since the last commit.
type transcriptMerger struct {
	committed  string
	live       string
	appendMode bool
}

func (m *transcriptMerger) reset() {
	*m = transcriptMerger{}
}

// beginAppend is called on resume so new text lands after the committed text.
func (m *transcriptMerger) beginAppend() {
	m.appendMode = true
}

// apply merges one provider event and reports whether the live text changed.
func (m *transcriptMerger) apply(event domain.TranscriptEvent) bool {
	text := strings.TrimSpace(event.Text)
	if text == "" && event.Kind != domain.TranscriptKindFinal {
		return false
	}

	next := joinTranscript(m.committed, text)
	changed := next != m.live
	m.live = next

	if event.Kind == domain.TranscriptKindFinal {
		m.commit()
	}
	return changed
}

// commit freezes the live text so later hypotheses cannot overwrite it.
func (m *transcriptMerger) commit() {
	m.committed = m.live
	m.appendMode = false
}

func joinTranscript(prefix string, text string) string {
	prefix = strings.TrimSpace(prefix)
	text = strings.TrimSpace(text)
	switch {
	case prefix == "":
		return text
	case text == "":
		return prefix
	default:
		return prefix + " " + text
	}
}
