package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smartnotes/internal/domain"
	"smartnotes/internal/ports"
)

var (
	ErrEmptyTranscript = errors.New("no transcript captured")
	ErrSessionActive   = errors.New("stop the recording before saving it")
)

// FinalizeInput is what a front end hands over once a session has stopped.
type FinalizeInput struct {
	RecordingID string
	Title       string
	Transcript  string
	Location    domain.RecordingLocation
}

// NoteResult is returned once a recording has been turned into a note.
type NoteResult struct {
	Recording domain.Recording
	Copied    bool
}

// NoteFinalizer turns a stopped session into a stored note. It runs outside the
// controller loop because every step may wait on the network.
type NoteFinalizer struct {
	corrector  ports.TranscriptCorrector
	summarizer ports.Summarizer
	store      ports.RecordingStore
	clipboard  ports.Clipboard
	events     ports.EventSink
	log        zerolog.Logger
	diarize    bool
	now        func() time.Time
}

func NewNoteFinalizer(
	corrector ports.TranscriptCorrector,
	summarizer ports.Summarizer,
	store ports.RecordingStore,
	clipboard ports.Clipboard,
	events ports.EventSink,
	logger zerolog.Logger,
	diarize bool,
) *NoteFinalizer {
	return &NoteFinalizer{
		corrector:  corrector,
		summarizer: summarizer,
		store:      store,
		clipboard:  clipboard,
		events:     events,
		log:        logger.With().Str("component", "finalizer").Logger(),
		diarize:    diarize,
		now:        time.Now,
	}
}

// SaveSession turns the controller's last session into a note. A failed
// session still holds its own recording file, so it is stopped first and the
// note always points at the audio of the transcript it carries.
func (f *NoteFinalizer) SaveSession(ctx context.Context, ctrl *SessionController, title string) (NoteResult, error) {
	snap := ctrl.Snapshot()
	if snap.Active() {
		return NoteResult{}, ErrSessionActive
	}
	if snap.State == domain.SessionStateFailed {
		if err := ctrl.Stop(); err != nil {
			return NoteResult{}, err
		}
		if err := ctrl.Settle(ctx); err != nil {
			return NoteResult{}, err
		}
		snap = ctrl.Snapshot()
	}

	loc, _ := ctrl.FinalRecordingLocation()
	return f.Finalize(ctx, FinalizeInput{
		RecordingID: snap.RecordingID,
		Title:       title,
		Transcript:  snap.CommittedText,
		Location:    loc,
	})
}

// Finalize corrects, summarizes and stores a transcript. Summarization and
// storage failures are returned; a clipboard failure only clears Copied.
func (f *NoteFinalizer) Finalize(ctx context.Context, in FinalizeInput) (NoteResult, error) {
	raw := strings.TrimSpace(in.Transcript)
	if raw == "" {
		return NoteResult{}, ErrEmptyTranscript
	}

	transcript, err := f.corrector.Apply(raw)
	if err != nil {
		// Corrections are cosmetic; fall back to what was heard.
		f.log.Warn().Err(err).Msg("transcript corrections failed")
		transcript = raw
	}

	f.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonSummarizing)

	summary, err := f.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return NoteResult{}, f.summarizationFailed(fmt.Errorf("failed to summarize transcript: %w", err))
	}

	items, err := f.summarizer.ExtractActionItems(ctx, summary)
	if err != nil {
		return NoteResult{}, f.summarizationFailed(fmt.Errorf("failed to extract action items: %w", err))
	}

	var diarized string
	if f.diarize {
		diarized, err = f.summarizer.Diarize(ctx, transcript)
		if err != nil {
			return NoteResult{}, f.summarizationFailed(fmt.Errorf("failed to label speakers: %w", err))
		}
	}

	id := in.RecordingID
	if id == "" {
		id = uuid.NewString()
	}
	created := f.now()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultTitle(created)
	}

	rec := domain.Recording{
		ID:          id,
		Title:       title,
		AudioPath:   in.Location.Path,
		Transcript:  transcript,
		Summary:     summary,
		ActionItems: items,
		Diarized:    diarized,
		Duration:    in.Location.Duration,
		CreatedAt:   created,
	}
	if rec.ActionItems == nil {
		rec.ActionItems = []string{}
	}

	if err := f.store.Save(ctx, rec); err != nil {
		f.events.SessionError(domain.ErrorCodeStore, err.Error())
		return NoteResult{}, fmt.Errorf("failed to save note: %w", err)
	}

	result := NoteResult{Recording: rec, Copied: true}
	reason := domain.SessionReasonNoteSaved
	if err := f.clipboard.SetText(ctx, noteClipboardText(rec)); err != nil {
		result.Copied = false
		reason = domain.SessionReasonNoteSavedClipboardErr
		f.log.Warn().Err(err).Msg("clipboard write failed")
		f.events.SessionError(domain.ErrorCodeClipboard, "note saved but clipboard write failed")
	}

	f.log.Info().Str("recording", rec.ID).Int("action_items", len(rec.ActionItems)).Msg("note saved")
	f.events.SessionStateChanged(domain.SessionStateIdle, reason)
	return result, nil
}

func (f *NoteFinalizer) summarizationFailed(err error) error {
	f.log.Error().Err(err).Msg("summarization failed")
	f.events.SessionError(domain.ErrorCodeSummarization, err.Error())
	f.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonSummarizationFailed)
	return err
}

func defaultTitle(t time.Time) string {
	return "Note " + t.Format("2006-01-02 15:04")
}

func noteClipboardText(rec domain.Recording) string {
	var b strings.Builder
	b.WriteString("Summary:\n")
	b.WriteString(rec.Summary)
	if len(rec.ActionItems) > 0 {
		b.WriteString("\n\nAction items:\n")
		for _, item := range rec.ActionItems {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
