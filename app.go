package main

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"smartnotes/internal/bootstrap"
	"smartnotes/internal/domain"
)

const (
	eventSession    = "smartnotes:session"
	eventTranscript = "smartnotes:transcript"
	eventLevel      = "smartnotes:level"
	eventFinal      = "smartnotes:final"
	eventError      = "smartnotes:error"
)

var errNotStarted = errors.New("services are not started yet")

// App is bound into the webview. It owns the service graph for the life of
// the window and relays controller events to the frontend.
type App struct {
	ctx context.Context

	services bootstrap.Services
	bootErr  error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, wailsClipboard{}, os.Stderr)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.services.Controller == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn().Err(err).Msg("shutdown was not clean")
	}
}

// StartRecording begins a new session.
func (a *App) StartRecording() (domain.Status, error) {
	return a.command(a.services.Controller.Start)
}

// PauseRecording pauses capture and commits the live transcript.
func (a *App) PauseRecording() (domain.Status, error) {
	return a.command(a.services.Controller.Pause)
}

// ResumeRecording continues a paused session in append mode.
func (a *App) ResumeRecording() (domain.Status, error) {
	return a.command(a.services.Controller.Resume)
}

// StopRecording ends the session and returns its final view. The recording
// file is finalized before this returns.
func (a *App) StopRecording() (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}, err
	}
	if err := a.services.Controller.Stop(); err != nil {
		return domain.Snapshot{}, err
	}
	if err := a.services.Controller.Settle(a.ctx); err != nil {
		return domain.Snapshot{}, err
	}
	return a.services.Controller.Snapshot(), nil
}

// SaveNote summarizes the last session and stores it. A failed session is
// stopped first so the note keeps its own audio.
func (a *App) SaveNote(title string) (domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return domain.Recording{}, err
	}
	result, err := a.services.Finalizer.SaveSession(a.ctx, a.services.Controller, title)
	if err != nil {
		return domain.Recording{}, err
	}
	return result.Recording, nil
}

// GetStatus reports the session for the status bar, or the boot error.
func (a *App) GetStatus() domain.Status {
	if a.services.Controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateFailed, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false, Elapsed: domain.FormatElapsed(0)}
	}
	return a.services.Controller.Status()
}

// GetRuntimeInfo lists the active backends and paths. Keys are never included.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	return map[string]string{
		"provider":        "Deepgram",
		"model":           cfg.Deepgram.Model,
		"language":        cfg.Deepgram.Language,
		"summarizer":      cfg.Gemini.Model,
		"diarize":         strconv.FormatBool(cfg.Gemini.DiarizeEnabled()),
		"audioBackend":    cfg.Audio.Backend,
		"audioInput":      cfg.Audio.InputDevice,
		"recordingsDir":   cfg.Session.RecordingsDir,
		"correctionsFile": cfg.Corrections.Path,
		"configFile":      cfg.File,
	}
}

func (a *App) command(op func() error) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := op(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Controller.Settle(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.services.Controller.Status(), nil
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services.Controller == nil {
		return errNotStarted
	}
	return nil
}

// emit drops events that arrive before the Wails runtime is up.
func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.emit(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

func (a *App) TranscriptChanged(live string, committed string) {
	a.emit(eventTranscript, map[string]string{"live": live, "committed": committed})
}

// AudioLevelChanged forwards the meter level, already clamped to [0, 1].
func (a *App) AudioLevelChanged(level float64) { a.emit(eventLevel, level) }

func (a *App) RecordingFinalized(loc domain.RecordingLocation) { a.emit(eventFinal, loc) }

func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

var reasonMessages = map[domain.SessionStateReason]string{
	domain.SessionReasonReady:                 "Ready",
	domain.SessionReasonRecordingStarted:      "Recording",
	domain.SessionReasonRecordingPaused:       "Paused",
	domain.SessionReasonRecordingResumed:      "Recording resumed",
	domain.SessionReasonRecordingStopped:      "Recording stopped",
	domain.SessionReasonSessionReset:          "Session cleared",
	domain.SessionReasonPermissionDenied:      "Microphone access denied",
	domain.SessionReasonCaptureFailed:         "Microphone capture failed",
	domain.SessionReasonTranscriptionFailed:   "Transcription failed",
	domain.SessionReasonTranscriptionEnded:    "Transcription ended unexpectedly",
	domain.SessionReasonRecordingFileFailed:   "Could not write the recording file",
	domain.SessionReasonSummarizing:           "Summarizing...",
	domain.SessionReasonNoteSaved:             "Note saved and copied to clipboard",
	domain.SessionReasonNoteSavedClipboardErr: "Note saved (clipboard write failed)",
	domain.SessionReasonSummarizationFailed:   "Summarization failed",
}

// sessionReasonMessage is the status line shown for a reason; unknown
// reasons show nothing.
func sessionReasonMessage(reason domain.SessionStateReason) string {
	return reasonMessages[reason]
}

var errorTitles = map[domain.ErrorCode]string{
	domain.ErrorCodeStartup:       "Startup failed",
	domain.ErrorCodePermission:    "Microphone permission denied",
	domain.ErrorCodeCapture:       "Audio capture issue",
	domain.ErrorCodeTranscription: "Transcription error",
	domain.ErrorCodeFileIO:        "Recording file error",
	domain.ErrorCodeSummarization: "Summarization error",
	domain.ErrorCodeClipboard:     "Clipboard write failed",
	domain.ErrorCodeStore:         "Could not save note",
}

func errorMessage(code domain.ErrorCode, detail string) string {
	if title, ok := errorTitles[code]; ok {
		return title
	}
	if detail != "" {
		return detail
	}
	return "Unknown error"
}

// wailsClipboard writes through the webview runtime, which works on every
// platform Wails supports.
type wailsClipboard struct{}

func (wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
