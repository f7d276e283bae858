package cli

import (
	"context"
	"errors"

	"github.com/atotto/clipboard"

	"smartnotes/internal/domain"
)

type systemClipboard struct{}

func (systemClipboard) SetText(_ context.Context, text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard utility available")
	}
	return clipboard.WriteAll(text)
}

type discardEvents struct{}

func (discardEvents) SessionStateChanged(domain.SessionState, domain.SessionStateReason) {}
func (discardEvents) TranscriptChanged(string, string)                                   {}
func (discardEvents) AudioLevelChanged(float64)                                          {}
func (discardEvents) RecordingFinalized(domain.RecordingLocation)                        {}
func (discardEvents) SessionError(domain.ErrorCode, string)                              {}
