package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"smartnotes/internal/domain"
	"smartnotes/internal/ports"
)

// pumpError classifies a failure raised while moving audio.
type pumpError struct {
	code   domain.ErrorCode
	reason domain.SessionStateReason
	err    error
}

func (e pumpError) Error() string { return e.err.Error() }
func (e pumpError) Unwrap() error { return e.err }

// pumpAudioChunks reads the capture tap until it stops. Every buffer is sent to
// the transcription request, appended to the capture file and measured; the
// three run concurrently and all finish before the next read.
func pumpAudioChunks(
	ctx context.Context,
	token uint64,
	audio ports.AudioSession,
	stream ports.StreamingSession,
	file ports.CaptureFile,
	chunkSize int,
	gain float64,
	post func(context.Context, any) bool,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			var level float64

			var g errgroup.Group
			g.Go(func() error {
				if sendErr := stream.SendAudio(chunk); sendErr != nil {
					return pumpError{
						code:   domain.ErrorCodeTranscription,
						reason: domain.SessionReasonTranscriptionFailed,
						err:    fmt.Errorf("failed to stream audio: %w", sendErr),
					}
				}
				return nil
			})
			g.Go(func() error {
				if writeErr := file.Write(chunk); writeErr != nil {
					return pumpError{
						code:   domain.ErrorCodeFileIO,
						reason: domain.SessionReasonRecordingFileFailed,
						err:    fmt.Errorf("failed to write recording: %w", writeErr),
					}
				}
				return nil
			})
			g.Go(func() error {
				level = audioLevel(chunk, gain)
				return nil
			})

			if groupErr := g.Wait(); groupErr != nil {
				if ctx.Err() == nil {
					var pe pumpError
					if !errors.As(groupErr, &pe) {
						pe = pumpError{code: domain.ErrorCodeCapture, reason: domain.SessionReasonCaptureFailed, err: groupErr}
					}
					post(ctx, pumpFailedMsg{token: token, err: pe})
				}
				return
			}
			post(ctx, levelMsg{token: token, level: level})
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = errors.New("audio capture ended unexpectedly")
			}
			post(ctx, pumpFailedMsg{token: token, err: pumpError{
				code:   domain.ErrorCodeCapture,
				reason: domain.SessionReasonCaptureFailed,
				err:    fmt.Errorf("audio capture error: %w", err),
			}})
			return
		}
	}
}

// forwardTranscriptEvents relays provider events into the controller inbox,
// tagged with the request token, and reports how the request ended.
func forwardTranscriptEvents(
	ctx context.Context,
	token uint64,
	stream ports.StreamingSession,
	post func(context.Context, any) bool,
	done chan struct{},
) {
	defer close(done)

	for event := range stream.Events() {
		post(ctx, transcriptMsg{token: token, event: event})
	}
	err := stream.Wait()
	post(ctx, requestEndedMsg{token: token, err: err})
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
