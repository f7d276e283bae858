package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smartnotes/internal/domain"
	"smartnotes/internal/ports"
)

var ErrControllerClosed = errors.New("session controller is closed")

// Config controls recording behavior.
type Config struct {
	Audio         ports.AudioConfig
	Streaming     ports.StreamingConfig
	ChunkSize     int
	LevelGain     float64
	RecordingsDir string
	// StreamingGrace bounds how long an ended request may take to shut down.
	StreamingGrace time.Duration
}

// SessionController is the single owner of the recording session. Operations
// enqueue commands for its loop goroutine and return immediately; the outcome
// is observed through Snapshot and the EventSink.
type SessionController struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	sink     ports.CaptureSink
	events   ports.EventSink
	log      zerolog.Logger
	cfg      Config
	now      func() time.Time

	inbox     chan any
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	workers   sync.WaitGroup

	// loop-owned
	sess      session
	active    *request
	nextToken uint64
	location  *domain.RecordingLocation
	abandoned []domain.RecordingLocation

	viewMu sync.RWMutex
	view   published
}

func NewSessionController(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	sink ports.CaptureSink,
	events ports.EventSink,
	logger zerolog.Logger,
	cfg Config,
) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.LevelGain <= 0 {
		cfg.LevelGain = DefaultLevelGain
	}
	if cfg.RecordingsDir == "" {
		cfg.RecordingsDir = os.TempDir()
	}
	if cfg.StreamingGrace <= 0 {
		cfg.StreamingGrace = 2 * time.Second
	}

	c := &SessionController{
		audio:    audio,
		provider: provider,
		sink:     sink,
		events:   events,
		log:      logger.With().Str("component", "session").Logger(),
		cfg:      cfg,
		now:      time.Now,
		inbox:    make(chan any, 256),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.sess.state = domain.SessionStateIdle
	c.sess.reason = domain.SessionReasonReady
	c.publish()

	go c.run()
	return c
}

// Start begins a new recording. It is a no-op unless the session is idle or failed.
func (c *SessionController) Start() error { return c.enqueue(opStart) }

// Pause stops capture and commits the live transcript. No-op unless recording.
func (c *SessionController) Pause() error { return c.enqueue(opPause) }

// Resume starts a new request in append mode. No-op unless paused.
func (c *SessionController) Resume() error { return c.enqueue(opResume) }

// Stop ends the session and finalizes the recording file. No-op when idle.
func (c *SessionController) Stop() error { return c.enqueue(opStop) }

// Reset stops the session and clears its transcript and last recording.
func (c *SessionController) Reset() error { return c.enqueue(opReset) }

// Settle blocks until every previously enqueued operation has been applied.
func (c *SessionController) Settle(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case c.inbox <- commandMsg{op: opSettle, done: done}:
	case <-c.quit:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-c.done:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops any active session and shuts the loop down.
func (c *SessionController) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
	c.workers.Wait()
	return nil
}

// Snapshot returns the latest published session view.
func (c *SessionController) Snapshot() domain.Snapshot {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()

	s := c.view.session
	return domain.Snapshot{
		State:         s.state,
		Reason:        s.reason,
		LiveText:      s.transcript.live,
		CommittedText: s.transcript.committed,
		AudioLevel:    s.level,
		AppendMode:    s.transcript.appendMode,
		RecordingID:   s.id,
		StartedAt:     s.startedAt,
		Elapsed:       s.elapsed(c.now()),
		Failure:       s.failure,
	}
}

func (c *SessionController) State() domain.SessionState { return c.Snapshot().State }

func (c *SessionController) CurrentTranscript() string { return c.Snapshot().LiveText }

func (c *SessionController) CurrentAudioLevel() float64 { return c.Snapshot().AudioLevel }

// FinalRecordingLocation returns the file finalized by the last stop, if any.
// Starting a new session clears it.
func (c *SessionController) FinalRecordingLocation() (domain.RecordingLocation, bool) {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	if c.view.lastLocation == nil {
		return domain.RecordingLocation{}, false
	}
	return *c.view.lastLocation, true
}

// AbandonedRecordings lists the files of failed takes that a later Start
// replaced. Reset clears the list.
func (c *SessionController) AbandonedRecordings() []domain.RecordingLocation {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return append([]domain.RecordingLocation(nil), c.view.abandoned...)
}

// Status summarizes the session for front ends.
func (c *SessionController) Status() domain.Status {
	snap := c.Snapshot()
	return domain.Status{
		State:   snap.State,
		Active:  snap.Active(),
		Elapsed: domain.FormatElapsed(snap.Elapsed),
		Message: snap.Failure,
	}
}

func (c *SessionController) enqueue(op commandOp) error {
	select {
	case <-c.quit:
		return ErrControllerClosed
	default:
	}
	select {
	case c.inbox <- commandMsg{op: op}:
		return nil
	case <-c.quit:
		return ErrControllerClosed
	}
}

// post is used by pump and forwarder goroutines. It gives up once the
// caller's context is cancelled, so the loop never waits on a pump that is
// blocked on a full inbox.
func (c *SessionController) post(ctx context.Context, msg any) bool {
	select {
	case c.inbox <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-c.quit:
		return false
	}
}

func (c *SessionController) run() {
	defer close(c.done)
	for {
		select {
		case msg := <-c.inbox:
			c.handle(msg)
			c.publish()
		case <-c.quit:
			c.stop(domain.SessionReasonRecordingStopped)
			c.publish()
			return
		}
	}
}

func (c *SessionController) handle(msg any) {
	switch m := msg.(type) {
	case commandMsg:
		c.handleCommand(m.op)
		if m.done != nil {
			close(m.done)
		}
	case transcriptMsg:
		if !c.isCurrent(m.token) {
			c.log.Debug().Uint64("token", m.token).Msg("dropping stale transcript event")
			return
		}
		if c.sess.transcript.apply(m.event) {
			c.events.TranscriptChanged(c.sess.transcript.live, c.sess.transcript.committed)
		}
	case levelMsg:
		if !c.isCurrent(m.token) {
			return
		}
		c.sess.level = m.level
		c.events.AudioLevelChanged(m.level)
	case requestEndedMsg:
		if !c.isCurrent(m.token) {
			return
		}
		err := m.err
		reason := domain.SessionReasonTranscriptionFailed
		if err == nil {
			err = errors.New("transcription request ended unexpectedly")
			reason = domain.SessionReasonTranscriptionEnded
		}
		c.fail(domain.ErrorCodeTranscription, reason, err)
	case pumpFailedMsg:
		if !c.isCurrent(m.token) {
			return
		}
		c.fail(m.err.code, m.err.reason, m.err)
	}
}

func (c *SessionController) handleCommand(op commandOp) {
	switch op {
	case opStart:
		c.start()
	case opPause:
		c.pause()
	case opResume:
		c.resume()
	case opStop:
		c.stop(domain.SessionReasonRecordingStopped)
	case opReset:
		c.stop(domain.SessionReasonSessionReset)
		c.sess.transcript.reset()
		c.location = nil
		c.abandoned = nil
		c.events.TranscriptChanged("", "")
	case opSettle:
	}
}

func (c *SessionController) isCurrent(token uint64) bool {
	return token != 0 && c.active != nil && c.active.token == token &&
		c.sess.state == domain.SessionStateRecording
}

func (c *SessionController) start() {
	if c.sess.state != domain.SessionStateIdle && c.sess.state != domain.SessionStateFailed {
		c.log.Debug().Str("state", string(c.sess.state)).Msg("start ignored")
		return
	}
	// A failed session still owns its recording file. Retrying gives up on
	// that take, so it is finalized and listed as abandoned.
	if c.sess.file != nil {
		if loc, ok := c.finalizeFile(); ok {
			c.abandoned = append(c.abandoned, loc)
		}
	}
	c.location = nil

	now := c.now()
	id := uuid.NewString()
	c.sess = session{
		id:        id,
		state:     domain.SessionStateIdle,
		reason:    c.sess.reason,
		startedAt: now,
	}

	if err := os.MkdirAll(c.cfg.RecordingsDir, 0o755); err != nil {
		c.fail(domain.ErrorCodeFileIO, domain.SessionReasonRecordingFileFailed, fmt.Errorf("failed to create recordings directory: %w", err))
		return
	}
	path := filepath.Join(c.cfg.RecordingsDir, id+c.sink.Extension())
	file, err := c.sink.Create(path)
	if err != nil {
		c.fail(domain.ErrorCodeFileIO, domain.SessionReasonRecordingFileFailed, fmt.Errorf("failed to create recording file: %w", err))
		return
	}
	c.sess.file = file
	c.sess.filePath = path

	if code, reason, err := c.beginRequest(); err != nil {
		c.fail(code, reason, err)
		return
	}

	c.sess.openSegment(now)
	c.log.Info().Str("recording", id).Str("path", path).Msg("recording started")
	c.setState(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
}

func (c *SessionController) pause() {
	if c.sess.state != domain.SessionStateRecording {
		c.log.Debug().Str("state", string(c.sess.state)).Msg("pause ignored")
		return
	}
	c.endRequest()
	c.sess.transcript.commit()
	c.clearLevel()
	c.sess.closeSegment(c.now())
	c.setState(domain.SessionStatePaused, domain.SessionReasonRecordingPaused)
}

func (c *SessionController) resume() {
	if c.sess.state != domain.SessionStatePaused {
		c.log.Debug().Str("state", string(c.sess.state)).Msg("resume ignored")
		return
	}
	if code, reason, err := c.beginRequest(); err != nil {
		c.fail(code, reason, err)
		return
	}
	c.sess.transcript.beginAppend()
	c.sess.openSegment(c.now())
	c.setState(domain.SessionStateRecording, domain.SessionReasonRecordingResumed)
}

func (c *SessionController) stop(reason domain.SessionStateReason) {
	if c.sess.state == domain.SessionStateIdle {
		return
	}
	c.endRequest()
	c.sess.transcript.commit()
	c.clearLevel()
	c.sess.closeSegment(c.now())
	if loc, ok := c.finalizeFile(); ok {
		c.location = &loc
	}
	c.log.Info().Str("recording", c.sess.id).Dur("elapsed", c.sess.recorded).Msg("recording stopped")
	c.setState(domain.SessionStateIdle, reason)
}

// fail moves the session into the failed state. Audio and the request are
// torn down; the recording file stays open until stop or the next start.
func (c *SessionController) fail(code domain.ErrorCode, reason domain.SessionStateReason, err error) {
	c.endRequest()
	c.sess.transcript.commit()
	c.clearLevel()
	c.sess.closeSegment(c.now())
	c.sess.failure = err.Error()

	c.log.Error().Err(err).Str("code", string(code)).Str("reason", string(reason)).Msg("recording session failed")
	c.events.SessionError(code, err.Error())
	c.setState(domain.SessionStateFailed, reason)
}

func (c *SessionController) beginRequest() (domain.ErrorCode, domain.SessionStateReason, error) {
	// The request outlives the audio tap by the streaming grace period, so
	// each gets its own context.
	streamCtx, endStream := context.WithCancel(context.Background())
	stream, err := c.provider.StartStreaming(streamCtx, c.cfg.Streaming)
	if err != nil {
		endStream()
		return domain.ErrorCodeTranscription, domain.SessionReasonTranscriptionFailed,
			fmt.Errorf("failed to start transcription: %w", err)
	}

	audioCtx, stopAudio := context.WithCancel(context.Background())
	audio, err := c.audio.Start(audioCtx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		stopAudio()
		endStream()
		if errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, os.ErrPermission) {
			return domain.ErrorCodePermission, domain.SessionReasonPermissionDenied,
				fmt.Errorf("microphone access denied: %w", err)
		}
		return domain.ErrorCodeCapture, domain.SessionReasonCaptureFailed,
			fmt.Errorf("failed to start audio capture: %w", err)
	}

	c.nextToken++
	req := &request{
		token:      c.nextToken,
		stopAudio:  stopAudio,
		endStream:  endStream,
		audio:      audio,
		stream:     stream,
		pumpDone:   make(chan struct{}),
		eventsDone: make(chan struct{}),
	}
	c.active = req

	go forwardTranscriptEvents(streamCtx, req.token, stream, c.post, req.eventsDone)
	go pumpAudioChunks(audioCtx, req.token, audio, stream, c.sess.file, c.cfg.ChunkSize, c.cfg.LevelGain, c.post, req.pumpDone)
	return "", "", nil
}

// endRequest invalidates the active token first so nothing the old request
// says afterwards can reach the transcript, then tears it down. The audio tap
// stops at once; the request gets CloseStream and up to StreamingGrace to
// finish before its context is cancelled.
func (c *SessionController) endRequest() {
	req := c.active
	if req == nil {
		return
	}
	c.active = nil

	req.stopAudio()
	if err := req.audio.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("audio capture did not stop cleanly")
	}
	<-req.pumpDone

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		_ = req.stream.CloseSend()
		if err := waitForStream(req.stream, c.cfg.StreamingGrace); err != nil {
			c.log.Debug().Err(err).Uint64("token", req.token).Msg("transcription request closed with error")
		}
		_ = req.stream.Close()
		req.endStream()
		<-req.eventsDone
	}()
}

func (c *SessionController) finalizeFile() (domain.RecordingLocation, bool) {
	file := c.sess.file
	if file == nil {
		return domain.RecordingLocation{}, false
	}
	c.sess.file = nil

	loc, err := file.Finalize()
	if err != nil {
		c.log.Error().Err(err).Str("path", c.sess.filePath).Msg("failed to finalize recording")
		c.events.SessionError(domain.ErrorCodeFileIO, fmt.Sprintf("failed to finalize recording: %v", err))
		return domain.RecordingLocation{}, false
	}
	c.events.RecordingFinalized(loc)
	return loc, true
}

func (c *SessionController) clearLevel() {
	if c.sess.level == 0 {
		return
	}
	c.sess.level = 0
	c.events.AudioLevelChanged(0)
}

func (c *SessionController) setState(state domain.SessionState, reason domain.SessionStateReason) {
	c.sess.state = state
	c.sess.reason = reason
	if state != domain.SessionStateFailed {
		c.sess.failure = ""
	}
	c.events.SessionStateChanged(state, reason)
}

func (c *SessionController) publish() {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	c.view.session = c.sess
	// The file handle is loop-owned; readers never see it.
	c.view.session.file = nil
	if c.location != nil {
		loc := *c.location
		c.view.lastLocation = &loc
	} else {
		c.view.lastLocation = nil
	}
	c.view.abandoned = append([]domain.RecordingLocation(nil), c.abandoned...)
}
