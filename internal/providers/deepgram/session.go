package deepgram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"smartnotes/internal/domain"
)

var (
	errInputClosed   = errors.New("audio input already closed")
	errSessionClosed = errors.New("listen session closed")
)

// socketSession is one live request. A transmit pump owns all socket writes
// and a receive pump owns all reads; both run in one errgroup whose first
// error becomes the request outcome.
type socketSession struct {
	conn      *websocket.Conn
	log       zerolog.Logger
	keepAlive time.Duration

	outbox  chan []byte
	results chan domain.TranscriptEvent
	halt    chan struct{}
	ended   chan struct{}
	// outcome is written once before ended is closed.
	outcome error

	inputMu    sync.RWMutex
	inputDone  bool
	finishOnce sync.Once
	haltOnce   sync.Once
}

func newSocketSession(conn *websocket.Conn, log zerolog.Logger, keepAlive time.Duration) *socketSession {
	return &socketSession{
		conn:      conn,
		log:       log,
		keepAlive: keepAlive,
		outbox:    make(chan []byte, 32),
		results:   make(chan domain.TranscriptEvent, 64),
		halt:      make(chan struct{}),
		ended:     make(chan struct{}),
	}
}

func (s *socketSession) run() {
	g, ctx := errgroup.WithContext(context.Background())
	received := make(chan struct{})

	g.Go(func() error {
		defer close(received)
		return s.receive()
	})
	g.Go(func() error {
		return s.transmit(ctx, received)
	})
	go func() {
		// A failed write leaves the reader blocked until the socket closes.
		<-ctx.Done()
		_ = s.conn.Close()
	}()
	go func() {
		s.outcome = s.classify(g.Wait())
		close(s.results)
		_ = s.conn.Close()
		close(s.ended)
	}()
}

func (s *socketSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.inputMu.RLock()
	defer s.inputMu.RUnlock()
	if s.inputDone {
		return errInputClosed
	}

	select {
	case s.outbox <- bytes.Clone(chunk):
		return nil
	case <-s.halt:
		return errSessionClosed
	case <-s.ended:
		if s.outcome != nil {
			return s.outcome
		}
		return errSessionClosed
	}
}

// CloseSend flushes queued audio and asks the server to finish the request.
// Remaining results still arrive on Events.
func (s *socketSession) CloseSend() error {
	s.finishOnce.Do(func() {
		s.inputMu.Lock()
		s.inputDone = true
		close(s.outbox)
		s.inputMu.Unlock()
	})
	return nil
}

func (s *socketSession) Events() <-chan domain.TranscriptEvent { return s.results }

func (s *socketSession) Wait() error {
	<-s.ended
	return s.outcome
}

func (s *socketSession) Close() error {
	s.haltOnce.Do(func() {
		close(s.halt)
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	return s.Wait()
}

// classify drops the errors that mean the request ended normally: a clean
// close handshake, or a read that failed because Close tore the socket down.
func (s *socketSession) classify(err error) error {
	if err == nil {
		return nil
	}
	var closed *websocket.CloseError
	if errors.As(err, &closed) {
		switch closed.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return nil
		}
	}
	select {
	case <-s.halt:
		return nil
	default:
		return err
	}
}

type controlFrame struct {
	Type string `json:"type"`
}

func (s *socketSession) control(kind string) error {
	if err := s.conn.WriteJSON(controlFrame{Type: kind}); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

func (s *socketSession) transmit(ctx context.Context, received <-chan struct{}) error {
	idle := time.NewTicker(s.keepAlive)
	defer idle.Stop()

	for {
		select {
		case chunk, open := <-s.outbox:
			if !open {
				return s.control("CloseStream")
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				return fmt.Errorf("send audio: %w", err)
			}
			idle.Reset(s.keepAlive)
		case <-idle.C:
			if err := s.control("KeepAlive"); err != nil {
				return err
			}
		case <-received:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *socketSession) receive() error {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read listen frame: %w", err)
		}

		event, kind, err := decodeFrame(payload)
		switch kind {
		case frameUndecodable:
			s.log.Debug().Err(err).Msg("ignoring undecodable listen frame")
			continue
		case frameError:
			return err
		case frameSkip:
			continue
		}

		// Block until the consumer takes the event so finals are never dropped.
		select {
		case s.results <- event:
		case <-s.halt:
			return nil
		}
	}
}
