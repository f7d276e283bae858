package bootstrap

import (
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"smartnotes/internal/audio"
	"smartnotes/internal/capture"
	"smartnotes/internal/config"
	"smartnotes/internal/logging"
	"smartnotes/internal/ports"
	"smartnotes/internal/providers/deepgram"
	"smartnotes/internal/providers/gemini"
	"smartnotes/internal/store"
	"smartnotes/internal/usecase"
	"smartnotes/internal/vocab"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Finalizer  *usecase.NoteFinalizer
	Store      *store.Store
	Config     config.Config
	Logger     zerolog.Logger

	closers []io.Closer
}

// Close shuts the controller down and releases the store and log file.
func (s Services) Close() error {
	var errs []error
	if s.Controller != nil {
		errs = append(errs, s.Controller.Close())
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// Build wires all backend dependencies for the current runtime. Logs go to
// logOut unless the config names a log directory.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard, logOut io.Writer) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWithConfig(cfg, eventSink, clipboard, logOut)
}

// BuildWithConfig is Build for an already loaded config.
func BuildWithConfig(cfg config.Config, eventSink ports.EventSink, clipboard ports.Clipboard, logOut io.Writer) (Services, error) {
	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Dir:    cfg.Log.Dir,
		Format: cfg.Log.Format,
	}, logOut)
	if err != nil {
		return Services{}, err
	}
	svc := Services{Config: cfg, Logger: logger, closers: []io.Closer{logCloser}}

	corrector, err := vocab.Load(cfg.Corrections.Path, cfg.Corrections.IterationLimit, logger)
	if err != nil {
		svc.Close()
		return Services{}, err
	}

	notes, err := store.Open(cfg.Store.Path)
	if err != nil {
		svc.Close()
		return Services{}, err
	}
	svc.Store = notes
	svc.closers = append(svc.closers, notes)

	svc.Controller = usecase.NewSessionController(
		audio.NewCapture(cfg.Audio.Backend, cfg.Audio.RecorderCommand, logger),
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormatEnabled(),
			Endpointing: time.Duration(cfg.Deepgram.EndpointingMS) * time.Millisecond,
		}, logger),
		capture.NewFlacSink(cfg.Audio.SampleRate, cfg.Audio.Channels),
		eventSink,
		logger,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize:      cfg.Audio.ChunkSize,
			LevelGain:      cfg.Audio.LevelGain,
			RecordingsDir:  cfg.Session.RecordingsDir,
			StreamingGrace: cfg.Session.StreamingGrace,
		},
	)

	svc.Finalizer = usecase.NewNoteFinalizer(
		corrector,
		gemini.NewSummarizer(gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			APIBaseURL: cfg.Gemini.APIBaseURL,
			Model:      cfg.Gemini.Model,
		}, logger),
		notes,
		clipboard,
		eventSink,
		logger,
		cfg.Gemini.DiarizeEnabled(),
	)

	logger.Debug().
		Str("config", cfg.File).
		Str("backend", cfg.Audio.Backend).
		Str("store", cfg.Store.Path).
		Int("corrections", corrector.Len()).
		Msg("services ready")
	return svc, nil
}
