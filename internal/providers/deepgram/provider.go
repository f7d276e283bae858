package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"smartnotes/internal/ports"
)

const defaultBaseURL = "https://api.deepgram.com/v1"

var ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")

// Config holds the listen endpoint options shared by every request.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	// Endpointing is the trailing silence that closes an utterance. Zero
	// leaves the server default.
	Endpointing time.Duration
	// KeepAlive is the idle interval after which a KeepAlive frame is sent.
	KeepAlive time.Duration
}

func (c Config) withDefaults() Config {
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 8 * time.Second
	}
	return c
}

// Provider opens live transcription requests against Deepgram's listen socket.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	log    zerolog.Logger
}

func NewProvider(cfg Config, logger zerolog.Logger) *Provider {
	return &Provider{
		cfg:    cfg.withDefaults(),
		dialer: websocket.DefaultDialer,
		log:    logger.With().Str("component", "deepgram").Logger(),
	}
}

// StartStreaming dials a new listen socket. Cancelling ctx tears the request
// down as if Close had been called.
func (p *Provider) StartStreaming(ctx context.Context, stream ports.StreamingConfig) (ports.StreamingSession, error) {
	key := strings.TrimSpace(p.cfg.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint, err := listenEndpoint(p.cfg, stream)
	if err != nil {
		return nil, err
	}

	conn, resp, err := p.dialer.DialContext(ctx, endpoint, http.Header{"Authorization": {"Token " + key}})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial deepgram listen socket (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial deepgram listen socket: %w", err)
	}
	p.log.Debug().Str("model", p.cfg.Model).Int("sample_rate", stream.SampleRate).Msg("listen socket open")

	session := newSocketSession(conn, p.log, p.cfg.KeepAlive)
	session.run()
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.ended:
		}
	}()
	return session, nil
}

// listenEndpoint turns the REST base URL into the websocket listen URL with
// the audio format and recognition options in its query.
func listenEndpoint(cfg Config, stream ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	if rest, ok := strings.CutPrefix(base, "https://"); ok {
		base = "wss://" + rest
	} else if rest, ok := strings.CutPrefix(base, "http://"); ok {
		base = "ws://" + rest
	}

	endpoint, err := url.Parse(strings.TrimRight(base, "/") + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	encoding := stream.Encoding
	if encoding == "" {
		encoding = "linear16"
	}
	rate := stream.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	channels := stream.Channels
	if channels <= 0 {
		channels = 1
	}

	q := url.Values{
		"model":           {cfg.Model},
		"encoding":        {encoding},
		"sample_rate":     {strconv.Itoa(rate)},
		"channels":        {strconv.Itoa(channels)},
		"interim_results": {strconv.FormatBool(stream.InterimResults)},
		"smart_format":    {strconv.FormatBool(cfg.SmartFormat)},
		"punctuate":       {"true"},
	}
	if cfg.Endpointing > 0 {
		q.Set("endpointing", strconv.FormatInt(cfg.Endpointing.Milliseconds(), 10))
	}
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}
