package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smartnotes/internal/ports"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{}, zerolog.Nop())
	if p.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", p.cfg.APIBaseURL)
	}
	if p.cfg.Model != "nova-2" || p.cfg.KeepAlive != 8*time.Second {
		t.Fatalf("unexpected defaults: %+v", p.cfg)
	}
}

func TestProviderStartStreamingRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: " "}, zerolog.Nop())
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestListenEndpointDefaults(t *testing.T) {
	t.Parallel()

	url, err := listenEndpoint(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"wss://api.deepgram.com/v1/listen",
		"encoding=linear16",
		"sample_rate=16000",
		"channels=1",
		"punctuate=true",
	} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in url: %s", want, url)
		}
	}
	if strings.Contains(url, "endpointing") {
		t.Fatalf("endpointing should be omitted by default: %s", url)
	}
}

func TestListenEndpointWithOptions(t *testing.T) {
	t.Parallel()

	url, err := listenEndpoint(
		Config{APIBaseURL: "http://localhost:8080/v1/", Model: "m", Language: "en-US", SmartFormat: true, Endpointing: 300 * time.Millisecond},
		ports.StreamingConfig{Encoding: "linear16", SampleRate: 8000, Channels: 2, InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"ws://localhost:8080/v1/listen",
		"language=en-US",
		"smart_format=true",
		"interim_results=true",
		"endpointing=300",
		"sample_rate=8000",
	} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in url: %s", want, url)
		}
	}
}

func TestListenEndpointInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := listenEndpoint(Config{APIBaseURL: ":// bad"}, ports.StreamingConfig{})
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestProviderRejectsBadKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	p := NewProvider(Config{APIKey: "wrong", APIBaseURL: server.URL}, zerolog.Nop())
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}
