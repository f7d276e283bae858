package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrMissingAPIKey = errors.New("gemini API key not set: set GEMINI_API_KEY or add api_key to the [gemini] config section")

const (
	summaryPrompt = "Summarize the following voice note in a few short paragraphs. " +
		"Keep names, numbers and decisions.\n\n"
	actionItemsPrompt = "List the action items in the following summary, one per line, " +
		"without numbering. Reply with NONE if there are none.\n\n"
	diarizePrompt = "Rewrite the following transcript as a dialogue, prefixing each turn " +
		"with \"Speaker 1:\", \"Speaker 2:\" and so on. Do not change the words.\n\n"
)

// Config controls the generateContent client.
type Config struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Timeout    time.Duration
}

// Summarizer implements ports.Summarizer against the Gemini REST API.
type Summarizer struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func NewSummarizer(cfg Config, logger zerolog.Logger) *Summarizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Summarizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.With().Str("component", "gemini").Logger(),
	}
}

func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	return s.generate(ctx, summaryPrompt+text)
}

// ExtractActionItems asks for one item per line and strips list markers.
func (s *Summarizer) ExtractActionItems(ctx context.Context, summary string) ([]string, error) {
	reply, err := s.generate(ctx, actionItemsPrompt+summary)
	if err != nil {
		return nil, err
	}
	return parseActionItems(reply), nil
}

func (s *Summarizer) Diarize(ctx context.Context, text string) (string, error) {
	return s.generate(ctx, diarizePrompt+text)
}

func (s *Summarizer) generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(s.cfg.APIBaseURL, "/") + "/models/" + url.PathEscape(s.cfg.Model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.cfg.APIKey)

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Gemini API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	s.log.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(started)).Msg("generateContent")

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var apiResp generateResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing Gemini response: %w", err)
	}

	var out strings.Builder
	if len(apiResp.Candidates) > 0 {
		for _, p := range apiResp.Candidates[0].Content.Parts {
			out.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		if apiResp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked the prompt: %s", apiResp.PromptFeedback.BlockReason)
		}
		return "", errors.New("empty response from Gemini API")
	}
	return text, nil
}

func parseActionItems(reply string) []string {
	items := []string{}
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		line = trimNumbering(line)
		if line == "" || strings.EqualFold(line, "none") {
			continue
		}
		items = append(items, line)
	}
	return items
}

// trimNumbering drops a leading "1." or "2)" marker.
func trimNumbering(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}
