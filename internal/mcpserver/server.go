// Package mcpserver exposes the notes library as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"smartnotes/internal/domain"
	"smartnotes/internal/store"
)

const defaultLimit = 20

// Library is the read side of the recordings store.
type Library interface {
	Get(ctx context.Context, id string) (domain.Recording, error)
	List(ctx context.Context, limit int) ([]domain.Recording, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Recording, error)
}

type tools struct {
	lib Library
	log zerolog.Logger
}

// New registers the notes tools on a fresh MCP server.
func New(lib Library, version string, logger zerolog.Logger) *server.MCPServer {
	t := &tools{lib: lib, log: logger.With().Str("component", "mcp").Logger()}

	s := server.NewMCPServer("smartnotes", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_recordings",
		mcp.WithDescription("List saved voice notes, newest first. Returns id, title, date, duration and summary for each."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes to return (default 20).")),
	), t.listRecordings)

	s.AddTool(mcp.NewTool("get_recording",
		mcp.WithDescription("Get one voice note with its full transcript, summary and action items."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id from list_recordings.")),
	), t.getRecording)

	s.AddTool(mcp.NewTool("search_recordings",
		mcp.WithDescription("Find voice notes whose title, transcript or summary contain the query text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes to return (default 20).")),
	), t.searchRecordings)

	return s
}

// ServeStdio runs s on stdin and stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// noteSummary is the list form of a recording; transcripts are left out to
// keep listings small.
type noteSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	CreatedAt   string   `json:"createdAt"`
	Duration    string   `json:"duration"`
	Starred     bool     `json:"starred"`
	Summary     string   `json:"summary"`
	ActionItems []string `json:"actionItems"`
}

func summarize(recs []domain.Recording) []noteSummary {
	out := make([]noteSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, noteSummary{
			ID:          rec.ID,
			Title:       rec.Title,
			CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
			Duration:    domain.FormatElapsed(rec.Duration),
			Starred:     rec.Starred,
			Summary:     rec.Summary,
			ActionItems: rec.ActionItems,
		})
	}
	return out
}

func (t *tools) listRecordings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs, err := t.lib.List(ctx, req.GetInt("limit", defaultLimit))
	if err != nil {
		t.log.Error().Err(err).Msg("list_recordings failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to list notes: %v", err)), nil
	}
	return jsonResult(summarize(recs))
}

func (t *tools) getRecording(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := t.lib.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no note with id %q", id)), nil
	}
	if err != nil {
		t.log.Error().Err(err).Str("id", id).Msg("get_recording failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to load note: %v", err)), nil
	}
	return jsonResult(rec)
}

func (t *tools) searchRecordings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	recs, err := t.lib.Search(ctx, query, req.GetInt("limit", defaultLimit))
	if err != nil {
		t.log.Error().Err(err).Str("query", query).Msg("search_recordings failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to search notes: %v", err)), nil
	}
	return jsonResult(summarize(recs))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
