package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"smartnotes/internal/domain"
	"smartnotes/internal/store"
)

type fakeLibrary struct {
	recs      []domain.Recording
	err       error
	lastLimit int
}

func (f *fakeLibrary) Get(_ context.Context, id string) (domain.Recording, error) {
	if f.err != nil {
		return domain.Recording{}, f.err
	}
	for _, rec := range f.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.Recording{}, store.ErrNotFound
}

func (f *fakeLibrary) List(_ context.Context, limit int) ([]domain.Recording, error) {
	f.lastLimit = limit
	return f.recs, f.err
}

func (f *fakeLibrary) Search(_ context.Context, query string, limit int) ([]domain.Recording, error) {
	f.lastLimit = limit
	var out []domain.Recording
	for _, rec := range f.recs {
		if strings.Contains(rec.Transcript, query) {
			out = append(out, rec)
		}
	}
	return out, f.err
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return text.Text
}

func sample() *fakeLibrary {
	return &fakeLibrary{recs: []domain.Recording{
		{ID: "a", Title: "Standup", Transcript: "we shipped the release", Summary: "Shipped.", ActionItems: []string{"Tag it"}, Duration: 65 * time.Second},
		{ID: "b", Title: "Idea", Transcript: "a new garden layout", Summary: "Garden."},
	}}
}

func TestListRecordings(t *testing.T) {
	t.Parallel()

	lib := sample()
	tl := &tools{lib: lib, log: zerolog.Nop()}
	res, err := tl.listRecordings(context.Background(), call(map[string]any{"limit": 5}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if lib.lastLimit != 5 {
		t.Fatalf("expected limit 5, got %d", lib.lastLimit)
	}

	var notes []noteSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &notes); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(notes) != 2 || notes[0].ID != "a" || notes[0].Duration != "01:05" {
		t.Fatalf("unexpected notes: %+v", notes)
	}
}

func TestListRecordingsDefaultLimit(t *testing.T) {
	t.Parallel()

	lib := sample()
	tl := &tools{lib: lib, log: zerolog.Nop()}
	if _, err := tl.listRecordings(context.Background(), call(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lib.lastLimit != defaultLimit {
		t.Fatalf("expected default limit, got %d", lib.lastLimit)
	}
}

func TestGetRecording(t *testing.T) {
	t.Parallel()

	tl := &tools{lib: sample(), log: zerolog.Nop()}
	res, err := tl.getRecording(context.Background(), call(map[string]any{"id": "a"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rec domain.Recording
	if err := json.Unmarshal([]byte(resultText(t, res)), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec.Transcript != "we shipped the release" {
		t.Fatalf("unexpected recording: %+v", rec)
	}
}

func TestGetRecordingErrors(t *testing.T) {
	t.Parallel()

	tl := &tools{lib: sample(), log: zerolog.Nop()}

	res, _ := tl.getRecording(context.Background(), call(map[string]any{}))
	if !res.IsError {
		t.Fatalf("expected missing id error")
	}

	res, _ = tl.getRecording(context.Background(), call(map[string]any{"id": "zzz"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "no note") {
		t.Fatalf("expected not found error")
	}

	broken := &tools{lib: &fakeLibrary{err: errors.New("disk")}, log: zerolog.Nop()}
	res, _ = broken.getRecording(context.Background(), call(map[string]any{"id": "a"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "disk") {
		t.Fatalf("expected store error")
	}
}

func TestSearchRecordings(t *testing.T) {
	t.Parallel()

	tl := &tools{lib: sample(), log: zerolog.Nop()}
	res, err := tl.searchRecordings(context.Background(), call(map[string]any{"query": "garden"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var notes []noteSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &notes); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != "b" {
		t.Fatalf("unexpected notes: %+v", notes)
	}

	res, _ = tl.searchRecordings(context.Background(), call(map[string]any{}))
	if !res.IsError {
		t.Fatalf("expected missing query error")
	}
}

func TestNewRegistersTools(t *testing.T) {
	t.Parallel()

	s := New(sample(), "test", zerolog.Nop())
	reply := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, name := range []string{"list_recordings", "get_recording", "search_recordings"} {
		if !strings.Contains(string(data), `"`+name+`"`) {
			t.Fatalf("tool %q not listed: %s", name, data)
		}
	}
}
