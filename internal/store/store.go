package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"smartnotes/internal/domain"
)

var ErrNotFound = errors.New("recording not found")

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	audio_path  TEXT NOT NULL DEFAULT '',
	transcript  TEXT NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	action_items TEXT NOT NULL DEFAULT '[]',
	diarized    TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	starred     INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS recordings_created_at ON recordings(created_at DESC);
`

const columns = `id, title, audio_path, transcript, summary, action_items, diarized, duration_ms, starred, created_at`

// Store is the SQLite recordings library.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-process database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts a recording or replaces the one with the same id.
func (s *Store) Save(ctx context.Context, rec domain.Recording) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("recording id is required")
	}
	items := rec.ActionItems
	if items == nil {
		items = []string{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode action items: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recordings (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			audio_path = excluded.audio_path,
			transcript = excluded.transcript,
			summary = excluded.summary,
			action_items = excluded.action_items,
			diarized = excluded.diarized,
			duration_ms = excluded.duration_ms,
			starred = excluded.starred
	`, rec.ID, rec.Title, rec.AudioPath, rec.Transcript, rec.Summary, string(itemsJSON),
		rec.Diarized, rec.Duration.Milliseconds(), boolToInt(rec.Starred), created.UnixMilli())
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Recording{}, ErrNotFound
	}
	return rec, err
}

// List returns the newest recordings first. A non-positive limit means all.
func (s *Store) List(ctx context.Context, limit int) ([]domain.Recording, error) {
	return s.query(ctx, `SELECT `+columns+` FROM recordings ORDER BY created_at DESC LIMIT ?`, sqlLimit(limit))
}

// Starred returns starred recordings, newest first.
func (s *Store) Starred(ctx context.Context, limit int) ([]domain.Recording, error) {
	return s.query(ctx, `SELECT `+columns+` FROM recordings WHERE starred = 1 ORDER BY created_at DESC LIMIT ?`, sqlLimit(limit))
}

// Search matches the query against title, transcript and summary.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]domain.Recording, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, limit)
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.query(ctx, `
		SELECT `+columns+` FROM recordings
		WHERE title LIKE ? ESCAPE '\' OR transcript LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\'
		ORDER BY created_at DESC LIMIT ?`,
		pattern, pattern, pattern, sqlLimit(limit))
}

func (s *Store) SetStarred(ctx context.Context, id string, starred bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recordings SET starred = ? WHERE id = ?`, boolToInt(starred), id)
	if err != nil {
		return fmt.Errorf("star recording: %w", err)
	}
	return requireRow(res)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return requireRow(res)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]domain.Recording, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	recs := []domain.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (domain.Recording, error) {
	var (
		rec        domain.Recording
		itemsJSON  string
		durationMS int64
		starred    int
		createdMS  int64
	)
	if err := row.Scan(&rec.ID, &rec.Title, &rec.AudioPath, &rec.Transcript, &rec.Summary,
		&itemsJSON, &rec.Diarized, &durationMS, &starred, &createdMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Recording{}, err
		}
		return domain.Recording{}, fmt.Errorf("scan recording: %w", err)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &rec.ActionItems); err != nil {
		return domain.Recording{}, fmt.Errorf("decode action items for %s: %w", rec.ID, err)
	}
	if rec.ActionItems == nil {
		rec.ActionItems = []string{}
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Starred = starred != 0
	rec.CreatedAt = time.UnixMilli(createdMS)
	return rec, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
