package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/fpang/hoopcoach/internal/coachapi"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// SQLiteStore implements SessionStore on a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Compile-time interface check.
var _ SessionStore = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the history database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug().Str("path", path).Msg("History database opened")
	return s, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PutSession(ctx context.Context, rec *SessionRecord) error {
	touch(rec)

	var insights any
	if len(rec.Insights) > 0 {
		data, err := json.Marshal(rec.Insights)
		if err != nil {
			return fmt.Errorf("marshal insights: %w", err)
		}
		insights = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (
            id, local, file_name, file_bytes, server_url, state, progress, stage,
            error, insights_json, poll_count, created_at, updated_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            local = excluded.local,
            file_name = excluded.file_name,
            file_bytes = excluded.file_bytes,
            server_url = excluded.server_url,
            state = excluded.state,
            progress = excluded.progress,
            stage = excluded.stage,
            error = excluded.error,
            insights_json = excluded.insights_json,
            poll_count = excluded.poll_count,
            updated_at = excluded.updated_at,
            finished_at = excluded.finished_at`,
		rec.ID,
		rec.Local,
		rec.FileName,
		rec.FileBytes,
		rec.ServerURL,
		rec.State,
		rec.Progress,
		rec.Stage,
		nullableString(rec.Error),
		insights,
		rec.PollCount,
		rec.CreatedAt,
		rec.UpdatedAt,
		nullableInt(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("put session %s: %w", rec.ID, err)
	}
	log.Debug().Str("sessionId", rec.ID).Str("state", rec.State).Msg("Session persisted to SQLite")
	return nil
}

const selectColumns = `id, local, file_name, file_bytes, server_url, state, progress, stage,
    error, insights_json, poll_count, created_at, updated_at, finished_at`

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM sessions WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM sessions ORDER BY created_at DESC, updated_at DESC LIMIT ?",
		listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (*SessionRecord, error) {
	var (
		rec        SessionRecord
		errText    sql.NullString
		insights   sql.NullString
		finishedAt sql.NullInt64
	)
	err := r.Scan(
		&rec.ID, &rec.Local, &rec.FileName, &rec.FileBytes, &rec.ServerURL,
		&rec.State, &rec.Progress, &rec.Stage, &errText, &insights,
		&rec.PollCount, &rec.CreatedAt, &rec.UpdatedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Error = errText.String
	rec.FinishedAt = finishedAt.Int64
	if insights.Valid && insights.String != "" {
		var items []coachapi.Insight
		if err := json.Unmarshal([]byte(insights.String), &items); err != nil {
			return nil, fmt.Errorf("decode insights for %s: %w", rec.ID, err)
		}
		rec.Insights = items
	}
	return &rec, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
