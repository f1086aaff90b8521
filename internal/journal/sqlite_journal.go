// Package journal keeps an append-only SQLite history of selection and
// navigation events. It is an audit trail; nothing in the rendezvous between
// agent and viewer reads from it.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"ctxview/internal/model"
)

const maxListLimit = 1000

type SQLiteJournal struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteJournal(path string, logger *zap.Logger) *SQLiteJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteJournal{path: path, logger: logger.Named("journal")}
}

func (j *SQLiteJournal) Init(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db != nil {
		return nil
	}
	if dir := filepath.Dir(j.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	db, err := sql.Open("sqlite", j.path)
	if err != nil {
		return err
	}
	// The tool-call process and the presentation server both append.
	for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA busy_timeout=5000;`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return err
		}
	}

	schema := `
CREATE TABLE IF NOT EXISTS events (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  file_path TEXT NOT NULL DEFAULT '',
  start_line INTEGER NOT NULL DEFAULT 0,
  end_line INTEGER NOT NULL DEFAULT 0,
  target TEXT NOT NULL DEFAULT '',
  text TEXT NOT NULL DEFAULT '',
  ts REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_kind_ts ON events(kind, ts);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	j.db = db
	return nil
}

// Append stores ev, assigning an id when it has none.
func (j *SQLiteJournal) Append(ctx context.Context, ev model.Event) (model.Event, error) {
	db, err := j.ensureDB(ctx)
	if err != nil {
		return model.Event{}, err
	}
	if strings.TrimSpace(ev.ID) == "" {
		ev.ID = uuid.NewString()
	}
	if !validKind(ev.Kind) {
		return model.Event{}, errors.New("unknown event kind: " + string(ev.Kind))
	}
	_, err = db.ExecContext(
		ctx,
		`INSERT INTO events(id, kind, file_path, start_line, end_line, target, text, ts)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		string(ev.Kind),
		ev.FilePath,
		ev.StartLine,
		ev.EndLine,
		ev.Target,
		ev.Text,
		ev.Timestamp,
	)
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// Record implements model.Recorder. Failures are logged and dropped.
func (j *SQLiteJournal) Record(ctx context.Context, ev model.Event) {
	if _, err := j.Append(context.WithoutCancel(ctx), ev); err != nil {
		j.logger.Warn("journal append failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// List returns up to limit events, newest first. An empty kind matches all.
func (j *SQLiteJournal) List(ctx context.Context, kind model.EventKind, limit int) ([]model.Event, error) {
	db, err := j.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT id, kind, file_path, start_line, end_line, target, text, ts FROM events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY ts DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Event, 0, limit)
	for rows.Next() {
		var ev model.Event
		var k string
		if err := rows.Scan(&ev.ID, &k, &ev.FilePath, &ev.StartLine, &ev.EndLine, &ev.Target, &ev.Text, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Kind = model.EventKind(k)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep events.
func (j *SQLiteJournal) Prune(ctx context.Context, keep int) (int64, error) {
	db, err := j.ensureDB(ctx)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	res, err := db.ExecContext(ctx,
		`DELETE FROM events WHERE id NOT IN (SELECT id FROM events ORDER BY ts DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func (j *SQLiteJournal) ensureDB(ctx context.Context) (*sql.DB, error) {
	if err := j.Init(ctx); err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, errors.New("journal db not initialized")
	}
	return j.db, nil
}

func validKind(k model.EventKind) bool {
	switch k {
	case model.EventSelectionPublished, model.EventSelectionConsumed, model.EventSelectionCleared,
		model.EventNavigationPublished, model.EventNavigationAcked:
		return true
	}
	return false
}

// ParseKind accepts the event kinds by name; the empty string means any.
func ParseKind(s string) (model.EventKind, error) {
	k := model.EventKind(strings.TrimSpace(s))
	if k == "" || validKind(k) {
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown event kind %q", model.ErrInvalidArgument, s)
}
