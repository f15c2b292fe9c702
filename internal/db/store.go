package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jwulff/incision/internal/timeline"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	source TEXT NOT NULL,
	lyrics TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	total INTEGER NOT NULL DEFAULT 0,
	clean INTEGER NOT NULL DEFAULT 0,
	warn INTEGER NOT NULL DEFAULT 0,
	ghost INTEGER NOT NULL DEFAULT 0,
	fixed INTEGER NOT NULL DEFAULT 0,
	meanClarity REAL NOT NULL DEFAULT 0,
	elapsedMs INTEGER NOT NULL DEFAULT 0,
	createdAt REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
	runId TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	tokenId TEXT NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	startTime REAL NOT NULL,
	endTime REAL NOT NULL,
	score REAL NOT NULL,
	status TEXT NOT NULL,
	sectionName TEXT NOT NULL DEFAULT '',
	ghostReason TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (runId, tokenId)
);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	runId TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	tokenId TEXT NOT NULL,
	action TEXT NOT NULL,
	fromStatus TEXT NOT NULL,
	toStatus TEXT NOT NULL,
	score REAL NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	createdAt REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(createdAt);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(runId, createdAt);
`

// Store is the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "incision", "history.sqlite")
}

// Open opens or creates the database at path with WAL and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores a successful run and its tokens. It returns the run id.
func (s *Store) RecordRun(ctx context.Context, run Run, tokens []timeline.WordToken) (string, error) {
	run.Status = RunOK
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	defer tx.Rollback()

	id, err := s.insertRun(ctx, tx, run)
	if err != nil {
		return "", err
	}
	for i, tok := range tokens {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tokens (runId, tokenId, position, text, startTime, endTime, score, status, sectionName, ghostReason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, tok.ID, i, tok.Text, tok.StartTime, tok.EndTime, tok.Score,
			tok.Status.String(), tok.SectionName, tok.GhostReason); err != nil {
			return "", fmt.Errorf("insert token %s: %w", tok.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// RecordFailure stores a run that ended in a pipeline error.
func (s *Store) RecordFailure(ctx context.Context, run Run) (string, error) {
	run.Status = RunFailed
	return s.insertRun(ctx, s.db, run)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertRun(ctx context.Context, ex execer, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO runs (id, seq, source, lyrics, status, error, total, clean, warn, ghost, fixed, meanClarity, elapsedMs, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, int64(run.Seq), run.Source, run.Lyrics, run.Status, run.Error,
		run.Stats.Total, run.Stats.Clean, run.Stats.Warn, run.Stats.Ghost, run.Stats.Fixed,
		run.Stats.MeanClarity, run.Elapsed.Milliseconds(), unixFromTime(run.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return run.ID, nil
}

// RecordEvent stores an operator action and updates the token's stored state.
func (s *Store) RecordEvent(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (id, runId, tokenId, action, fromStatus, toStatus, score, detail, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.RunID, ev.TokenID, ev.Action, ev.From, ev.To, ev.Score, ev.Detail,
		unixFromTime(ev.CreatedAt)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE tokens SET status = ?, score = ?,
			ghostReason = CASE WHEN ? = 'flag' AND ? <> '' THEN ? ELSE ghostReason END
		WHERE runId = ? AND tokenId = ?
	`, ev.To, ev.Score, ev.Action, ev.Detail, ev.Detail, ev.RunID, ev.TokenID); err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if err := s.refreshStats(ctx, tx, ev.RunID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (s *Store) refreshStats(ctx context.Context, tx *sql.Tx, runID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE runs SET
			clean = (SELECT COUNT(*) FROM tokens WHERE runId = runs.id AND status = 'clean'),
			warn = (SELECT COUNT(*) FROM tokens WHERE runId = runs.id AND status = 'warn'),
			ghost = (SELECT COUNT(*) FROM tokens WHERE runId = runs.id AND status = 'ghost'),
			fixed = (SELECT COUNT(*) FROM tokens WHERE runId = runs.id AND status = 'fixed'),
			meanClarity = COALESCE((SELECT AVG(score) FROM tokens WHERE runId = runs.id), 0)
		WHERE id = ?
	`, runID)
	if err != nil {
		return fmt.Errorf("refresh run stats: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, source, lyrics, status, error, total, clean, warn, ghost, fixed, meanClarity, elapsedMs, createdAt
		FROM runs
		ORDER BY createdAt DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, source, lyrics, status, error, total, clean, warn, ghost, fixed, meanClarity, elapsedMs, createdAt
		FROM runs
		WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var seq, elapsedMs int64
	var createdAt float64
	if err := sc.Scan(&r.ID, &seq, &r.Source, &r.Lyrics, &r.Status, &r.Error,
		&r.Stats.Total, &r.Stats.Clean, &r.Stats.Warn, &r.Stats.Ghost, &r.Stats.Fixed,
		&r.Stats.MeanClarity, &elapsedMs, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Seq = uint64(seq)
	r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	r.CreatedAt = timeFromUnix(createdAt)
	return r, nil
}

// TokensForRun returns the stored tokens of a run in lyric order.
func (s *Store) TokensForRun(ctx context.Context, runID string) ([]timeline.WordToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tokenId, text, startTime, endTime, score, status, sectionName, ghostReason
		FROM tokens
		WHERE runId = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []timeline.WordToken
	for rows.Next() {
		var t timeline.WordToken
		var status string
		if err := rows.Scan(&t.ID, &t.Text, &t.StartTime, &t.EndTime, &t.Score,
			&status, &t.SectionName, &t.GhostReason); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		if t.Status, err = timeline.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("token %s: %w", t.ID, err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// EventsForRun returns a run's events, oldest first.
func (s *Store) EventsForRun(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, runId, tokenId, action, fromStatus, toStatus, score, detail, createdAt
		FROM events
		WHERE runId = ?
		ORDER BY createdAt ASC, rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var createdAt float64
		if err := rows.Scan(&e.ID, &e.RunID, &e.TokenID, &e.Action, &e.From, &e.To,
			&e.Score, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt = timeFromUnix(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
