// Package journal keeps a SQLite record of every arbiter and controller
// decision so a session can be inspected after the fact.
package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/rafters-studio/motion-coordinator/internal/events"
)

// MemoryDSN keeps the journal in process memory only.
const MemoryDSN = ":memory:"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id     TEXT NOT NULL UNIQUE,
	kind         TEXT NOT NULL,
	source       TEXT NOT NULL,
	surface_id   TEXT,
	request_id   TEXT,
	load         INTEGER NOT NULL,
	load_limit   INTEGER NOT NULL,
	reason       TEXT,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS decision_log_kind ON decision_log(kind);
`

// #endregion schema

// #region entry
// Entry is one row of decision_log.
type Entry struct {
	Seq       int64         `json:"seq"`
	ID        string        `json:"id"`
	Kind      events.Kind   `json:"kind"`
	Source    events.Source `json:"source"`
	SurfaceID string        `json:"surface_id,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Load      int           `json:"load,omitempty"`
	Limit     int           `json:"limit,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// #endregion entry

// #region store
// Store appends decisions to SQLite. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	failed int
	logger zerolog.Logger
}

// Open opens (or creates) the journal at dsn and runs migrations.
func Open(dsn string, logger zerolog.Logger) (*Store, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	if dsn != MemoryDSN {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "journal").Logger(),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region record
// Record writes evt as a new entry and returns its id.
func (s *Store) Record(evt events.Event) (string, error) {
	at := evt.At
	if at.IsZero() {
		at = time.Now()
	}
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO decision_log (entry_id, kind, source, surface_id, request_id, load, load_limit, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		string(evt.Kind),
		string(evt.Source),
		nullIfEmpty(evt.SurfaceID),
		nullIfEmpty(evt.RequestID),
		evt.Load,
		evt.Limit,
		nullIfEmpty(evt.Reason),
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("record decision: %w", err)
	}
	return id, nil
}

// Observe implements events.Observer. Write failures are logged and counted,
// never returned to the component that emitted the event.
func (s *Store) Observe(evt events.Event) {
	if _, err := s.Record(evt); err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		s.logger.Error().Err(err).Str("kind", string(evt.Kind)).Msg("journal write failed")
	}
}

// Failures returns how many observed events could not be written.
func (s *Store) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// #endregion record

// #region queries
// List returns the most recent limit entries, oldest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Entry, error) {
	query := `SELECT seq, entry_id, kind, source, surface_id, request_id, load, load_limit, reason, created_at
		FROM decision_log ORDER BY seq DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                        Entry
			kind, source, createdAt  string
			surface, request, reason sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.ID, &kind, &source, &surface, &request, &e.Load, &e.Limit, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Kind = events.Kind(kind)
		e.Source = events.Source(source)
		e.SurfaceID = surface.String
		e.RequestID = request.String
		e.Reason = reason.String
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountByKind returns the number of entries per event kind.
func (s *Store) CountByKind() (map[events.Kind]int, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM decision_log GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count decisions: %w", err)
	}
	defer rows.Close()

	counts := make(map[events.Kind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[events.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// #endregion queries

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
