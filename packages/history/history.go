// Package history records the requests hitwire sends so `hitwire history`
// can list them later. A plain path opens a local SQLite file; a
// postgres:// URL stores entries in PostgreSQL instead.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	// register the "postgres" and "sqlite3" database drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Get when no entry has the given ID.
var ErrNotFound = errors.New("history entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id          TEXT PRIMARY KEY,
	created_at  BIGINT NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	request_id  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS requests_created_at ON requests (created_at);
`

// Entry is one recorded request
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	StatusCode int       `json:"statusCode,omitempty"`
	DurationMs int64     `json:"durationMs"`
	RequestID  string    `json:"requestId,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Store is a SQL-backed history
type Store struct {
	db           *sql.DB
	dialect      dialect
	queryTimeout time.Duration
}

// Open opens or creates the history at path. A "postgres://" or
// "postgresql://" URL selects PostgreSQL. Anything else is a SQLite file; a
// "sqlite://" or "sqlite:" prefix is accepted and stripped.
func Open(path string) (*Store, error) {
	d, dsn := parseDSN(path)
	if dsn == "" {
		return nil, fmt.Errorf("history path is empty")
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if d.driver == sqliteDialect.driver {
		// Serialize writers; concurrent bench runs share one store
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:           db,
		dialect:      d,
		queryTimeout: 5 * time.Second,
	}

	ctx, cancel := s.context(context.Background())
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	return s, nil
}

// dialect holds what differs between the supported databases
type dialect struct {
	driver string
	// tiebreak orders entries recorded in the same nanosecond
	tiebreak string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var (
	sqliteDialect   = dialect{driver: "sqlite3", tiebreak: "rowid DESC"}
	postgresDialect = dialect{driver: "postgres", tiebreak: "id DESC", numbered: true}
)

func parseDSN(path string) (dialect, string) {
	path = strings.TrimSpace(path)
	switch {
	case strings.HasPrefix(path, "postgres://"), strings.HasPrefix(path, "postgresql://"):
		return postgresDialect, path
	case strings.HasPrefix(path, "sqlite://"):
		return sqliteDialect, strings.TrimPrefix(path, "sqlite://")
	default:
		return sqliteDialect, strings.TrimPrefix(path, "sqlite:")
	}
}

// rebind rewrites ? placeholders for the dialect.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.queryTimeout)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores e, assigning an ID and time when they are unset, and returns
// the stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	ctx, cancel := s.context(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		s.dialect.rebind(`INSERT INTO requests (id, created_at, method, url, status_code, duration_ms, request_id, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.Time.UnixNano(), e.Method, e.URL, e.StatusCode, e.DurationMs, e.RequestID, e.Error,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record history entry: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	ctx, cancel := s.context(ctx)
	defer cancel()

	query := `SELECT id, created_at, method, url, status_code, duration_ms, request_id, error
		FROM requests ORDER BY created_at DESC, ` + s.dialect.tiebreak
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Get returns the entry with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	ctx, cancel := s.context(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT id, created_at, method, url, status_code, duration_ms, request_id, error
		 FROM requests WHERE id = ?`), id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx, cancel := s.context(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM requests`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e         Entry
		createdAt int64
	)
	err := row.Scan(&e.ID, &createdAt, &e.Method, &e.URL, &e.StatusCode, &e.DurationMs, &e.RequestID, &e.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("failed to scan row: %w", err)
	}
	e.Time = time.Unix(0, createdAt)
	return e, nil
}
