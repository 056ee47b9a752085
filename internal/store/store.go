// Package store provides a SQLite-backed ingestion and query ledger for
// ragdesk. The vector index holds chunk embeddings; the ledger records which
// sources were ingested and what each query cost, so the stats endpoint and
// CLI can report totals that survive server restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Source is one ingested document (or raw-text submission) in the ledger.
type Source struct {
	// Name is the source name stored on every chunk (filename or "user_input").
	Name string `json:"name"`
	// FileType is the extraction format (txt, pdf, docx).
	FileType string `json:"file_type"`
	// Chunks is the cumulative number of chunks stored for this source.
	Chunks int `json:"chunks"`
	// Bytes is the size of the most recent payload.
	Bytes int64 `json:"bytes"`
	// Uploads counts how many times the source was ingested.
	Uploads int `json:"uploads"`
	// IngestedAt is when the source was last ingested.
	IngestedAt time.Time `json:"ingested_at"`
}

// QueryRecord is one answered question.
type QueryRecord struct {
	// Question is the user's query text.
	Question string `json:"question"`
	// Sources is the number of chunks passed to the generator.
	Sources int `json:"sources"`
	// PromptTokens and CompletionTokens are the model-reported usage.
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	// Cost is the estimated total cost in USD.
	Cost float64 `json:"cost"`
	// Duration is the end-to-end latency.
	Duration time.Duration `json:"duration"`
	// CreatedAt is when the query completed.
	CreatedAt time.Time `json:"created_at"`
}

// Totals aggregates the ledger for the stats endpoint.
type Totals struct {
	Sources   int     `json:"sources"`
	Chunks    int     `json:"chunks"`
	Queries   int     `json:"queries"`
	TotalCost float64 `json:"total_cost"`
}

// Ledger persists ingestion and query history. Implementations must be safe
// for concurrent use.
type Ledger interface {
	// RecordSource adds an ingestion of src. Repeat ingestions of the same
	// name accumulate chunk and upload counts.
	RecordSource(ctx context.Context, src Source) error
	// Sources returns all recorded sources, most recently ingested first.
	Sources(ctx context.Context) ([]Source, error)
	// DeleteSource removes one source. It reports whether a row existed.
	DeleteSource(ctx context.Context, name string) (bool, error)
	// ResetSources removes every source record. Query history is kept.
	ResetSources(ctx context.Context) error
	// RecordQuery appends one answered query.
	RecordQuery(ctx context.Context, rec QueryRecord) error
	// RecentQueries returns the most recent n queries, newest first.
	RecentQueries(ctx context.Context, n int) ([]QueryRecord, error)
	// Totals returns aggregate counts.
	Totals(ctx context.Context) (Totals, error)
	// Close releases any resources held by the ledger.
	Close() error
}

// SQLiteLedger is a Ledger backed by a local SQLite database.
type SQLiteLedger struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the ledger database.
// It resolves to ~/.ragdesk/ledger.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragdesk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "ledger.db"), nil
}

// Open opens (or creates) a SQLiteLedger at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteLedger, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Single writer connection avoids SQLITE_BUSY and keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)

	s := &SQLiteLedger{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteLedger) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sources (
    name         TEXT    PRIMARY KEY,
    file_type    TEXT    NOT NULL,
    chunks       INTEGER NOT NULL,
    bytes        INTEGER NOT NULL,
    uploads      INTEGER NOT NULL DEFAULT 1,
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (nanoseconds)
);
CREATE TABLE IF NOT EXISTS queries (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    question           TEXT    NOT NULL,
    sources            INTEGER NOT NULL,
    prompt_tokens      INTEGER NOT NULL,
    completion_tokens  INTEGER NOT NULL,
    cost               REAL    NOT NULL,
    duration_ms        INTEGER NOT NULL,
    created_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queries_created ON queries (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// RecordSource upserts src by name.
func (s *SQLiteLedger) RecordSource(ctx context.Context, src Source) error {
	at := src.IngestedAt
	if at.IsZero() {
		at = time.Now()
	}
	const q = `
INSERT INTO sources (name, file_type, chunks, bytes, uploads, ingested_at)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT(name) DO UPDATE SET
    file_type   = excluded.file_type,
    chunks      = sources.chunks + excluded.chunks,
    bytes       = excluded.bytes,
    uploads     = sources.uploads + 1,
    ingested_at = excluded.ingested_at`
	if _, err := s.db.ExecContext(ctx, q, src.Name, src.FileType, src.Chunks, src.Bytes, at.UnixNano()); err != nil {
		return fmt.Errorf("store: record source: %w", err)
	}
	return nil
}

// Sources returns every recorded source, newest first.
func (s *SQLiteLedger) Sources(ctx context.Context) ([]Source, error) {
	const q = `
SELECT name, file_type, chunks, bytes, uploads, ingested_at
FROM   sources
ORDER  BY ingested_at DESC, name ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var src Source
		var ts int64
		if err := rows.Scan(&src.Name, &src.FileType, &src.Chunks, &src.Bytes, &src.Uploads, &ts); err != nil {
			return nil, fmt.Errorf("store: sources scan: %w", err)
		}
		src.IngestedAt = time.Unix(0, ts)
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: sources rows: %w", err)
	}
	return out, nil
}

// DeleteSource removes the named source.
func (s *SQLiteLedger) DeleteSource(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("store: delete source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete source: %w", err)
	}
	return n > 0, nil
}

// ResetSources removes every source record.
func (s *SQLiteLedger) ResetSources(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sources`); err != nil {
		return fmt.Errorf("store: reset sources: %w", err)
	}
	return nil
}

// RecordQuery appends rec to the query history.
func (s *SQLiteLedger) RecordQuery(ctx context.Context, rec QueryRecord) error {
	at := rec.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	const q = `
INSERT INTO queries (question, sources, prompt_tokens, completion_tokens, cost, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		rec.Question, rec.Sources, rec.PromptTokens, rec.CompletionTokens,
		rec.Cost, rec.Duration.Milliseconds(), at.UnixNano(),
	); err != nil {
		return fmt.Errorf("store: record query: %w", err)
	}
	return nil
}

// RecentQueries returns the latest n queries, newest first.
func (s *SQLiteLedger) RecentQueries(ctx context.Context, n int) ([]QueryRecord, error) {
	const q = `
SELECT question, sources, prompt_tokens, completion_tokens, cost, duration_ms, created_at
FROM   queries
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent queries: %w", err)
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var r QueryRecord
		var ms, ts int64
		if err := rows.Scan(&r.Question, &r.Sources, &r.PromptTokens, &r.CompletionTokens, &r.Cost, &ms, &ts); err != nil {
			return nil, fmt.Errorf("store: recent queries scan: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		r.CreatedAt = time.Unix(0, ts)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent queries rows: %w", err)
	}
	return out, nil
}

// Totals aggregates sources and queries.
func (s *SQLiteLedger) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	const q = `
SELECT (SELECT COUNT(*)                FROM sources),
       (SELECT COALESCE(SUM(chunks), 0) FROM sources),
       (SELECT COUNT(*)                FROM queries),
       (SELECT COALESCE(SUM(cost), 0)   FROM queries)`
	if err := s.db.QueryRowContext(ctx, q).Scan(&t.Sources, &t.Chunks, &t.Queries, &t.TotalCost); err != nil {
		return Totals{}, fmt.Errorf("store: totals: %w", err)
	}
	return t, nil
}

// Close releases the database connection pool.
func (s *SQLiteLedger) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
