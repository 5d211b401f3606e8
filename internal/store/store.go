// Package store provides a SQLite-backed persistence layer for biorag.
// It keeps two kinds of records: answered query runs (for the history
// command) and drug–target–disease triples extracted from evidence.
// Records survive process restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Run is a single answered query persisted for later review.
type Run struct {
	// ID is the database row identifier.
	ID int64
	// Query is the question that was asked.
	Query string
	// Summary is the generated answer text.
	Summary string
	// Citations are the source identifiers the answer cites.
	Citations []string
	// Flags are the degradation markers attached to the answer
	// (e.g. "no_evidence", "uncited").
	Flags []string
	// CreatedAt is when the run was persisted.
	CreatedAt time.Time
}

// Triple is one extracted drug–target–disease relation.
type Triple struct {
	// Drug is the therapeutic compound name.
	Drug string
	// Target is the molecular target (gene or protein).
	Target string
	// Disease is the condition the relation applies to.
	Disease string
	// Mechanism is a short free-text description of the interaction.
	Mechanism string
	// SourceID is the identifier of the passage the triple was extracted from.
	SourceID string
}

// ResultStore persists answered runs and extracted triples. Implementations
// must be safe for concurrent use.
type ResultStore interface {
	// SaveRun persists one answered query and returns its row ID.
	SaveRun(ctx context.Context, run *Run) (int64, error)
	// RecentRuns returns the most recent n runs, newest-first.
	RecentRuns(ctx context.Context, n int) ([]Run, error)
	// SaveTriples persists a batch of extracted triples.
	SaveTriples(ctx context.Context, triples []Triple) error
	// TriplesForDrug returns all stored triples mentioning the given drug.
	TriplesForDrug(ctx context.Context, drug string) ([]Triple, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a ResultStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.biorag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".biorag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    query        TEXT    NOT NULL,
    summary      TEXT    NOT NULL,
    citations    TEXT    NOT NULL,  -- JSON array of source identifiers
    flags        TEXT    NOT NULL,  -- JSON array of degradation markers
    created_at   INTEGER NOT NULL   -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_runs_created
    ON runs (created_at);

CREATE TABLE IF NOT EXISTS triples (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    drug         TEXT    NOT NULL,
    target       TEXT    NOT NULL,
    disease      TEXT    NOT NULL,
    mechanism    TEXT    NOT NULL DEFAULT '',
    source_id    TEXT    NOT NULL,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_triples_drug
    ON triples (drug);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveRun persists one answered query and returns its row ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) (int64, error) {
	citations, err := json.Marshal(emptyIfNil(run.Citations))
	if err != nil {
		return 0, fmt.Errorf("store: marshal citations: %w", err)
	}
	flags, err := json.Marshal(emptyIfNil(run.Flags))
	if err != nil {
		return 0, fmt.Errorf("store: marshal flags: %w", err)
	}

	const q = `INSERT INTO runs (query, summary, citations, flags, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, run.Query, run.Summary, string(citations), string(flags), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("store: save run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: save run id: %w", err)
	}
	return id, nil
}

// RecentRuns returns the most recent n runs, newest-first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, n int) ([]Run, error) {
	const q = `
SELECT id, query, summary, citations, flags, created_at
FROM   runs
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ts int64
		var citations, flags string
		if err := rows.Scan(&r.ID, &r.Query, &r.Summary, &citations, &flags, &ts); err != nil {
			return nil, fmt.Errorf("store: recent runs scan: %w", err)
		}
		if err := json.Unmarshal([]byte(citations), &r.Citations); err != nil {
			return nil, fmt.Errorf("store: unmarshal citations: %w", err)
		}
		if err := json.Unmarshal([]byte(flags), &r.Flags); err != nil {
			return nil, fmt.Errorf("store: unmarshal flags: %w", err)
		}
		r.CreatedAt = time.Unix(ts, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent runs rows: %w", err)
	}
	return runs, nil
}

// SaveTriples persists a batch of extracted triples in one transaction.
func (s *SQLiteStore) SaveTriples(ctx context.Context, triples []Triple) error {
	if len(triples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save triples begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `INSERT INTO triples (drug, target, disease, mechanism, source_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now().Unix()
	for _, t := range triples {
		if _, err := tx.ExecContext(ctx, q, t.Drug, t.Target, t.Disease, t.Mechanism, t.SourceID, now); err != nil {
			return fmt.Errorf("store: save triple: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: save triples commit: %w", err)
	}
	return nil
}

// TriplesForDrug returns all stored triples mentioning the given drug,
// matched case-insensitively.
func (s *SQLiteStore) TriplesForDrug(ctx context.Context, drug string) ([]Triple, error) {
	const q = `
SELECT drug, target, disease, mechanism, source_id
FROM   triples
WHERE  drug = ? COLLATE NOCASE
ORDER  BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, drug)
	if err != nil {
		return nil, fmt.Errorf("store: triples for drug: %w", err)
	}
	defer rows.Close()

	var triples []Triple
	for rows.Next() {
		var t Triple
		if err := rows.Scan(&t.Drug, &t.Target, &t.Disease, &t.Mechanism, &t.SourceID); err != nil {
			return nil, fmt.Errorf("store: triples scan: %w", err)
		}
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: triples rows: %w", err)
	}
	return triples, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// emptyIfNil normalizes a nil slice to an empty one so the stored JSON is
// always an array, never "null".
func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
