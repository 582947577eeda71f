package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// for single-host deployments where no Postgres is reachable.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "audit: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "audit: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS answer_audit (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	intent      TEXT NOT NULL DEFAULT 'unknown',
	tiers_used  TEXT NOT NULL DEFAULT '',
	hit_count   INTEGER NOT NULL DEFAULT 0,
	confidence  TEXT NOT NULL,
	fail_closed INTEGER NOT NULL DEFAULT 0,
	elapsed_ms  INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_answer_audit_created_at ON answer_audit(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_answer_audit_fail_closed ON answer_audit(fail_closed);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "audit: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Record(ctx context.Context, e *Entry) error {
	id := e.ID
	if id == "" {
		id = newEntryID()
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO answer_audit (id, question, intent, tiers_used, hit_count, confidence, fail_closed, elapsed_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.Question, e.Intent, joinTiers(e.TiersUsed), e.HitCount, string(e.Confidence), e.FailClosed, e.ElapsedMS, created,
	)
	return eris.Wrap(err, "audit: insert entry")
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, intent, tiers_used, hit_count, confidence, fail_closed, elapsed_ms, created_at FROM answer_audit ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "audit: query recent")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var tiers, confidence string
		if err := rows.Scan(&e.ID, &e.Question, &e.Intent, &tiers, &e.HitCount, &confidence, &e.FailClosed, &e.ElapsedMS, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "audit: scan entry")
		}
		e.TiersUsed = splitTiers(tiers)
		e.Confidence = confidenceFrom(confidence)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "audit: iterate entries")
	}
	return entries, nil
}
