package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/jurisearch/statuteqa/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection. Record
// runs once per answered question, so it is worth preparing.
var preparedStatements = map[string]string{
	"insert_audit": `INSERT INTO answer_audit (id, question, intent, tiers_used, hit_count, confidence, fail_closed, elapsed_ms, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"recent_audit": `SELECT id, question, intent, tiers_used, hit_count, confidence, fail_closed, elapsed_ms, created_at FROM answer_audit ORDER BY created_at DESC LIMIT $1`,
}

// NewPostgres creates a PostgresStore with its own connection pool. The
// audit log shares a database with the fulltext corpus in most deployments
// but never shares a pool with it.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "audit: parse postgres config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "audit: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "audit: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "audit: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS answer_audit (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	intent      TEXT NOT NULL DEFAULT 'unknown',
	tiers_used  TEXT NOT NULL DEFAULT '',
	hit_count   INTEGER NOT NULL DEFAULT 0,
	confidence  TEXT NOT NULL,
	fail_closed BOOLEAN NOT NULL DEFAULT false,
	elapsed_ms  BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_answer_audit_created_at ON answer_audit(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_answer_audit_fail_closed ON answer_audit(fail_closed);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "audit: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, e *Entry) error {
	id := e.ID
	if id == "" {
		id = newEntryID()
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO answer_audit (id, question, intent, tiers_used, hit_count, confidence, fail_closed, elapsed_ms, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, e.Question, e.Intent, joinTiers(e.TiersUsed), e.HitCount, string(e.Confidence), e.FailClosed, e.ElapsedMS, created,
	)
	return eris.Wrap(err, "audit: insert entry")
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, question, intent, tiers_used, hit_count, confidence, fail_closed, elapsed_ms, created_at FROM answer_audit ORDER BY created_at DESC LIMIT $1`,
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
