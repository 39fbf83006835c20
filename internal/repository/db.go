package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// Dialect selects placeholder/DDL behavior for the underlying engine.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB bundles the handle repositories operate on. All repository methods take a
// context per call; nothing holds a session for process lifetime.
type DB struct {
	SQL     *sql.DB
	Pool    *pgxpool.Pool // nil for sqlite
	Dialect Dialect
}

// Open creates a pgx pool, wraps it for database/sql, and applies migrations.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dsn", cfg.DSN)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "docpipe"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	db := &DB{SQL: stdlib.OpenDBFromPool(pool), Pool: pool, Dialect: DialectPostgres}
	if err := Migrate(ctx, db); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("successfully connected to database")
	return db, nil
}

// OpenSQLite opens an embedded SQLite database (":memory:" or a file path) and
// applies migrations. Used by tests and the -inmem batch mode.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// The pipeline shares one handle across goroutines; a single connection
	// keeps modernc's in-memory databases coherent.
	sqldb.SetMaxOpenConns(1)
	if _, err := sqldb.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	db := &DB{SQL: sqldb, Dialect: DialectSQLite}
	if err := Migrate(ctx, db); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("opened sqlite database", "path", path)
	}
	return db, nil
}

// Close closes the database connections gracefully.
func (d *DB) Close(logger *slog.Logger) {
	if logger != nil {
		logger.Info("closing database connections")
	}
	if d.SQL != nil {
		if err := d.SQL.Close(); err != nil && logger != nil {
			logger.Error("failed to close sql handle", "error", err)
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// HealthCheck pings the database to catch DSN issues early.
func HealthCheck(ctx context.Context, d *DB, timeout time.Duration, logger *slog.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.Debug("pinging database")
	return d.SQL.PingContext(ctx)
}

// Migrate creates the schema if it does not exist. The DDL is the portable
// subset shared by Postgres and SQLite: ids and timestamps are TEXT, sets are
// JSON text, the extracted-content natural key is a hex digest column.
func Migrate(ctx context.Context, d *DB) error {
	for _, stmt := range schemaStatements {
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			return common.E(common.KindInternal, "repository.migrate", "apply schema", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id        TEXT PRIMARY KEY,
		email     TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id),
		state      TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS uploads (
		id         TEXT PRIMARY KEY,
		job_id     TEXT REFERENCES jobs(id),
		file_path  TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (job_id, file_path)
	)`,
	`CREATE TABLE IF NOT EXISTS extracted_contents (
		id          TEXT PRIMARY KEY,
		upload_id   TEXT NOT NULL REFERENCES uploads(id),
		content     TEXT NOT NULL,
		text_hash   TEXT NOT NULL,
		page_number INTEGER,
		UNIQUE (upload_id, text_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS actionable_lines (
		id               TEXT PRIMARY KEY,
		upload_id        TEXT NOT NULL REFERENCES uploads(id),
		job_id           TEXT REFERENCES jobs(id),
		content_id       TEXT REFERENCES extracted_contents(id),
		paraphrased_line TEXT NOT NULL,
		departments      TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS summarized_contents (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL,
		upload_id    TEXT REFERENCES uploads(id),
		department   TEXT NOT NULL,
		related_tags TEXT NOT NULL DEFAULT '',
		vector_id    TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_summarized_department ON summarized_contents(department)`,
	`CREATE INDEX IF NOT EXISTS idx_lines_job ON actionable_lines(job_id)`,
	`CREATE INDEX IF NOT EXISTS idx_contents_upload ON extracted_contents(upload_id)`,
}

// rebind converts ?-style placeholders to $N for Postgres. Queries are written
// with ? for SQLite compatibility.
func (d *DB) rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Fixed-width so lexicographic ORDER BY on the TEXT column matches time order
// (RFC3339Nano trims trailing zeros and would not).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
