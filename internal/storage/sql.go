package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/campusbot/internal/models"
)

// Supported database/sql drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// SQLStorage implements Storage on database/sql, backed by SQLite or PostgreSQL.
type SQLStorage struct {
	db     *sql.DB
	driver string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLStorage, error) {
	return NewSQLStorage(DriverSQLite, dbPath)
}

// NewSQLStorage opens a database for driver (sqlite3 or postgres) and initializes the schema.
// For sqlite3, dsn is a file path.
func NewSQLStorage(driver, dsn string) (*SQLStorage, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		schema = sqliteSchema
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_foreign_keys=on"
		}
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	} else if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLStorage{db: db, driver: driver}, nil
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		category TEXT NOT NULL,
		keywords TEXT NOT NULL DEFAULT '[]',
		usage_count INTEGER NOT NULL DEFAULT 0,
		success_rate REAL NOT NULL DEFAULT 0,
		provenance TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		source_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_knowledge_active_category ON knowledge_entries(active, category);
	CREATE INDEX IF NOT EXISTS idx_knowledge_source_ref ON knowledge_entries(source_ref);

	CREATE TABLE IF NOT EXISTS learning_patterns (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		data TEXT NOT NULL,
		data_key TEXT NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		last_seen TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_patterns_type_key ON learning_patterns(type, data_key);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		intent TEXT NOT NULL DEFAULT '',
		confidence REAL,
		source TEXT NOT NULL DEFAULT '',
		knowledge_id TEXT NOT NULL DEFAULT '',
		latency_ms INTEGER,
		rating INTEGER,
		is_error BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	CREATE INDEX IF NOT EXISTS idx_messages_role_created ON messages(role, created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		rating INTEGER,
		comment TEXT NOT NULL DEFAULT '',
		processed BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	`

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		category TEXT NOT NULL,
		keywords TEXT NOT NULL DEFAULT '[]',
		usage_count INTEGER NOT NULL DEFAULT 0,
		success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		provenance TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		source_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_knowledge_active_category ON knowledge_entries(active, category);
	CREATE INDEX IF NOT EXISTS idx_knowledge_source_ref ON knowledge_entries(source_ref);

	CREATE TABLE IF NOT EXISTS learning_patterns (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		data TEXT NOT NULL,
		data_key TEXT NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 0,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_seen TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_patterns_type_key ON learning_patterns(type, data_key);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		intent TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION,
		source TEXT NOT NULL DEFAULT '',
		knowledge_id TEXT NOT NULL DEFAULT '',
		latency_ms BIGINT,
		rating INTEGER,
		is_error BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	CREATE INDEX IF NOT EXISTS idx_messages_role_created ON messages(role, created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		message_id TEXT NOT NULL DEFAULT '',
		rating INTEGER,
		comment TEXT NOT NULL DEFAULT '',
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);
	`

// Driver returns the database/sql driver name in use.
func (s *SQLStorage) Driver() string {
	return s.driver
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStorage) rebind(query string) string {
	if s.driver != DriverPostgres {
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

func (s *SQLStorage) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStorage) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStorage) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Stats counts rows across all tables concurrently.
func (s *SQLStorage) Stats(ctx context.Context) (*models.Stats, error) {
	var st models.Stats
	g, gctx := errgroup.WithContext(ctx)
	counts := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{&st.KnowledgeEntries, `SELECT COUNT(*) FROM knowledge_entries`, nil},
		{&st.ActiveEntries, `SELECT COUNT(*) FROM knowledge_entries WHERE active = ?`, []any{true}},
		{&st.LearnedEntries, `SELECT COUNT(*) FROM knowledge_entries WHERE provenance = ?`, []any{string(models.ProvenanceLearned)}},
		{&st.Conversations, `SELECT COUNT(*) FROM conversations`, nil},
		{&st.Messages, `SELECT COUNT(*) FROM messages`, nil},
		{&st.Feedback, `SELECT COUNT(*) FROM feedback`, nil},
		{&st.Patterns, `SELECT COUNT(*) FROM learning_patterns`, nil},
	}
	for _, c := range counts {
		g.Go(func() error {
			if err := s.queryRow(gctx, c.query, c.args...).Scan(c.dest); err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var avg sql.NullFloat64
		if err := s.queryRow(gctx, `SELECT AVG(rating) FROM feedback WHERE rating IS NOT NULL`).Scan(&avg); err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		st.AverageRating = avg.Float64
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Close closes the database.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
