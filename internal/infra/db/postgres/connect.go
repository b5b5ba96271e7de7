package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the run ledger table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	const q = `
CREATE TABLE IF NOT EXISTS assessment_runs (
  id          VARCHAR(64)  PRIMARY KEY,
  tool        VARCHAR(64)  NOT NULL,
  kind        VARCHAR(32)  NOT NULL,
  score       DOUBLE PRECISION NULL,
  category    VARCHAR(64)  NOT NULL DEFAULT '-',
  status      VARCHAR(16)  NOT NULL,
  error_kind  VARCHAR(32)  NOT NULL DEFAULT '-',
  duration_ms BIGINT       NOT NULL DEFAULT 0,
  created_at  TIMESTAMPTZ  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_tool_created ON assessment_runs (tool, created_at);`
	_, err := db.ExecContext(ctx, q)
	return err
}

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func dashToEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}
