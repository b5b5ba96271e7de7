package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
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
  id          VARCHAR(64)  NOT NULL PRIMARY KEY,
  tool        VARCHAR(64)  NOT NULL,
  kind        VARCHAR(32)  NOT NULL,
  score       DOUBLE       NULL,
  category    VARCHAR(64)  NOT NULL DEFAULT '-',
  status      VARCHAR(16)  NOT NULL,
  error_kind  VARCHAR(32)  NOT NULL DEFAULT '-',
  duration_ms BIGINT       NOT NULL DEFAULT 0,
  created_at  DATETIME(3)  NOT NULL,
  INDEX idx_runs_tool_created (tool, created_at)
) ENGINE=InnoDB;`
	_, err := db.ExecContext(ctx, q)
	return err
}
