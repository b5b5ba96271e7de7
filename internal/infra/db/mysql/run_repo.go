package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save inserts a run; replaying the same id updates the outcome.
func (r *RunRepository) Save(ctx context.Context, run *assessment.Run) error {
	const q = `
INSERT INTO assessment_runs
(id, tool, kind, score, category, status, error_kind, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 score=VALUES(score), category=VALUES(category), status=VALUES(status),
 error_kind=VALUES(error_kind), duration_ms=VALUES(duration_ms);
`
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		run.ID, stringOrDash(run.Tool), stringOrDash(run.Kind), nullFloat(run.Score),
		stringOrDash(run.Category), stringOrDash(string(run.Status)), stringOrDash(run.ErrorKind),
		run.DurationMS, created,
	)
	return err
}

// Latest runs, newest first. An empty tool lists all tools.
func (r *RunRepository) Latest(ctx context.Context, tool string, limit int) ([]*assessment.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tool, kind, score, category, status, error_kind, duration_ms, created_at
FROM assessment_runs
WHERE (? = '' OR tool = ?) ORDER BY created_at DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tool, tool, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []*assessment.Run
	for rows.Next() {
		var run assessment.Run
		var score sql.NullFloat64
		var status string
		if err := rows.Scan(&run.ID, &run.Tool, &run.Kind, &score, &run.Category,
			&status, &run.ErrorKind, &run.DurationMS, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		run.Score = floatPtr(score)
		run.Status = assessment.RunStatus(status)
		run.Category = dashToEmpty(run.Category)
		run.ErrorKind = dashToEmpty(run.ErrorKind)
		out = append(out, &run)
	}
	return out, rows.Err()
}

// Summary counts runs since N days
func (r *RunRepository) Summary(ctx context.Context, tool string, sinceDays int) (assessment.RunSummary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total,
       COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END),0) AS failed,
       COALESCE(AVG(score),0) AS avg_score
FROM assessment_runs
WHERE (? = '' OR tool = ?) AND created_at >= ?;
`
	s := assessment.RunSummary{Tool: tool, SinceDays: sinceDays}
	if err := r.db.QueryRowContext(ctx, q, tool, tool, cut).Scan(&s.Total, &s.Failed, &s.AvgScore); err != nil {
		return assessment.RunSummary{}, err
	}
	s.AvgScore = math.Round(s.AvgScore*100) / 100
	return s, nil
}

// Check implements middleware.HealthChecker.
func (r *RunRepository) Check(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
