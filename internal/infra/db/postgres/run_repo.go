package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
)

type RunRepository struct{ db *sql.DB }

func NewRunRepository(db *sql.DB) *RunRepository { return &RunRepository{db: db} }

// Save insert/update a run
func (r *RunRepository) Save(ctx context.Context, run *assessment.Run) error {
	const q = `
INSERT INTO assessment_runs
(id, tool, kind, score, category, status, error_kind, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
 score = EXCLUDED.score,
 category = EXCLUDED.category,
 status = EXCLUDED.status,
 error_kind = EXCLUDED.error_kind,
 duration_ms = EXCLUDED.duration_ms;`

	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var score sql.NullFloat64
	if run.Score != nil {
		score = sql.NullFloat64{Float64: *run.Score, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		run.ID, stringOrDash(run.Tool), stringOrDash(run.Kind), score,
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
WHERE ($1 = '' OR tool = $1)
ORDER BY created_at DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, tool, limit)
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
		if score.Valid {
			v := score.Float64
			run.Score = &v
		}
		run.Status = assessment.RunStatus(status)
		run.Category = dashToEmpty(run.Category)
		run.ErrorKind = dashToEmpty(run.ErrorKind)
		out = append(out, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// Summary counts runs since N days
func (r *RunRepository) Summary(ctx context.Context, tool string, sinceDays int) (assessment.RunSummary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END),0),
       COALESCE(AVG(score),0)
FROM assessment_runs
WHERE ($1 = '' OR tool = $1) AND created_at >= $2;`
	s := assessment.RunSummary{Tool: tool, SinceDays: sinceDays}
	if err := r.db.QueryRowContext(ctx, q, tool, cut).Scan(&s.Total, &s.Failed, &s.AvgScore); err != nil {
		return assessment.RunSummary{}, err
	}
	s.AvgScore = math.Round(s.AvgScore*100) / 100
	return s, nil
}

func (r *RunRepository) Check(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
