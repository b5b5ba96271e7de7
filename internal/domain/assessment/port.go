package assessment

import (
	"context"
	"time"
)

// SessionStore persists in-progress sessions so a user can resume them.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, tool, id string) (*Session, error)
	Delete(ctx context.Context, tool, id string) error
}

// RunRepository is the anonymous ledger of report generations.
type RunRepository interface {
	Save(ctx context.Context, r *Run) error
	Latest(ctx context.Context, tool string, limit int) ([]*Run, error)
	Summary(ctx context.Context, tool string, sinceDays int) (RunSummary, error)
}

// ArchiveStore keeps a copy of a report the user explicitly asked to save.
type ArchiveStore interface {
	PutReport(ctx context.Context, key string, body []byte) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
