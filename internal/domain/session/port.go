package session

import (
	"context"
	"time"
)

type Repo interface {
	Insert(ctx context.Context, r *Record) error
	ListRecent(ctx context.Context, owner Owner, limit int) ([]Record, error)
	ListSince(ctx context.Context, owner Owner, since time.Time) ([]Record, error)
}

type ProgressRepo interface {
	Insert(ctx context.Context, p *Progress) error
}

// Events receives a record after it has been persisted.
type Events interface {
	SessionRecorded(ctx context.Context, r *Record) error
}
