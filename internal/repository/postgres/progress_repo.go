package postgres

import (
	"context"

	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/google/uuid"
)

var _ session.ProgressRepo = (*ProgressRepo)(nil)

type ProgressRepo struct{ db *DB }

func NewProgressRepo(db *DB) *ProgressRepo { return &ProgressRepo{db: db} }

const qProgressInsert = `
INSERT INTO progress (id, user_id, accuracy, recorded_at)
VALUES ($1, $2, $3, $4);`

func (r *ProgressRepo) Insert(ctx context.Context, p *session.Progress) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.db.execQueryer(ctx).Exec(ctx, qProgressInsert, p.ID, ownerArg(p.Owner), p.Accuracy, p.Date)
	return wrapErr("progress insert", err)
}
