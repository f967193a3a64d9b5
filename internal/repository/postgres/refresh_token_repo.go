package postgres

import (
	"context"

	"github.com/NordCoder/posecoach/internal/domain/user"
	"github.com/google/uuid"
)

var _ user.RefreshSlot = (*RefreshTokenRepo)(nil)

// RefreshTokenRepo owns the single refresh-token slot on users.
type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTSet = `
UPDATE users
SET refresh_token_hash = $2, updated_at = NOW()
WHERE id = $1;`

	// The WHERE on the current hash is the serialization point for rotation:
	// of two concurrent swaps from the same value only one matches a row.
	qRTSwap = `
UPDATE users
SET refresh_token_hash = $3, updated_at = NOW()
WHERE id = $1 AND refresh_token_hash = $2;`
)

func (r *RefreshTokenRepo) Set(ctx context.Context, id uuid.UUID, hash *string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTSet, id, hash)
	if err != nil {
		return wrapErr("refresh slot set", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RefreshTokenRepo) Swap(ctx context.Context, id uuid.UUID, expected, next string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTSwap, id, expected, next)
	if err != nil {
		return false, wrapErr("refresh slot swap", err)
	}
	return tag.RowsAffected() == 1, nil
}
