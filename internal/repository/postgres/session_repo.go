package postgres

import (
	"context"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ session.Repo = (*SessionRepo)(nil)

type SessionRepo struct{ db *DB }

func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, user_id, pose_name, accuracy, feedback, landmarks, duration_seconds, occurred_at, created_at, updated_at`

const (
	qSessionInsert = `
INSERT INTO sessions (id, user_id, pose_name, accuracy, feedback, landmarks, duration_seconds, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at;`

	qSessionRecentByUser = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id = $1
ORDER BY occurred_at DESC, created_at DESC
LIMIT $2;`

	qSessionRecentGuest = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id IS NULL
ORDER BY occurred_at DESC, created_at DESC
LIMIT $1;`

	qSessionSinceByUser = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id = $1 AND occurred_at >= $2
ORDER BY occurred_at DESC, created_at DESC;`

	qSessionSinceGuest = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id IS NULL AND occurred_at >= $1
ORDER BY occurred_at DESC, created_at DESC;`
)

func (r *SessionRepo) Insert(ctx context.Context, rec *session.Record) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	var landmarks any
	if len(rec.Landmarks) > 0 {
		landmarks = []byte(rec.Landmarks)
	}
	err := r.db.execQueryer(ctx).QueryRow(ctx, qSessionInsert,
		rec.ID, ownerArg(rec.Owner), rec.Exercise, rec.Accuracy, rec.Feedback, landmarks, rec.Duration, rec.OccurredAt,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	return wrapErr("session insert", err)
}

func (r *SessionRepo) ListRecent(ctx context.Context, owner session.Owner, limit int) ([]session.Record, error) {
	if id, ok := session.OwnerID(owner); ok {
		return r.list(ctx, "session recent", qSessionRecentByUser, id, limit)
	}
	return r.list(ctx, "session recent", qSessionRecentGuest, limit)
}

func (r *SessionRepo) ListSince(ctx context.Context, owner session.Owner, since time.Time) ([]session.Record, error) {
	if id, ok := session.OwnerID(owner); ok {
		return r.list(ctx, "session since", qSessionSinceByUser, id, since)
	}
	return r.list(ctx, "session since", qSessionSinceGuest, since)
}

func (r *SessionRepo) list(ctx context.Context, op, q string, args ...any) ([]session.Record, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	out := make([]session.Record, 0)
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, rec)
	}
	return out, wrapErr(op, rows.Err())
}

func scanSession(row pgx.Row) (session.Record, error) {
	var (
		rec       session.Record
		owner     *uuid.UUID
		landmarks []byte
	)
	err := row.Scan(&rec.ID, &owner, &rec.Exercise, &rec.Accuracy, &rec.Feedback, &landmarks,
		&rec.Duration, &rec.OccurredAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return rec, err
	}
	rec.Owner = session.OwnerFrom(owner)
	rec.Landmarks = landmarks
	return rec, nil
}

// ownerArg maps an Owner onto the nullable user_id column.
func ownerArg(o session.Owner) *uuid.UUID {
	if id, ok := session.OwnerID(o); ok {
		return &id
	}
	return nil
}
