package postgres

import (
	"context"
	"errors"

	"github.com/NordCoder/posecoach/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, email, full_name, password_hash, avatar, cover_image, refresh_token_hash, created_at, updated_at`

const (
	qUserInsert = `
INSERT INTO users (id, username, email, full_name, password_hash, avatar, cover_image)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns + `;`

	qUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

	qUserByUsername = `
SELECT ` + userColumns + `
FROM users
WHERE username = $1;`

	qUserExists = `
SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2);`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	row := r.db.execQueryer(ctx).QueryRow(ctx, qUserInsert,
		u.ID, user.Normalize(u.Username), user.Normalize(u.Email), u.FullName, u.PasswordHash, u.Avatar, u.CoverImage)
	return wrapErr("user insert", scanUser(row, u))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.getOne(ctx, "user by id", qUserByID, id)
}

func (r *UserRepo) FindByIdentifier(ctx context.Context, email, username string) (*user.User, error) {
	if e := user.Normalize(email); e != "" {
		u, err := r.getOne(ctx, "user by email", qUserByEmail, e)
		if !errors.Is(err, ErrNotFound) {
			return u, err
		}
	}
	if n := user.Normalize(username); n != "" {
		return r.getOne(ctx, "user by username", qUserByUsername, n)
	}
	return nil, ErrNotFound
}

func (r *UserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := r.db.execQueryer(ctx).QueryRow(ctx, qUserExists, user.Normalize(username), user.Normalize(email)).Scan(&exists)
	return exists, wrapErr("user exists", err)
}

func (r *UserRepo) getOne(ctx context.Context, op, q string, arg any) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, q, arg), &u); err != nil {
		return nil, wrapErr(op, err)
	}
	return &u, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	return row.Scan(
		&out.ID, &out.Username, &out.Email, &out.FullName, &out.PasswordHash,
		&out.Avatar, &out.CoverImage, &out.RefreshTokenHash, &out.CreatedAt, &out.UpdatedAt,
	)
}
