package postgres

import (
	"errors"
	"fmt"

	"github.com/NordCoder/posecoach/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const codeUniqueViolation = "23505"

var (
	ErrNotFound = domain.ErrNotFound
	ErrConflict = domain.ErrDuplicate
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// wrapErr classifies a driver error: no rows becomes ErrNotFound, a unique
// violation becomes ErrConflict, anything else is a persistence failure.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
	}
}
