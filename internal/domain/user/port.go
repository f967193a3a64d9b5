package user

import (
	"context"

	"github.com/google/uuid"
)

type Repo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindByIdentifier matches either identifier. Email is tried first, so
	// when the two point at different accounts the email owner wins.
	FindByIdentifier(ctx context.Context, email, username string) (*User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

// RefreshSlot is the single active refresh-token slot of an account.
type RefreshSlot interface {
	// Set overwrites the slot. A nil hash empties it.
	Set(ctx context.Context, id uuid.UUID, hash *string) error
	// Swap replaces expected with next only if expected is still stored.
	// It reports false when another writer got there first.
	Swap(ctx context.Context, id uuid.UUID, expected, next string) (bool, error)
}
