package auth

import (
	"time"

	"github.com/google/uuid"
)

type Tokens interface {
	// Ready is false when a signing secret is missing.
	Ready() bool
	IssueAccess(id Identity) (string, time.Time, error)
	IssueRefresh(userID uuid.UUID) (string, time.Time, error)
	Verify(token string, kind TokenKind) (*Claims, error)
}
