package auth

import (
	"fmt"
	"time"

	"github.com/NordCoder/posecoach/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid  = fmt.Errorf("invalid token: %w", domain.ErrAuthentication)
	ErrTokenExpired  = fmt.Errorf("token expired: %w", domain.ErrAuthentication)
	ErrTokenMismatch = fmt.Errorf("refresh token mismatch: %w", domain.ErrAuthentication)
)

// TokenKind selects the signing domain. Access and refresh tokens use separate
// secrets, so a token of one kind never verifies as the other.
type TokenKind int

const (
	KindAccess TokenKind = iota + 1
	KindRefresh
)

func (k TokenKind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Identity is what a verified access token proves about the caller.
type Identity struct {
	ID       uuid.UUID `json:"_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
}

type Claims struct {
	Kind      TokenKind
	Identity  Identity
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenPair struct {
	Access         string
	AccessExpires  time.Time
	Refresh        string
	RefreshExpires time.Time
}
