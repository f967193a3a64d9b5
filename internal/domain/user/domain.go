package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultAvatar = "/images/logo.svg"

type User struct {
	ID               uuid.UUID
	Username         string
	Email            string
	FullName         string
	PasswordHash     string
	Avatar           string
	CoverImage       string
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Public is the shape handed to clients and templates. It never carries the
// password hash or the refresh slot.
type Public struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar,omitempty"`
	CoverImage string    `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) Public() Public {
	return Public{
		ID:         u.ID.String(),
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// Normalize lowercases and trims a username or email before any lookup or insert.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
