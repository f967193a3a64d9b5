package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
	Now           func() time.Time
}

// accessClaims carries the denormalized profile so the soft middleware never
// has to touch storage.
type accessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	jwt.RegisteredClaims
}
