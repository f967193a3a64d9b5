package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no account matched, so a missing account
// costs as much as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("posecoach-dummy-password"), bcrypt.DefaultCost)

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

func DummyCompare(candidate string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(candidate))
}
