// Package auth holds the authenticated-user identity model. Clients present
// an opaque bearer token; only its HMAC-SHA256 hash is stored server-side.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when a bearer token does not match any active user.
var ErrUnauthorized = errors.New("unauthorized")

// User is an authenticated identity with its group memberships resolved.
type User struct {
	ID       string
	Email    string
	Name     string
	IsStaff  bool
	GroupIDs []string
}

// Repository provides lookup of users by their token hash.
type Repository interface {
	// FindByTokenHash returns the active user whose token hashes to the given
	// hex digest, with group memberships populated. Returns ErrUnauthorized
	// when no such user exists.
	FindByTokenHash(ctx context.Context, hash string) (*User, error)
}

// HashToken computes the hex-encoded HMAC-SHA256 of a bearer token under the
// given pepper. The same function is used at seed time and at request time.
func HashToken(token string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
