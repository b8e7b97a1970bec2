package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"marketplace/internal/domain/auth"
)

// userKey is the context key under which the authenticated user is stored.
type userKey struct{}

// UserFromContext extracts the authenticated user, or nil for anonymous
// requests.
func UserFromContext(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey{}).(*auth.User)
	return u
}

// Security authenticates requests carrying an Authorization bearer token by
// HMAC-hashing the token and looking it up. Requests without the header pass
// through anonymously; individual handlers decide whether to require an
// identity.
type Security struct {
	users  auth.Repository
	pepper []byte
}

// NewSecurity creates a Security layer with the given user repository and
// HMAC pepper.
func NewSecurity(users auth.Repository, pepper []byte) *Security {
	return &Security{users: users, pepper: pepper}
}

// Middleware resolves the bearer token (when present) into a user stored in
// the request context. A token that resolves to no active user is rejected
// with 401 rather than downgraded to anonymous.
func (s *Security) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid authorization header", nil)
			return
		}

		user, err := s.users.FindByTokenHash(r.Context(), auth.HashToken(token, s.pepper))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid token", nil)
				return
			}
			writeInternalError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser wraps a handler that needs an authenticated identity.
func requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required", nil)
			return
		}
		next(w, r)
	}
}
