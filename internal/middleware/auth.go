package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mithix/backend/internal/models"
)

type contextKey string

const ctxAccountKey contextKey = "account"

// TokenValidator resolves a bearer token to an account id.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// AccountLookup loads the account named by a validated token.
type AccountLookup interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
}

// BearerAuth authenticates a JWT bearer token when one is present and sets
// the account into request context. Requests without an Authorization
// header pass through anonymously; a present but invalid token is rejected.
func BearerAuth(tokens TokenValidator, accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"message":"malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}

			id, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"message":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			acc, err := accounts.GetAccount(r.Context(), id)
			if err != nil {
				http.Error(w, `{"message":"Internal server error"}`, http.StatusInternalServerError)
				return
			}
			if acc == nil {
				http.Error(w, `{"message":"account no longer exists"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
		})
	}
}

// RequireAccount rejects requests that BearerAuth left anonymous.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if AccountFromCtx(r.Context()) == nil {
			http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminToken guards operator routes with a static bearer token. An empty
// token disables the route entirely.
func AdminToken(token string) func(http.Handler) http.Handler {
	want := hashKey(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
				return
			}
			got := hashKey(extractBearer(r))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountFromCtx returns the authenticated account or nil.
func AccountFromCtx(ctx context.Context) *models.Account {
	acc, _ := ctx.Value(ctxAccountKey).(*models.Account)
	return acc
}

// WithAccount returns a context carrying the given account.
func WithAccount(ctx context.Context, acc *models.Account) context.Context {
	return context.WithValue(ctx, ctxAccountKey, acc)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func hashKey(raw string) [32]byte {
	return sha256.Sum256([]byte(raw))
}
