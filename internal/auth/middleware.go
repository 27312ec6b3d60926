package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/cookshare/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "token"

// contextKey is unexported so only this package can read or write the
// identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

var errNoToken = errors.New("auth: no token")

// RequireAuth rejects requests without a valid token with 401 and otherwise
// stores the caller's identity in the request context.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := IdentityFromRequest(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"authentication required"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth resolves the identity when a valid token is present and lets
// the request through either way. Handlers that need a caller still get a
// nil identity for anonymous requests and the service turns that into
// apperror.ErrUnauthenticated.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := IdentityFromRequest(r, tokens); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller's identity, or nil for anonymous
// requests.
//
//	id := auth.IdentityFromContext(r.Context())
//	if id == nil {
//	    // anonymous
//	}
func IdentityFromContext(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(identityKey).(*model.Identity)
	return id
}

// IdentityFromRequest validates the request's token. The Authorization
// header wins over the cookie when both are present.
func IdentityFromRequest(r *http.Request, tokens *TokenService) (*model.Identity, error) {
	token := bearerToken(r)
	if token == "" {
		if c, err := r.Cookie(CookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return nil, errNoToken
	}
	return tokens.Validate(token)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
