// Package auth is the session layer: it issues and verifies the tokens that
// carry a caller's identity, and provides the middleware that resolves that
// identity for each request.
//
// AUTHENTICATION FLOW:
//  1. The user logs in (email/password or GitHub OAuth)
//  2. The server issues a signed JWT holding user id, email and role
//  3. The token travels back in an HttpOnly "token" cookie, or in an
//     "Authorization: Bearer" header for API clients
//  4. Middleware validates the token and puts a model.Identity in the context
//
// WHY PUT ROLE IN THE TOKEN?
// Delete permission depends on role (admins may delete any recipe). Carrying
// it in the signed claims lets the service decide without a user lookup. The
// cost is that a role change only takes effect when the token is re-issued,
// which the short lifetime keeps bounded.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/cookshare/internal/model"
)

const (
	issuer = "cookshare"

	// DefaultTokenTTL is how long a login stays valid.
	DefaultTokenTTL = 24 * time.Hour
)

// TokenService handles JWT creation and validation with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret.
// Generate a production secret with: openssl rand -hex 32
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: DefaultTokenTTL}, nil
}

// TTL is the lifetime of tokens produced by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" carries the user id.
type claims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Generate signs a token for the user with the default lifetime.
func (s *TokenService) Generate(user *model.User) (string, error) {
	return s.GenerateWithDuration(user, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to produce already-expired tokens.
func (s *TokenService) GenerateWithDuration(user *model.User, d time.Duration) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("auth: cannot issue token without a user id")
	}
	role := user.Role
	if role == "" {
		role = model.RoleUser
	}

	now := time.Now()
	c := claims{
		Email: user.Email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token and returns the identity it carries.
//
// The jwt library checks the signature, expiry and issuer. Restricting the
// accepted methods to HS256 blocks algorithm-confusion attacks ("alg": "none").
func (s *TokenService) Validate(tokenStr string) (*model.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	if !c.Role.Valid() {
		return nil, fmt.Errorf("auth: token has unknown role %q", c.Role)
	}

	return &model.Identity{
		UserID: c.Subject,
		Email:  c.Email,
		Role:   c.Role,
	}, nil
}
