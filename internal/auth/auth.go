// Package auth identifies the caller from the bearer token the IDE client
// forwards. Tokens are JWTs whose subject is the user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no Authorization header is present.
	ErrMissingToken = errors.New("missing Authorization header")
	// ErrInvalidToken is returned for malformed, unverifiable or expired tokens.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Caller is the authenticated identity of a request.
type Caller struct {
	UserID string
	Email  string
	// Token is the raw bearer token, forwarded when fetching private attachments.
	Token string
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 tokens. With an empty secret, signatures are
// not checked; expiry and subject still are. That mode is for local
// development only.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Verifying reports whether signatures are checked.
func (a *Authenticator) Verifying() bool {
	return len(a.secret) > 0
}

// Authenticate parses token and returns the caller it names.
func (a *Authenticator) Authenticate(token string) (*Caller, error) {
	claims := &Claims{}
	var err error
	if a.Verifying() {
		_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.secret, nil
		})
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(token, claims)
		if err == nil && claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			err = jwt.ErrTokenExpired
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return &Caller{UserID: claims.Subject, Email: strings.TrimSpace(claims.Email), Token: token}, nil
}

// Generate signs a token for userID. It is used by the devtoken command and
// tests.
func (a *Authenticator) Generate(userID, email string, ttl time.Duration) (string, error) {
	if !a.Verifying() {
		return "", errors.New("signing secret required")
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id required")
	}
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ExtractBearer extracts the token from the Authorization header.
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: invalid Authorization header format", ErrInvalidToken)
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("%w: unsupported authorization scheme", ErrInvalidToken)
	}
	return strings.TrimSpace(parts[1]), nil
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx, or nil.
func CallerFrom(ctx context.Context) *Caller {
	c, _ := ctx.Value(callerKey{}).(*Caller)
	return c
}
