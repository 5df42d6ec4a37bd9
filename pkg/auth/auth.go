// Package auth validates bearer credentials and resolves them to a
// connection identity. Token issuance belongs to the platform's auth
// service; this package only verifies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DarthNec/Fonana-sub001/pkg/logger"
	"github.com/DarthNec/Fonana-sub001/pkg/store"
)

var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
	ErrUnknownUser  = errors.New("auth: user no longer exists")
)

// Identity is the resolved identity of one connection. The snapshot is
// read once per connection attempt, not per message.
type Identity struct {
	UserID    string
	Nickname  string
	IsCreator bool
}

// Verifier checks HS256 bearer tokens and re-fetches the identity
// snapshot from the user store.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	users    store.UserStore
}

// NewVerifier builds a Verifier. issuer/audience are enforced when
// non-empty.
func NewVerifier(secret, issuer, audience string, users store.UserStore) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, audience: audience, users: users}
}

// Verify validates the credential and resolves it to an Identity. A
// structurally valid token whose subject no longer exists in the user
// store still fails.
func (v *Verifier) Verify(ctx context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrMissingToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	u, err := v.users.GetUser(ctx, sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("token_for_deleted_user", "user", sub)
			return Identity{}, ErrUnknownUser
		}
		return Identity{}, fmt.Errorf("user lookup: %w", err)
	}
	return Identity{UserID: u.ID, Nickname: u.Nickname, IsCreator: u.IsCreator}, nil
}

// Sign mints a short-lived HS256 token. Production tokens come from the
// platform auth service; this exists for tests and local tooling.
func Sign(secret, issuer, audience, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
