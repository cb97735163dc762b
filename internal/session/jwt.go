package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the access tokens minted by the hosted auth service.
type Claims struct {
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

type userMetadata struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// JWTProvider verifies HS256 tokens with a shared secret.
type JWTProvider struct {
	secret   []byte
	issuer   string
	audience string

	listeners

	mu        sync.RWMutex
	signedOut map[string]time.Time
	now       func() time.Time
}

// NewJWTProvider creates a provider. Issuer and audience are checked only
// when non-empty.
func NewJWTProvider(secret, issuer, audience string) *JWTProvider {
	return &JWTProvider{
		secret:    []byte(secret),
		issuer:    issuer,
		audience:  audience,
		signedOut: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Resolve parses and validates the token.
func (p *JWTProvider) Resolve(_ context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims.Subject == "" {
		return nil, ErrNoSession
	}

	// Tokens issued before a sign-out stay revoked until they expire. iat has
	// second precision, so a token from the sign-out's own second is kept.
	p.mu.RLock()
	cutoff, revoked := p.signedOut[claims.Subject]
	p.mu.RUnlock()
	if revoked && (claims.IssuedAt == nil || claims.IssuedAt.Time.Before(cutoff)) {
		return nil, ErrNoSession
	}

	return &Session{
		Token: token,
		User: User{
			ID:        claims.Subject,
			Email:     claims.Email,
			FullName:  claims.UserMetadata.FullName,
			AvatarURL: claims.UserMetadata.AvatarURL,
		},
	}, nil
}

// Subscribe registers fn for session events.
func (p *JWTProvider) Subscribe(fn func(Event)) func() {
	return p.listeners.subscribe(fn)
}

// SignOut revokes tokens issued before the current second for the user.
func (p *JWTProvider) SignOut(_ context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	p.mu.Lock()
	p.signedOut[userID] = p.now().Truncate(time.Second)
	p.mu.Unlock()

	p.emit(Event{Type: EventSignedOut, UserID: userID})
	return nil
}

// Issue mints a token for the given user. Used by tooling and tests.
func (p *JWTProvider) Issue(u User, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		Email: u.Email,
		UserMetadata: userMetadata{
			FullName:  u.FullName,
			AvatarURL: u.AvatarURL,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if p.audience != "" {
		claims.Audience = jwt.ClaimStrings{p.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
