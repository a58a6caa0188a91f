package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

const SessionCookieName = "virtus_session"

var (
	ErrTokenExpired = errors.New("session expired")
	ErrTokenInvalid = errors.New("session invalid")
)

type Claims struct {
	jwt.RegisteredClaims
}

// Sessions issues and verifies signed session tokens. Revoked token ids are
// remembered until the token would have expired anyway.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewSessions(secret []byte, ttl time.Duration) *Sessions {
	return &Sessions{
		secret:  secret,
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
}

func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue returns a token for memberID and its expiry.
func (s *Sessions) Issue(memberID string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
			Subject:   memberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies raw and returns its claims.
func (s *Sessions) Parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Revoke invalidates the token with id until expires.
func (s *Sessions) Revoke(id string, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[id] = expires
}

// Cleanup forgets revocations of tokens that have expired.
func (s *Sessions) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
}
