package feed

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 2 * time.Minute

// tokenSource mints short-lived HS256 device tokens for feed requests. Tokens
// are cached until shortly before expiry so repeated poll cycles do not sign a
// fresh token each time.
type tokenSource struct {
	deviceID string
	secret   []byte
	now      func() time.Time

	mu      sync.Mutex
	cached  string
	expires time.Time
}

func newTokenSource(deviceID, secret string) (*tokenSource, error) {
	if deviceID == "" {
		return nil, errors.New("feed client: device id is required")
	}
	if secret == "" {
		return nil, errors.New("feed client: device secret is required")
	}
	return &tokenSource{
		deviceID: deviceID,
		secret:   []byte(secret),
		now:      time.Now,
	}, nil
}

func (s *tokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != "" && now.Before(s.expires.Add(-15*time.Second)) {
		return s.cached, nil
	}

	expires := now.Add(tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   s.deviceID,
		Issuer:    "keepsync",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	s.cached = signed
	s.expires = expires
	return signed, nil
}
