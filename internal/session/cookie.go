package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/suPer8Hu/career-chat/internal/common"
)

const DefaultCookieName = "chat_session"

var ErrInvalidCookie = errors.New("invalid session cookie")

// Cookies signs session ids into HS256 tokens so clients cannot pick or
// forge another browser's session id.
type Cookies struct {
	name   string
	secret []byte
	ttl    time.Duration
}

func NewCookies(name, secret string, ttl time.Duration) *Cookies {
	if name == "" {
		name = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cookies{name: name, secret: []byte(secret), ttl: ttl}
}

func (c *Cookies) Name() string       { return c.name }
func (c *Cookies) TTL() time.Duration { return c.ttl }

// NewID mints a fresh session id.
func (c *Cookies) NewID() (string, error) {
	return common.NewULID()
}

func (c *Cookies) Sign(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Parse validates a signed cookie value and returns the session id in it.
func (c *Cookies) Parse(value string) (string, error) {
	if value == "" {
		return "", ErrInvalidCookie
	}
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", ErrInvalidCookie
	}
	if !common.IsULID(claims.Subject) {
		return "", ErrInvalidCookie
	}
	return claims.Subject, nil
}
