package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestCookies_SignParse(t *testing.T) {
	c := NewCookies("", "secret", time.Hour)
	if c.Name() != DefaultCookieName {
		t.Fatalf("unexpected cookie name %q", c.Name())
	}

	sid, err := c.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	signed, err := c.Sign(sid)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := c.Parse(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != sid {
		t.Fatalf("expected %q, got %q", sid, got)
	}
}

func TestCookies_RejectsForgedOrExpired(t *testing.T) {
	c := NewCookies("", "secret", time.Hour)
	sid, _ := c.NewID()

	other := NewCookies("", "another-secret", time.Hour)
	forged, _ := other.Sign(sid)
	if _, err := c.Parse(forged); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sid,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("secret"))
	if _, err := c.Parse(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	notULID, _ := c.Sign("../../etc")
	if _, err := c.Parse(notULID); err == nil {
		t.Fatalf("expected non-ULID subject to be rejected")
	}

	for _, v := range []string{"", "garbage", "a.b.c"} {
		if _, err := c.Parse(v); err == nil {
			t.Fatalf("expected %q to be rejected", v)
		}
	}
}
