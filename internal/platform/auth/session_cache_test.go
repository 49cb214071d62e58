package auth

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNopSessionCache(t *testing.T) {
	var c SessionCache = NopSessionCache{}
	ctx := context.Background()
	c.Set(ctx, "tok", &CachedSession{UserID: 1, ExpiresAt: time.Now().Add(time.Hour)})
	if _, ok := c.Get(ctx, "tok"); ok {
		t.Error("expected miss from no-op cache")
	}
	c.Delete(ctx, "tok")
}

func TestSessionKey(t *testing.T) {
	if got := sessionKey("abc"); got != "session:abc" {
		t.Errorf("expected session:abc, got %s", got)
	}
}

func TestNewRedisSessionCache_BadURL(t *testing.T) {
	if _, err := NewRedisSessionCache(context.Background(), "not-a-url", time.Minute, testLogger()); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
