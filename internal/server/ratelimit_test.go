package server

import (
	"testing"
	"time"

	"github.com/siohaza/arenasync/internal/protocol"
	"github.com/siohaza/arenasync/pkg/config"
)

func TestRateLimiterDisabledAllowsEverything(t *testing.T) {
	l := newRateLimiter(config.RateLimitConfig{Enabled: false, MovementPerSec: 1, BurstSize: 1})
	now := time.Now()

	for i := 0; i < 100; i++ {
		if d := l.check(now, protocol.InboundMovement); d != rateAllowed {
			t.Fatalf("message %d limited while disabled", i)
		}
	}
}

func TestRateLimiterPerTypeAndWindow(t *testing.T) {
	l := newRateLimiter(config.RateLimitConfig{Enabled: true, MovementPerSec: 2, BurstSize: 100})
	now := time.Now()

	if l.check(now, protocol.InboundMovement) != rateAllowed || l.check(now, protocol.InboundMovement) != rateAllowed {
		t.Fatalf("movement within limit refused")
	}
	if d := l.check(now, protocol.InboundMovement); d != rateExceeded {
		t.Fatalf("third movement in a window: %v", d)
	}
	if d := l.check(now, protocol.InboundCollect); d != rateAllowed {
		t.Fatalf("collect limited by the movement budget: %v", d)
	}

	if d := l.check(now.Add(time.Second), protocol.InboundMovement); d != rateAllowed {
		t.Fatalf("new window still limited: %v", d)
	}
	if l.violationCount() != 1 {
		t.Fatalf("violations = %d, want 1", l.violationCount())
	}
}

func TestRateLimiterBurstAndKick(t *testing.T) {
	l := newRateLimiter(config.RateLimitConfig{Enabled: true, MovementPerSec: 0, BurstSize: 3})
	now := time.Now()

	for i := 0; i < 3; i++ {
		if d := l.check(now, protocol.InboundCollect); d != rateAllowed {
			t.Fatalf("message %d refused under burst size", i)
		}
	}

	for i := 1; i < maxRateLimitViolations; i++ {
		if d := l.check(now, protocol.InboundCollect); d != rateExceeded {
			t.Fatalf("violation %d: %v", i, d)
		}
	}
	if d := l.check(now, protocol.InboundCollect); d != rateKick {
		t.Fatalf("expected kick after %d violations, got %v", maxRateLimitViolations, d)
	}
}
