package server

import (
	"sync"
	"time"

	"github.com/siohaza/arenasync/internal/protocol"
	"github.com/siohaza/arenasync/pkg/config"
)

const maxRateLimitViolations = 5

type rateDecision int

const (
	rateAllowed rateDecision = iota
	rateExceeded
	rateKick
)

// rateLimiter counts messages per one second window, overall and per message
// type. Repeated violations get the client dropped.
type rateLimiter struct {
	cfg config.RateLimitConfig

	mu          sync.Mutex
	windowStart time.Time
	total       int
	counts      map[protocol.InboundType]int
	violations  int
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		cfg:    cfg,
		counts: make(map[protocol.InboundType]int),
	}
}

func (l *rateLimiter) check(now time.Time, t protocol.InboundType) rateDecision {
	if !l.cfg.Enabled {
		return rateAllowed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.windowStart) >= time.Second {
		clear(l.counts)
		l.total = 0
		l.windowStart = now
	}

	l.total++
	l.counts[t]++

	if l.total > l.cfg.BurstSize {
		return l.violate()
	}

	var perTypeLimit int
	switch t {
	case protocol.InboundMovement:
		perTypeLimit = l.cfg.MovementPerSec
	}
	if perTypeLimit > 0 && l.counts[t] > perTypeLimit {
		return l.violate()
	}

	return rateAllowed
}

func (l *rateLimiter) violate() rateDecision {
	l.violations++
	if l.violations >= maxRateLimitViolations {
		return rateKick
	}
	return rateExceeded
}

func (l *rateLimiter) violationCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.violations
}
