package server

import (
	"context"
	"time"

	"github.com/siohaza/arenasync/internal/gamemode"
)

// secondCounter turns irregular ticker wake ups into whole elapsed seconds,
// carrying the remainder so the round clock never drifts.
type secondCounter struct {
	last  time.Time
	carry time.Duration
}

func (c *secondCounter) advance(now time.Time) int {
	if c.last.IsZero() || now.Before(c.last) {
		c.last = now
		return 0
	}

	c.carry += now.Sub(c.last)
	c.last = now

	whole := int(c.carry / time.Second)
	c.carry -= time.Duration(whole) * time.Second
	return whole
}

// runScheduler is the single goroutine driving time: the round clock, pickup
// polling, script timers and ban expiry.
func (s *Server) runScheduler(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollInterval())
	defer ticker.Stop()

	counter := secondCounter{last: time.Now()}
	luaMode, _ := s.gameMode.(*gamemode.LuaGameMode)

	for {
		select {
		case <-ctx.Done():
			return nil

		case now := <-ticker.C:
			if seconds := counter.advance(now); seconds > 0 {
				if seconds > 1 {
					s.logger.Debug("scheduler fell behind", "seconds", seconds)
				}
				s.rounds.Advance(seconds)

				if removed := s.bans.Cleanup(); removed > 0 {
					s.logger.Debug("expired bans removed", "count", removed)
				}
			}

			s.pickups.Poll()

			if luaMode != nil {
				if err := luaMode.RunScheduled(now); err != nil {
					s.logger.Error("scheduled game mode call failed", "error", err)
				}
			}
		}
	}
}
