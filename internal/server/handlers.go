package server

import (
	"errors"
	"time"

	"github.com/siohaza/arenasync/internal/movement"
	"github.com/siohaza/arenasync/internal/network"
	"github.com/siohaza/arenasync/internal/protocol"
)

type client struct {
	conn    network.Conn
	limiter *rateLimiter
}

func (s *Server) client(id string) (*client, bool) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	c, ok := s.clients[id]
	return c, ok
}

// Connect registers a new connection from either transport. Banned addresses
// are closed at once and get no session; the empty id they return is ignored
// by Receive and Disconnect.
func (s *Server) Connect(conn network.Conn) string {
	if banned, ban := s.bans.IsBanned(conn.RemoteAddr()); banned {
		s.logger.Info("refused banned address", "addr", conn.RemoteAddr(), "reason", ban.Reason, "until", ban.ExpiresAt)
		if err := conn.Close(); err != nil {
			s.logger.Debug("failed to close banned connection", "addr", conn.RemoteAddr(), "error", err)
		}
		return ""
	}

	session := s.registry.Join(conn, conn.RemoteAddr())

	s.clientsMu.Lock()
	s.clients[session.ID] = &client{
		conn:    conn,
		limiter: newRateLimiter(s.config.RateLimit),
	}
	s.clientsMu.Unlock()

	return session.ID
}

func (s *Server) Disconnect(id string) {
	if id == "" {
		return
	}

	s.clientsMu.Lock()
	delete(s.clients, id)
	s.clientsMu.Unlock()

	s.registry.Leave(id)
}

// Receive routes one client message. Bad input is logged and dropped; it
// never ends the session.
func (s *Server) Receive(id string, data []byte) {
	c, ok := s.client(id)
	if !ok {
		return
	}

	msg, err := s.codec.Decode(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownEvent) {
			s.logger.Debug("ignored unknown event", "id", id, "error", err)
		} else {
			s.logger.Warn("dropped malformed message", "id", id, "error", err)
		}
		return
	}

	switch c.limiter.check(time.Now(), msg.Type) {
	case rateAllowed:
	case rateExceeded:
		s.logger.Warn("rate limit exceeded", "id", id, "type", msg.Type, "violations", c.limiter.violationCount())
		return
	case rateKick:
		s.Ban(id, "excessive rate limit violations", s.config.BanDuration())
		return
	}

	switch msg.Type {
	case protocol.InboundMovement:
		if err := s.movement.Report(s.ctx, id, msg.Movement); err != nil {
			if errors.Is(err, movement.ErrMalformed) {
				s.logger.Warn("dropped movement report", "id", id, "error", err)
			}
		}
	case protocol.InboundCollect:
		s.pickups.AttemptCollect(id)
	}
}
