package broadcast

import (
	"log/slog"
	"sync"
)

type peer struct {
	id     string
	conn   Conn
	bound  int
	logger *slog.Logger

	queue  []outbound
	alive  bool
	mu     sync.Mutex
	signal chan struct{}
	done   chan struct{}
}

func newPeer(id string, conn Conn, bound int, logger *slog.Logger) *peer {
	return &peer{
		id:     id,
		conn:   conn,
		bound:  bound,
		logger: logger,
		alive:  true,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// enqueue appends msg. A full queue first sheds its oldest stale tolerant
// message; critical messages are never shed and let the queue grow instead.
func (p *peer) enqueue(msg outbound) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.alive {
		return
	}

	if len(p.queue) >= p.bound {
		if !p.dropOldestStale() {
			if msg.kind.StaleTolerant() {
				p.logger.Debug("dropped movement for saturated connection", "id", p.id)
				return
			}
			p.logger.Warn("outbound queue over limit", "id", p.id, "queued", len(p.queue), "limit", p.bound, "kind", msg.kind)
		}
	}

	p.queue = append(p.queue, msg)

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *peer) dropOldestStale() bool {
	for i, queued := range p.queue {
		if queued.kind.StaleTolerant() {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return true
		}
	}
	return false
}

// next pops the head of the queue. It reports false once the peer is stopped.
func (p *peer) next() (outbound, bool) {
	for {
		p.mu.Lock()
		if !p.alive {
			p.mu.Unlock()
			return outbound{}, false
		}
		if len(p.queue) > 0 {
			msg := p.queue[0]
			p.queue[0] = outbound{}
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return msg, true
		}
		p.mu.Unlock()

		select {
		case <-p.signal:
		case <-p.done:
			return outbound{}, false
		}
	}
}

func (p *peer) run() {
	for {
		msg, ok := p.next()
		if !ok {
			return
		}

		if err := p.conn.Send(msg.data); err != nil {
			p.logger.Debug("send failed, closing connection", "id", p.id, "kind", msg.kind, "error", err)
			p.stop()
			if err := p.conn.Close(); err != nil {
				p.logger.Debug("failed to close connection", "id", p.id, "error", err)
			}
			return
		}
	}
}

func (p *peer) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.alive {
		return
	}
	p.alive = false
	p.queue = nil
	close(p.done)
}
