package broadcast

import (
	"log/slog"
	"sync"

	"github.com/siohaza/arenasync/internal/protocol"
)

type outbound struct {
	kind protocol.Kind
	data []byte
}

// Dispatcher owns one bounded queue per attached connection, each drained by
// its own sender goroutine.
type Dispatcher struct {
	encoder   Encoder
	queueSize int
	logger    *slog.Logger

	peers  map[string]*peer
	closed bool
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

func NewDispatcher(encoder Encoder, queueSize int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	return &Dispatcher{
		encoder:   encoder,
		queueSize: queueSize,
		logger:    logger,
		peers:     make(map[string]*peer),
	}
}

// Attach registers conn under id and queues the events returned by initial
// ahead of anything broadcast afterwards. initial runs under the dispatcher
// lock, so no broadcast can slip between the state it reads and the moment
// the connection starts receiving.
func (d *Dispatcher) Attach(id string, conn Conn, initial func() []protocol.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	if _, exists := d.peers[id]; exists {
		d.logger.Warn("connection already attached", "id", id)
		return false
	}

	p := newPeer(id, conn, d.queueSize, d.logger)
	if initial != nil {
		for _, ev := range initial() {
			if msg, ok := d.encode(ev); ok {
				p.enqueue(msg)
			}
		}
	}
	d.peers[id] = p

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		p.run()
	}()

	return true
}

// Detach stops delivery to id and discards anything still queued for it.
func (d *Dispatcher) Detach(id string) bool {
	d.mu.Lock()
	p, ok := d.peers[id]
	if ok {
		delete(d.peers, id)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	p.stop()
	return true
}

func (d *Dispatcher) BroadcastAll(ev protocol.Event) {
	d.BroadcastOthers("", ev)
}

func (d *Dispatcher) BroadcastOthers(exclude string, ev protocol.Event) {
	msg, ok := d.encode(ev)
	if !ok {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for id, p := range d.peers {
		if id == exclude {
			continue
		}
		p.enqueue(msg)
	}
}

func (d *Dispatcher) SendTo(id string, ev protocol.Event) {
	msg, ok := d.encode(ev)
	if !ok {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if p, exists := d.peers[id]; exists {
		p.enqueue(msg)
	}
}

func (d *Dispatcher) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// Close detaches every connection and waits for the sender goroutines to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	peers := d.peers
	d.peers = make(map[string]*peer)
	d.mu.Unlock()

	for _, p := range peers {
		p.stop()
	}
	d.wg.Wait()
}

func (d *Dispatcher) encode(ev protocol.Event) (outbound, bool) {
	data, err := d.encoder.Encode(ev)
	if err != nil {
		d.logger.Error("failed to encode event", "kind", ev.Kind(), "error", err)
		return outbound{}, false
	}
	return outbound{kind: ev.Kind(), data: data}, true
}
