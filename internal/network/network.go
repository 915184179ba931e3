package network

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codecat/go-enet"
)

const (
	enetChannel        uint8 = 0
	enetServiceTimeout       = 10 * time.Millisecond
	enetOutboundSize         = 1024
	// upper bound of events handled per service round so outbound packets
	// are never starved by a chatty peer
	enetEventsPerRound = 100
)

type enetCommand struct {
	conn       *enetConn
	data       []byte
	disconnect bool
}

// EnetServer carries the same JSON envelopes as the WebSocket transport over
// reliable ENet packets. The ENet host is owned by the goroutine running Run;
// other goroutines reach it only through the outbound channel.
type EnetServer struct {
	port     uint16
	maxPeers int
	handler  Handler
	logger   *slog.Logger

	outbound chan enetCommand
	done     chan struct{}
	stopOnce sync.Once

	// owned by the Run goroutine
	host  enet.Host
	conns map[enet.Peer]*enetConn

	peerCount atomic.Int32
}

func NewEnetServer(port int, maxPeers int, handler Handler, logger *slog.Logger) *EnetServer {
	if logger == nil {
		logger = slog.Default()
	}

	return &EnetServer{
		port:     uint16(port),
		maxPeers: maxPeers,
		handler:  handler,
		logger:   logger,
		outbound: make(chan enetCommand, enetOutboundSize),
		done:     make(chan struct{}),
		conns:    make(map[enet.Peer]*enetConn),
	}
}

func (s *EnetServer) start() error {
	address := enet.NewListenAddress(s.port)

	var err error
	s.host, err = enet.NewHost(address, uint64(s.maxPeers), 1, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to create ENet host: %w", err)
	}

	if err := s.host.CompressWithRangeCoder(); err != nil {
		s.host.Destroy()
		return fmt.Errorf("failed to setup range coder compression: %w", err)
	}

	s.logger.Info("enet listener started", "port", s.port, "max_peers", s.maxPeers)
	return nil
}

// Run services the host until ctx is cancelled. Every peer still connected
// at that point is reported to the handler as disconnected.
func (s *EnetServer) Run(ctx context.Context) error {
	enet.Initialize()
	defer enet.Deinitialize()

	if err := s.start(); err != nil {
		return err
	}
	defer s.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		s.flushOutbound()
		s.service()
	}
}

func (s *EnetServer) stop() {
	s.stopOnce.Do(func() { close(s.done) })

	for peer, c := range s.conns {
		peer.DisconnectNow(0)
		s.drop(peer, c)
	}
	s.host.Destroy()
	s.logger.Info("enet listener stopped")
}

func (s *EnetServer) flushOutbound() {
	for {
		select {
		case cmd := <-s.outbound:
			s.apply(cmd)
		default:
			return
		}
	}
}

func (s *EnetServer) apply(cmd enetCommand) {
	if _, live := s.conns[cmd.conn.peer]; !live {
		return
	}

	if cmd.disconnect {
		cmd.conn.peer.DisconnectLater(0)
		return
	}

	packet, err := enet.NewPacket(cmd.data, enet.PacketFlagReliable)
	if err != nil {
		s.logger.Error("failed to create packet", "id", cmd.conn.id, "error", err)
		return
	}
	if err := cmd.conn.peer.SendPacket(packet, enetChannel); err != nil {
		s.logger.Debug("failed to send packet", "id", cmd.conn.id, "error", err)
		cmd.conn.peer.DisconnectLater(0)
	}
}

func (s *EnetServer) service() {
	timeout := uint32(enetServiceTimeout.Milliseconds())

	for i := 0; i < enetEventsPerRound; i++ {
		ev := s.host.Service(timeout)
		if ev == nil || ev.GetType() == enet.EventNone {
			return
		}
		timeout = 0

		switch ev.GetType() {
		case enet.EventConnect:
			s.handleConnect(ev.GetPeer())

		case enet.EventDisconnect:
			peer := ev.GetPeer()
			if c, ok := s.conns[peer]; ok {
				s.drop(peer, c)
			}

		case enet.EventReceive:
			packet := ev.GetPacket()
			if packet == nil {
				continue
			}
			data := append([]byte(nil), packet.GetData()...)
			packet.Destroy()

			if c, ok := s.conns[ev.GetPeer()]; ok {
				s.handler.Receive(c.id, data)
			}
		}
	}
}

func (s *EnetServer) handleConnect(peer enet.Peer) {
	c := &enetConn{
		server:     s,
		peer:       peer,
		remoteAddr: peer.GetAddress().String(),
	}
	s.conns[peer] = c
	s.peerCount.Add(1)

	c.id = s.handler.Connect(c)
	s.logger.Debug("enet peer connected", "id", c.id, "addr", c.remoteAddr)
}

func (s *EnetServer) drop(peer enet.Peer, c *enetConn) {
	delete(s.conns, peer)
	s.peerCount.Add(-1)
	c.closed.Store(true)

	s.handler.Disconnect(c.id)
	s.logger.Debug("enet peer disconnected", "id", c.id, "addr", c.remoteAddr)
}

func (s *EnetServer) Count() int {
	return int(s.peerCount.Load())
}

func (s *EnetServer) enqueue(cmd enetCommand) error {
	select {
	case s.outbound <- cmd:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

type enetConn struct {
	server     *EnetServer
	peer       enet.Peer
	id         string
	remoteAddr string
	closed     atomic.Bool
}

func (c *enetConn) Send(data []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.server.enqueue(enetCommand{conn: c, data: data})
}

func (c *enetConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.server.enqueue(enetCommand{conn: c, disconnect: true})
}

func (c *enetConn) RemoteAddr() string {
	return c.remoteAddr
}
