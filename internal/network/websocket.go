package network

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

type WebSocketOptions struct {
	ReadLimit    int64
	ReadTimeout  time.Duration
	PingInterval time.Duration
	WriteTimeout time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// WebSocketServer upgrades HTTP requests and runs one read loop and one
// keepalive loop per connection.
type WebSocketServer struct {
	handler  Handler
	upgrader websocket.Upgrader
	opts     WebSocketOptions
	logger   *slog.Logger

	conns  map[*wsConn]struct{}
	closed bool
	mu     sync.Mutex
	wg     sync.WaitGroup
}

func NewWebSocketServer(handler Handler, opts WebSocketOptions, logger *slog.Logger) *WebSocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.ReadTimeout {
		opts.PingInterval = opts.ReadTimeout * 9 / 10
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		// browser clients are served from anywhere
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &WebSocketServer{
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		opts:   opts,
		logger: logger,
		conns:  make(map[*wsConn]struct{}),
	}
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	c := &wsConn{
		ws:           ws,
		remoteAddr:   r.RemoteAddr,
		writeTimeout: s.opts.WriteTimeout,
		closed:       make(chan struct{}),
	}
	if !s.track(c) {
		c.Close()
		return
	}
	defer s.untrack(c)

	id := s.handler.Connect(c)
	err = s.serve(context.Background(), id, c)
	s.handler.Disconnect(id)

	s.logger.Debug("websocket closed", "id", id, "addr", c.remoteAddr, "reason", err)
}

func (s *WebSocketServer) serve(ctx context.Context, id string, c *wsConn) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.readLoop(id, c)
	})
	g.Go(func() error {
		return s.pingLoop(ctx, c)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-c.closed:
		}
		c.Close()
		return nil
	})

	return g.Wait()
}

// readLoop only returns on error, which tears the whole connection down.
func (s *WebSocketServer) readLoop(id string, c *wsConn) error {
	c.ws.SetReadLimit(s.opts.ReadLimit)
	if err := c.ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
		return err
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := c.ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		s.handler.Receive(id, data)
	}
}

func (s *WebSocketServer) pingLoop(ctx context.Context, c *wsConn) error {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			deadline := time.Now().Add(s.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (s *WebSocketServer) track(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *WebSocketServer) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *WebSocketServer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close drops every open connection and waits until each has been reported
// to the handler as disconnected.
func (s *WebSocketServer) Close() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

type wsConn struct {
	ws           *websocket.Conn
	remoteAddr   string
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Send writes one text frame. Writes are serialized; gorilla allows a single
// concurrent writer.
func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(time.Second)
		c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) RemoteAddr() string {
	return c.remoteAddr
}
