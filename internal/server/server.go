package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/siohaza/arenasync/internal/bans"
	"github.com/siohaza/arenasync/internal/broadcast"
	"github.com/siohaza/arenasync/internal/callbacks"
	"github.com/siohaza/arenasync/internal/gamemode"
	"github.com/siohaza/arenasync/internal/movement"
	"github.com/siohaza/arenasync/internal/network"
	"github.com/siohaza/arenasync/internal/pickup"
	"github.com/siohaza/arenasync/internal/ping"
	"github.com/siohaza/arenasync/internal/protocol"
	"github.com/siohaza/arenasync/internal/registry"
	"github.com/siohaza/arenasync/internal/round"
	"github.com/siohaza/arenasync/internal/world"
	"github.com/siohaza/arenasync/pkg/config"
	"github.com/siohaza/arenasync/pkg/lua"
)

const (
	Version         = "0.1.0"
	shutdownTimeout = 5 * time.Second
)

type Server struct {
	config    *config.Config
	logger    *slog.Logger
	startTime time.Time

	store      *world.Store
	dispatcher *broadcast.Dispatcher
	callbacks  *callbacks.CallbackChain
	gameMode   gamemode.GameMode
	registry   *registry.Registry
	movement   *movement.Reconciler
	pickups    *pickup.Service
	rounds     *round.Machine
	codec      *protocol.Codec

	ws         *network.WebSocketServer
	enet       *network.EnetServer
	ping       *ping.Handler
	httpServer *http.Server

	clients   map[string]*client
	bans      *bans.Manager
	clientsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config:    cfg,
		logger:    logger,
		startTime: time.Now(),
		clients:   make(map[string]*client),
		bans:      bans.NewManager(),
		ctx:       ctx,
		cancel:    cancel,
	}

	srv.store = world.NewStore(world.Bounds{
		Width:   cfg.Arena.Width,
		Height:  cfg.Arena.Height,
		Padding: cfg.Arena.WrapPadding,
	}, cfg.Entity.MaxSize, cfg.Round.Duration)

	srv.codec = protocol.NewCodec(cfg)
	srv.dispatcher = broadcast.NewDispatcher(srv.codec, cfg.Dispatch.QueueSize, logger)

	gm, err := srv.loadGameMode()
	if err != nil {
		cancel()
		return nil, err
	}
	srv.gameMode = gm

	srv.callbacks = callbacks.NewCallbackChain()
	srv.callbacks.Register(gm)

	srv.registry = registry.New(cfg, srv.store, srv.dispatcher, srv.callbacks, logger)
	srv.movement = movement.NewReconciler(srv.store, srv.dispatcher, logger)
	srv.pickups = pickup.New(cfg, srv.store, srv.dispatcher, srv.callbacks, logger)
	srv.rounds = round.New(cfg, srv.store, srv.dispatcher, gm, srv.callbacks, srv.pickups, logger)

	srv.ws = network.NewWebSocketServer(srv, network.WebSocketOptions{
		ReadLimit:    cfg.Network.ReadLimit,
		ReadTimeout:  cfg.ReadTimeout(),
		PingInterval: cfg.PingInterval(),
		WriteTimeout: cfg.WriteTimeout(),
	}, logger)

	if cfg.Network.EnetPort > 0 {
		srv.enet = network.NewEnetServer(cfg.Network.EnetPort, cfg.Network.EnetMaxPeers, srv, logger)
	}
	if cfg.Network.PingPort > 0 {
		srv.ping = ping.NewHandler(fmt.Sprintf(":%d", cfg.Network.PingPort), srv.serverInfo, logger)
	}

	srv.httpServer = &http.Server{
		Addr:              cfg.Network.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

func (s *Server) loadGameMode() (gamemode.GameMode, error) {
	script := s.config.Gamemode.Script
	if script == "" {
		return gamemode.NewBaseGameMode("default", s.config.Round.TiePolicy), nil
	}
	if !lua.FileExists(script) {
		return nil, fmt.Errorf("gamemode script not found: %s", script)
	}

	api := lua.NewGameAPI(s.store, s.config.TeamNames(), s.logger)
	api.SetServer(s)

	gm, err := gamemode.NewLuaGameMode(script, s.config.Round.TiePolicy, api, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load Lua gamemode: %w", err)
	}
	s.logger.Info("loaded Lua game mode", "path", script, "mode", gm.Name())
	return gm, nil
}

// Handler serves the WebSocket endpoint and the health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.Network.WSPath, s.ws)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Run starts the first round and serves every enabled listener until ctx is
// cancelled or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Network.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Network.ListenAddress, err)
	}

	s.rounds.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("websocket listener started", "address", ln.Addr().String(), "path", s.config.Network.WSPath)
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.runScheduler(gctx)
	})
	if s.enet != nil {
		g.Go(func() error {
			return s.enet.Run(gctx)
		})
	}
	if s.ping != nil {
		g.Go(func() error {
			return s.ping.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		return nil
	})

	s.logger.Info("server running",
		"name", s.config.Server.Name,
		"variant", s.config.Server.Variant,
		"gamemode", s.gameMode.Name(),
	)

	err = g.Wait()
	s.close()
	return err
}

func (s *Server) shutdown() {
	s.logger.Info("stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown incomplete", "error", err)
	}

	s.ws.Close()
	s.cancel()
}

// close releases what outlives the listeners. It runs once every goroutine
// of Run has returned.
func (s *Server) close() {
	s.dispatcher.Close()
	if luaMode, ok := s.gameMode.(*gamemode.LuaGameMode); ok {
		luaMode.Close()
	}
	s.logger.Info("server stopped")
}

func (s *Server) GetServerName() string {
	return s.config.Server.Name
}

func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}

// Ban kicks the player and refuses its address for duration.
func (s *Server) Ban(id, reason string, duration time.Duration) bool {
	c, ok := s.client(id)
	if !ok {
		return false
	}

	if ban := s.bans.Add(c.conn.RemoteAddr(), reason, duration); ban != nil {
		s.logger.Info("address banned", "host", ban.Host, "reason", reason, "until", ban.ExpiresAt)
	}
	return s.Kick(id, reason)
}

// Kick drops a connection. The transport reports the disconnect, which then
// removes the session like any other leave.
func (s *Server) Kick(id, reason string) bool {
	c, ok := s.client(id)
	if !ok {
		return false
	}

	s.logger.Info("player kicked", "id", id, "addr", c.conn.RemoteAddr(), "reason", reason)
	if err := c.conn.Close(); err != nil {
		s.logger.Debug("failed to close kicked connection", "id", id, "error", err)
	}
	return true
}

func (s *Server) serverInfo() ping.ServerInfo {
	state := s.store.Round()
	return ping.ServerInfo{
		Name:             s.config.Server.Name,
		Variant:          s.config.Server.Variant,
		PlayersCurrent:   s.registry.Count(),
		Teams:            s.config.TeamNames(),
		Round:            state.Number,
		SecondsRemaining: state.Remaining,
		GameMode:         s.gameMode.Name(),
		Version:          Version,
	}
}
