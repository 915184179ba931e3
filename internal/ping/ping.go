package ping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
)

type ServerInfo struct {
	Name             string    `json:"name"`
	Variant          string    `json:"variant"`
	PlayersCurrent   int       `json:"players_current"`
	Teams            [2]string `json:"teams"`
	Round            int       `json:"round"`
	SecondsRemaining int       `json:"seconds_remaining"`
	GameMode         string    `json:"game_mode"`
	Version          string    `json:"version"`
}

// InfoFunc reports the server state at the moment a LAN query arrives.
type InfoFunc func() ServerInfo

// Handler answers UDP discovery probes: HELLO gets HI, HELLOLAN gets the
// server info as JSON.
type Handler struct {
	listenAddress string
	info          InfoFunc
	logger        *slog.Logger
}

func NewHandler(address string, info InfoFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		listenAddress: address,
		info:          info,
		logger:        logger,
	}
}

func (h *Handler) listen() (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", h.listenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP: %w", err)
	}
	return conn, nil
}

// Run answers probes until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) error {
	conn, err := h.listen()
	if err != nil {
		return err
	}
	return h.serve(ctx, conn)
}

func (h *Handler) serve(ctx context.Context, conn *net.UDPConn) error {
	h.logger.Info("ping handler started", "address", conn.LocalAddr())

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	buffer := make([]byte, 1024)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				h.logger.Info("ping handler stopped")
				return nil
			}
			h.logger.Error("failed to read UDP packet", "error", err)
			continue
		}

		if n > 0 {
			h.handlePacket(conn, buffer[:n], addr)
		}
	}
}

func (h *Handler) handlePacket(conn *net.UDPConn, data []byte, addr *net.UDPAddr) {
	switch string(data) {
	case "HELLO":
		h.reply(conn, []byte("HI"), addr)
	case "HELLOLAN":
		info, err := json.Marshal(h.info())
		if err != nil {
			h.logger.Error("failed to marshal server info", "error", err)
			return
		}
		h.reply(conn, info, addr)
	}
}

func (h *Handler) reply(conn *net.UDPConn, data []byte, addr *net.UDPAddr) {
	if _, err := conn.WriteToUDP(data, addr); err != nil {
		h.logger.Error("failed to send ping response", "error", err, "addr", addr)
		return
	}
	h.logger.Debug("sent ping response", "addr", addr, "bytes", len(data))
}
