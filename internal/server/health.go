package server

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status           string         `json:"status"`
	Name             string         `json:"name"`
	Variant          string         `json:"variant"`
	Version          string         `json:"version"`
	GameMode         string         `json:"gameMode"`
	Players          int            `json:"players"`
	Teams            map[string]int `json:"teams"`
	Round            int            `json:"round"`
	Phase            string         `json:"phase"`
	SecondsRemaining int            `json:"secondsRemaining"`
	Scores           map[string]int `json:"scores"`
	RoundsWon        map[string]int `json:"roundsWon"`
	Bans             int            `json:"bans"`
	UptimeSeconds    int64          `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.store.Round()
	ledger := s.store.Ledger()
	names := s.config.TeamNames()
	counts := s.registry.TeamCounts()

	perTeam := func(values [2]int) map[string]int {
		return map[string]int{names[0]: values[0], names[1]: values[1]}
	}

	resp := healthResponse{
		Status:           "ok",
		Name:             s.config.Server.Name,
		Variant:          s.config.Server.Variant,
		Version:          Version,
		GameMode:         s.gameMode.Name(),
		Players:          counts[0] + counts[1],
		Teams:            perTeam(counts),
		Round:            state.Number,
		Phase:            state.Phase.String(),
		SecondsRemaining: state.Remaining,
		Scores:           perTeam(ledger.Round),
		RoundsWon:        perTeam(ledger.RoundsWon),
		Bans:             len(s.bans.GetAll()),
		UptimeSeconds:    int64(s.GetUptime().Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("failed to write health response", "error", err)
	}
}
