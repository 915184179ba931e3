package gamemode

import (
	"github.com/siohaza/arenasync/internal/callbacks"
	"github.com/siohaza/arenasync/internal/world"
	"github.com/siohaza/arenasync/pkg/config"
)

type GameMode interface {
	callbacks.Callbacks
	Name() string
	// RoundWinner decides the round from the final ledger. hasWinner is false
	// for a draw.
	RoundWinner(ledger world.Ledger) (winner world.Team, hasWinner bool)
}

// BaseGameMode awards the round to the team with the higher round score and
// settles equal scores with its tie policy.
type BaseGameMode struct {
	callbacks.DefaultCallbacks
	name      string
	tiePolicy string
}

func NewBaseGameMode(name, tiePolicy string) *BaseGameMode {
	if tiePolicy == "" {
		tiePolicy = config.TiePolicyNone
	}
	return &BaseGameMode{name: name, tiePolicy: tiePolicy}
}

func (b *BaseGameMode) Name() string {
	return b.name
}

func (b *BaseGameMode) RoundWinner(ledger world.Ledger) (world.Team, bool) {
	return DecideWinner(ledger.Round, b.tiePolicy)
}

func DecideWinner(scores [2]int, tiePolicy string) (world.Team, bool) {
	switch {
	case scores[world.Team1] > scores[world.Team2]:
		return world.Team1, true
	case scores[world.Team2] > scores[world.Team1]:
		return world.Team2, true
	}

	switch tiePolicy {
	case config.TiePolicyTeam1:
		return world.Team1, true
	case config.TiePolicyTeam2:
		return world.Team2, true
	default:
		return 0, false
	}
}
