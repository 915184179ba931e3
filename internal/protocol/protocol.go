package protocol

import (
	"github.com/siohaza/arenasync/internal/world"
)

// Wire event names. The pickup and leave events have variant spellings, the
// codec picks the outbound one from config and accepts every inbound one.
const (
	EventCurrentPlayers  = "currentPlayers"
	EventNewPlayer       = "newPlayer"
	EventPlayerLeft      = "playerLeft"
	EventDisconnect      = "disconnect"
	EventPlayerMovement  = "playerMovement"
	EventPlayerMoved     = "playerMoved"
	EventTargetLocation  = "targetLocation"
	EventStarLocation    = "starLocation"
	EventTargetCollected = "targetCollected"
	EventStarCollected   = "starCollected"
	EventScoreUpdate     = "scoreUpdate"
	EventClockUpdate     = "clockUpdate"
	EventRoundUpdate     = "roundUpdate"
	EventRoundEnded      = "roundEnded"
	EventRoundReset      = "roundReset"
)

type Kind uint8

const (
	KindCurrentPlayers Kind = iota
	KindNewPlayer
	KindPlayerLeft
	KindPlayerMoved
	KindPickupMoved
	KindScoreUpdate
	KindClockUpdate
	KindRoundUpdate
	KindRoundEnded
	KindRoundReset
)

func (k Kind) String() string {
	switch k {
	case KindCurrentPlayers:
		return "current_players"
	case KindNewPlayer:
		return "new_player"
	case KindPlayerLeft:
		return "player_left"
	case KindPlayerMoved:
		return "player_moved"
	case KindPickupMoved:
		return "pickup_moved"
	case KindScoreUpdate:
		return "score_update"
	case KindClockUpdate:
		return "clock_update"
	case KindRoundUpdate:
		return "round_update"
	case KindRoundEnded:
		return "round_ended"
	case KindRoundReset:
		return "round_reset"
	default:
		return "unknown"
	}
}

// StaleTolerant reports whether a newer event of the same kind supersedes an
// undelivered one. Only movement qualifies; joins, leaves and round events
// must always arrive.
func (k Kind) StaleTolerant() bool {
	return k == KindPlayerMoved
}

// Event is a server originated message.
type Event interface {
	Kind() Kind
}

type CurrentPlayers struct {
	Players []world.Entity
}

type NewPlayer struct {
	Player world.Entity
}

type PlayerLeft struct {
	PlayerID string
}

type PlayerMoved struct {
	Player world.Entity
}

type PickupMoved struct {
	Position world.Vec2
}

type ScoreUpdate struct {
	Scores [2]int
}

type ClockUpdate struct {
	SecondsRemaining int
}

type RoundUpdate struct {
	RoundsWon [2]int
}

// RoundEnded carries the winning team, HasWinner is false on a draw.
type RoundEnded struct {
	Winner    world.Team
	HasWinner bool
	Scores    [2]int
}

type RoundReset struct {
	Round int
}

func (CurrentPlayers) Kind() Kind { return KindCurrentPlayers }
func (NewPlayer) Kind() Kind      { return KindNewPlayer }
func (PlayerLeft) Kind() Kind     { return KindPlayerLeft }
func (PlayerMoved) Kind() Kind    { return KindPlayerMoved }
func (PickupMoved) Kind() Kind    { return KindPickupMoved }
func (ScoreUpdate) Kind() Kind    { return KindScoreUpdate }
func (ClockUpdate) Kind() Kind    { return KindClockUpdate }
func (RoundUpdate) Kind() Kind    { return KindRoundUpdate }
func (RoundEnded) Kind() Kind     { return KindRoundEnded }
func (RoundReset) Kind() Kind     { return KindRoundReset }

// InboundType identifies a client originated message.
type InboundType uint8

const (
	InboundMovement InboundType = iota
	InboundCollect
)

// Movement is a decoded playerMovement report. Size is nil when the client
// did not report one.
type Movement struct {
	X        float64
	Y        float64
	Rotation float64
	Size     *world.Size
}

type Inbound struct {
	Type     InboundType
	Movement Movement
}
