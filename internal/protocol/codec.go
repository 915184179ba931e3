package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/siohaza/arenasync/internal/world"
	"github.com/siohaza/arenasync/pkg/config"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMalformed    = errors.New("malformed message")
)

// Codec translates events to and from the JSON envelope
// {"event": name, "data": payload}. It carries the naming choices of the
// configured game variant.
type Codec struct {
	teams        [2]string
	displayNames [2]string
	pickupEvent  string
	leftEvent    string
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type playerPayload struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Height   float64 `json:"height"`
	Width    float64 `json:"width"`
	Team     string  `json:"team,omitempty"`
}

type playerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

type locationPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type clockPayload struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

type roundEndedPayload struct {
	Winner     *string        `json:"winner"`
	WinnerName *string        `json:"winnerName"`
	Scores     map[string]int `json:"scores"`
}

type roundResetPayload struct {
	Round int `json:"round"`
}

type movementPayload struct {
	X            *float64 `json:"x"`
	Y            *float64 `json:"y"`
	Rotation     *float64 `json:"rotation"`
	Height       *float64 `json:"height"`
	Width        *float64 `json:"width"`
	LegacyHeight *float64 `json:"player_height"`
	LegacyWidth  *float64 `json:"player_width"`
}

// orderedPlayers encodes as a JSON object keyed by player id that keeps the
// snapshot order, which encoding/json does not do for maps.
type orderedPlayers []playerPayload

func (o orderedPlayers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.PlayerID)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func NewCodec(cfg *config.Config) *Codec {
	c := &Codec{
		teams:        cfg.TeamNames(),
		displayNames: [2]string{cfg.Teams.Team1.DisplayName(), cfg.Teams.Team2.DisplayName()},
		pickupEvent:  EventTargetLocation,
		leftEvent:    EventPlayerLeft,
	}
	if cfg.Protocol.PickupName == config.PickupStar {
		c.pickupEvent = EventStarLocation
	}
	if cfg.Protocol.LeftEvent == config.LeftEventDisconnect {
		c.leftEvent = EventDisconnect
	}
	return c
}

func (c *Codec) TeamName(t world.Team) string {
	if !t.Valid() {
		return ""
	}
	return c.teams[t]
}

// EventName returns the wire name used for an outbound event kind.
func (c *Codec) EventName(k Kind) string {
	switch k {
	case KindCurrentPlayers:
		return EventCurrentPlayers
	case KindNewPlayer:
		return EventNewPlayer
	case KindPlayerLeft:
		return c.leftEvent
	case KindPlayerMoved:
		return EventPlayerMoved
	case KindPickupMoved:
		return c.pickupEvent
	case KindScoreUpdate:
		return EventScoreUpdate
	case KindClockUpdate:
		return EventClockUpdate
	case KindRoundUpdate:
		return EventRoundUpdate
	case KindRoundEnded:
		return EventRoundEnded
	case KindRoundReset:
		return EventRoundReset
	default:
		return ""
	}
}

func (c *Codec) Encode(ev Event) ([]byte, error) {
	var payload any

	switch e := ev.(type) {
	case CurrentPlayers:
		players := make(orderedPlayers, 0, len(e.Players))
		for _, p := range e.Players {
			players = append(players, c.player(p, true))
		}
		payload = players
	case NewPlayer:
		payload = c.player(e.Player, true)
	case PlayerLeft:
		payload = playerLeftPayload{PlayerID: e.PlayerID}
	case PlayerMoved:
		payload = c.player(e.Player, false)
	case PickupMoved:
		payload = locationPayload{X: e.Position.X, Y: e.Position.Y}
	case ScoreUpdate:
		payload = c.perTeam(e.Scores)
	case ClockUpdate:
		payload = clockPayload{SecondsRemaining: e.SecondsRemaining}
	case RoundUpdate:
		payload = c.perTeam(e.RoundsWon)
	case RoundEnded:
		p := roundEndedPayload{Scores: c.perTeam(e.Scores)}
		if e.HasWinner && e.Winner.Valid() {
			winner := c.teams[e.Winner]
			name := c.displayNames[e.Winner]
			p.Winner = &winner
			p.WinnerName = &name
		}
		payload = p
	case RoundReset:
		payload = roundResetPayload{Round: e.Round}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ev.Kind(), err)
	}

	return json.Marshal(envelope{Event: c.EventName(ev.Kind()), Data: data})
}

func (c *Codec) player(e world.Entity, withTeam bool) playerPayload {
	p := playerPayload{
		PlayerID: e.ID,
		X:        e.Position.X,
		Y:        e.Position.Y,
		Rotation: e.Rotation,
		Height:   e.Size.Height,
		Width:    e.Size.Width,
	}
	if withTeam {
		p.Team = c.TeamName(e.Team)
	}
	return p
}

func (c *Codec) perTeam(values [2]int) map[string]int {
	return map[string]int{
		c.teams[0]: values[0],
		c.teams[1]: values[1],
	}
}

// Decode parses a client message. Both the target and star spellings of the
// collect event are accepted.
func (c *Codec) Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Event {
	case EventPlayerMovement:
		m, err := decodeMovement(env.Data)
		if err != nil {
			return Inbound{}, err
		}
		return Inbound{Type: InboundMovement, Movement: m}, nil
	case EventTargetCollected, EventStarCollected:
		return Inbound{Type: InboundCollect}, nil
	case "":
		return Inbound{}, fmt.Errorf("%w: missing event name", ErrMalformed)
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeMovement(data json.RawMessage) (Movement, error) {
	if len(data) == 0 {
		return Movement{}, fmt.Errorf("%w: movement without data", ErrMalformed)
	}

	var p movementPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Movement{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if p.X == nil || p.Y == nil || p.Rotation == nil {
		return Movement{}, fmt.Errorf("%w: movement requires x, y and rotation", ErrMalformed)
	}

	m := Movement{X: *p.X, Y: *p.Y, Rotation: *p.Rotation}

	height, width := p.Height, p.Width
	if height == nil {
		height = p.LegacyHeight
	}
	if width == nil {
		width = p.LegacyWidth
	}

	switch {
	case height != nil && width != nil:
		m.Size = &world.Size{Height: *height, Width: *width}
	case height != nil || width != nil:
		return Movement{}, fmt.Errorf("%w: movement size needs both height and width", ErrMalformed)
	}

	return m, nil
}
