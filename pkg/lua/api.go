package lua

import (
	"log/slog"
	"time"

	"github.com/siohaza/arenasync/internal/validation"
	"github.com/siohaza/arenasync/internal/world"

	"github.com/Shopify/go-lua"
)

// World is the read-only view of the arena exposed to scripts.
type World interface {
	Get(id string) (world.Entity, bool)
	Len() int
	Ledger() world.Ledger
	Round() world.RoundState
	Pickup() world.Pickup
	Bounds() world.Bounds
}

type ServerInterface interface {
	GetServerName() string
	GetUptime() time.Duration
}

type GameAPI struct {
	world      World
	teamNames  [2]string
	server     ServerInterface
	gamemodeVM *VM
	logger     *slog.Logger
}

func NewGameAPI(w World, teamNames [2]string, logger *slog.Logger) *GameAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &GameAPI{
		world:     w,
		teamNames: teamNames,
		logger:    logger,
	}
}

func (api *GameAPI) SetServer(srv ServerInterface) {
	api.server = srv
}

func (api *GameAPI) SetGamemodeVM(vm *VM) {
	api.gamemodeVM = vm
}

func (api *GameAPI) RegisterFunctions(vm *VM) {
	state := vm.State()

	state.Register("get_team_score", api.getTeamScore)
	state.Register("get_rounds_won", api.getRoundsWon)
	state.Register("get_team_name", api.getTeamName)
	state.Register("get_player_count", api.getPlayerCount)
	state.Register("get_seconds_remaining", api.getSecondsRemaining)
	state.Register("get_round_number", api.getRoundNumber)
	state.Register("get_entity", api.getEntity)
	state.Register("get_pickup", api.getPickup)
	state.Register("get_pickup_distance", api.getPickupDistance)
	state.Register("get_arena_size", api.getArenaSize)
	state.Register("get_server_name", api.getServerName)
	state.Register("get_server_time", api.getServerTime)
	state.Register("schedule_callback", api.scheduleCallback)
	state.Register("cancel_callback", api.cancelCallback)
	state.Register("log_info", api.logInfo)
}

func checkTeam(state *lua.State, idx int) (world.Team, bool) {
	team, ok := state.ToInteger(idx)
	if !ok || team < 0 || team > 1 {
		return 0, false
	}
	return world.Team(team), true
}

func (api *GameAPI) getTeamScore(state *lua.State) int {
	team, ok := checkTeam(state, 1)
	if !ok {
		state.PushInteger(0)
		return 1
	}

	state.PushInteger(api.world.Ledger().Round[team])
	return 1
}

func (api *GameAPI) getRoundsWon(state *lua.State) int {
	team, ok := checkTeam(state, 1)
	if !ok {
		state.PushInteger(0)
		return 1
	}

	state.PushInteger(api.world.Ledger().RoundsWon[team])
	return 1
}

func (api *GameAPI) getTeamName(state *lua.State) int {
	team, ok := checkTeam(state, 1)
	if !ok {
		state.PushNil()
		return 1
	}

	state.PushString(api.teamNames[team])
	return 1
}

func (api *GameAPI) getPlayerCount(state *lua.State) int {
	state.PushInteger(api.world.Len())
	return 1
}

func (api *GameAPI) getSecondsRemaining(state *lua.State) int {
	state.PushInteger(api.world.Round().Remaining)
	return 1
}

func (api *GameAPI) getRoundNumber(state *lua.State) int {
	state.PushInteger(api.world.Round().Number)
	return 1
}

func (api *GameAPI) getEntity(state *lua.State) int {
	id, _ := state.ToString(1)

	e, ok := api.world.Get(id)
	if !ok {
		state.PushNil()
		return 1
	}
	PushEntity(state, e)
	return 1
}

func (api *GameAPI) getPickup(state *lua.State) int {
	p := api.world.Pickup()

	state.NewTable()
	state.PushNumber(p.Position.X)
	state.SetField(-2, "x")
	state.PushNumber(p.Position.Y)
	state.SetField(-2, "y")
	state.PushBoolean(p.Active)
	state.SetField(-2, "active")
	return 1
}

func (api *GameAPI) getPickupDistance(state *lua.State) int {
	id, _ := state.ToString(1)

	e, ok := api.world.Get(id)
	p := api.world.Pickup()
	if !ok || !p.Active {
		state.PushNil()
		return 1
	}

	state.PushNumber(validation.CalculateDistance(e.Position, p.Position))
	return 1
}

func (api *GameAPI) getArenaSize(state *lua.State) int {
	b := api.world.Bounds()
	state.PushNumber(b.Width)
	state.PushNumber(b.Height)
	return 2
}

func (api *GameAPI) getServerName(state *lua.State) int {
	if api.server == nil {
		state.PushString("")
		return 1
	}

	state.PushString(api.server.GetServerName())
	return 1
}

func (api *GameAPI) getServerTime(state *lua.State) int {
	if api.server == nil {
		state.PushNumber(0)
		return 1
	}

	state.PushNumber(api.server.GetUptime().Seconds())
	return 1
}

func (api *GameAPI) scheduleCallback(state *lua.State) int {
	seconds, _ := state.ToNumber(1)
	callback, _ := state.ToString(2)
	repeat := false
	if state.Top() >= 3 && state.IsBoolean(3) {
		repeat = state.ToBoolean(3)
	}

	if api.gamemodeVM == nil || seconds <= 0 {
		state.PushInteger(-1)
		return 1
	}

	interval := time.Duration(seconds * float64(time.Second))
	state.PushInteger(api.gamemodeVM.Schedule(callback, interval, repeat))
	return 1
}

func (api *GameAPI) cancelCallback(state *lua.State) int {
	id, _ := state.ToInteger(1)

	if api.gamemodeVM != nil {
		api.gamemodeVM.Cancel(id)
	}

	return 0
}

func (api *GameAPI) logInfo(state *lua.State) int {
	msg, _ := state.ToString(1)
	api.logger.Info("gamemode", "message", msg)
	return 0
}

// PushEntity pushes e as a table with the same field names the wire uses.
func PushEntity(state *lua.State, e world.Entity) {
	state.NewTable()
	state.PushString(e.ID)
	state.SetField(-2, "id")
	state.PushInteger(int(e.Team))
	state.SetField(-2, "team")
	state.PushNumber(e.Position.X)
	state.SetField(-2, "x")
	state.PushNumber(e.Position.Y)
	state.SetField(-2, "y")
	state.PushNumber(e.Rotation)
	state.SetField(-2, "rotation")
	state.PushNumber(e.Size.Height)
	state.SetField(-2, "height")
	state.PushNumber(e.Size.Width)
	state.SetField(-2, "width")
}
