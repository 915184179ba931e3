package gamemode

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	golua "github.com/Shopify/go-lua"

	"github.com/siohaza/arenasync/internal/world"
	"github.com/siohaza/arenasync/pkg/lua"
)

// LuaGameMode delegates hooks to a script. Hooks the script does not define
// fall back to the base rules.
type LuaGameMode struct {
	base   *BaseGameMode
	vm     *lua.VM
	api    *lua.GameAPI
	name   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewLuaGameMode(scriptPath, tiePolicy string, api *lua.GameAPI, logger *slog.Logger) (*LuaGameMode, error) {
	vm := lua.NewVM()

	if api != nil {
		api.RegisterFunctions(vm)
	}

	if err := vm.LoadFile(scriptPath); err != nil {
		vm.Close()
		return nil, fmt.Errorf("failed to load gamemode script: %w", err)
	}

	return newLuaGameMode(vm, tiePolicy, api, logger)
}

// NewLuaGameModeFromString loads the script from source instead of a file.
func NewLuaGameModeFromString(source, tiePolicy string, api *lua.GameAPI, logger *slog.Logger) (*LuaGameMode, error) {
	vm := lua.NewVM()

	if api != nil {
		api.RegisterFunctions(vm)
	}

	if err := vm.LoadString(source); err != nil {
		vm.Close()
		return nil, fmt.Errorf("failed to load gamemode script: %w", err)
	}

	return newLuaGameMode(vm, tiePolicy, api, logger)
}

func newLuaGameMode(vm *lua.VM, tiePolicy string, api *lua.GameAPI, logger *slog.Logger) (*LuaGameMode, error) {
	if logger == nil {
		logger = slog.Default()
	}

	name, err := vm.GetGlobalString("name")
	if err != nil {
		name = "lua_gamemode"
	}

	gm := &LuaGameMode{
		base:   NewBaseGameMode(name, tiePolicy),
		vm:     vm,
		api:    api,
		name:   name,
		logger: logger,
	}

	if api != nil {
		api.SetGamemodeVM(vm)
	}

	if vm.HasFunction("on_init") {
		if err := vm.CallFunction("on_init"); err != nil {
			vm.Close()
			return nil, fmt.Errorf("failed to call on_init: %w", err)
		}
	}

	return gm, nil
}

func (gm *LuaGameMode) Name() string {
	return gm.name
}

// RunScheduled runs the script functions queued with schedule_callback that
// are due at now.
func (gm *LuaGameMode) RunScheduled(now time.Time) error {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return gm.vm.RunDue(now)
}

func entityArg(e world.Entity) func(*golua.State) {
	return func(state *golua.State) {
		lua.PushEntity(state, e)
	}
}

// call runs an optional hook and reports whether it existed and succeeded.
func (gm *LuaGameMode) call(hook string, numReturns int, args ...any) ([]any, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if !gm.vm.HasFunction(hook) {
		return nil, false
	}

	results, err := gm.vm.CallFunctionWithReturn(hook, numReturns, args...)
	if err != nil {
		gm.logger.Error("lua gamemode hook error", "hook", hook, "error", err)
		return nil, false
	}
	return results, true
}

func (gm *LuaGameMode) OnJoin(e world.Entity) {
	gm.call("on_join", 0, entityArg(e))
}

func (gm *LuaGameMode) OnLeave(e world.Entity) {
	gm.call("on_leave", 0, entityArg(e))
}

func (gm *LuaGameMode) AllowCollect(e world.Entity, p world.Pickup) bool {
	results, ok := gm.call("allow_collect", 1, entityArg(e), p.Position.X, p.Position.Y)
	if !ok {
		return true
	}
	if allow, isBool := results[0].(bool); isBool {
		return allow
	}
	return true
}

func (gm *LuaGameMode) OnCollect(e world.Entity, ledger world.Ledger) {
	gm.call("on_collect", 0, entityArg(e), ledger.Round[e.Team])
}

// RoundWinner asks round_winner(score1, score2). A team index of 0 or 1
// names the winner, nil means a draw.
func (gm *LuaGameMode) RoundWinner(ledger world.Ledger) (world.Team, bool) {
	results, ok := gm.call("round_winner", 1, ledger.Round[world.Team1], ledger.Round[world.Team2])
	if !ok {
		return gm.base.RoundWinner(ledger)
	}

	team, isNumber := results[0].(float64)
	if !isNumber || (team != 0 && team != 1) {
		return 0, false
	}
	return world.Team(team), true
}

func (gm *LuaGameMode) OnRoundEnd(winner world.Team, hasWinner bool, ledger world.Ledger) {
	var arg any
	if hasWinner {
		arg = int(winner)
	}
	gm.call("on_round_end", 0, arg)
}

func (gm *LuaGameMode) OnRoundReset(round int) {
	gm.call("on_round_reset", 0, round)
}

func (gm *LuaGameMode) Close() {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.vm.Close()
}
