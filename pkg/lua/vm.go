package lua

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Shopify/go-lua"
)

var ErrClosed = errors.New("lua vm closed")

// VM is one game mode script. Calls into the script are not safe for
// concurrent use; the game mode serializes them. The schedule has its own lock
// since the script API adds to it from inside calls.
type VM struct {
	state  *lua.State
	closed bool

	mu       sync.Mutex
	schedule map[int]*scheduledCall
	lastID   int
}

// scheduledCall is a script function the arena clock calls back later, once
// or every interval.
type scheduledCall struct {
	id       int
	function string
	every    time.Duration
	repeat   bool
	due      time.Time
}

func NewVM() *VM {
	state := lua.NewState()
	openSafeLibraries(state)
	return &VM{
		state:    state,
		schedule: make(map[int]*scheduledCall),
	}
}

// Scripts get the base, string, table and math libraries but nothing that
// reaches the filesystem or the process.
func openSafeLibraries(state *lua.State) {
	lua.OpenLibraries(state)

	for _, name := range []string{"io", "os", "debug", "dofile", "loadfile"} {
		state.PushNil()
		state.SetGlobal(name)
	}
}

func (vm *VM) LoadFile(path string) error {
	if err := lua.DoFile(vm.state, path); err != nil {
		return fmt.Errorf("failed to load game mode script %s: %w", path, err)
	}
	return nil
}

func (vm *VM) LoadString(code string) error {
	if err := lua.DoString(vm.state, code); err != nil {
		return fmt.Errorf("failed to load game mode script: %w", err)
	}
	return nil
}

// Close drops every scheduled call. Later calls into the script fail with
// ErrClosed.
func (vm *VM) Close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.closed = true
	vm.schedule = make(map[int]*scheduledCall)
}

func (vm *VM) isClosed() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.closed
}

// Schedule arranges for the global function to run after interval, and again
// every interval when repeat is set. It returns the id Cancel takes.
func (vm *VM) Schedule(function string, interval time.Duration, repeat bool) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.lastID++
	vm.schedule[vm.lastID] = &scheduledCall{
		id:       vm.lastID,
		function: function,
		every:    interval,
		repeat:   repeat,
		due:      time.Now().Add(interval),
	}
	return vm.lastID
}

func (vm *VM) Cancel(id int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	delete(vm.schedule, id)
}

// Pending is the number of calls still scheduled.
func (vm *VM) Pending() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.schedule)
}

// RunDue calls every scheduled function due at now, earliest first. A failing
// call does not stop the others; their errors are joined.
func (vm *VM) RunDue(now time.Time) error {
	vm.mu.Lock()
	var due []scheduledCall
	for id, call := range vm.schedule {
		if now.Before(call.due) {
			continue
		}
		due = append(due, *call)
		if call.repeat {
			call.due = now.Add(call.every)
		} else {
			delete(vm.schedule, id)
		}
	}
	vm.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if !due[i].due.Equal(due[j].due) {
			return due[i].due.Before(due[j].due)
		}
		return due[i].id < due[j].id
	})

	var errs []error
	for _, call := range due {
		if err := vm.CallFunction(call.function); err != nil {
			errs = append(errs, fmt.Errorf("scheduled call %s: %w", call.function, err))
		}
	}
	return errors.Join(errs...)
}

func (vm *VM) GetGlobalString(name string) (string, error) {
	vm.state.Global(name)
	defer vm.state.Pop(1)

	if !vm.state.IsString(-1) {
		return "", fmt.Errorf("global %s is not a string", name)
	}
	value, _ := vm.state.ToString(-1)
	return value, nil
}

func (vm *VM) push(arg any) error {
	switch v := arg.(type) {
	case nil:
		vm.state.PushNil()
	case bool:
		vm.state.PushBoolean(v)
	case int:
		vm.state.PushInteger(v)
	case float64:
		vm.state.PushNumber(v)
	case string:
		vm.state.PushString(v)
	case func(*lua.State):
		v(vm.state)
	default:
		return fmt.Errorf("cannot pass %T to a game mode script", arg)
	}
	return nil
}

// value converts the stack slot at index to nil, bool, float64 or string.
// Tables and functions come back as nil.
func (vm *VM) value(index int) any {
	switch {
	case vm.state.IsBoolean(index):
		return vm.state.ToBoolean(index)
	case vm.state.IsNumber(index):
		n, _ := vm.state.ToNumber(index)
		return n
	case vm.state.IsString(index):
		s, _ := vm.state.ToString(index)
		return s
	}
	return nil
}

// CallFunction calls the global function name. Arguments may be plain values
// or a func(*lua.State) that pushes exactly one value, used for tables.
func (vm *VM) CallFunction(name string, args ...any) error {
	_, err := vm.CallFunctionWithReturn(name, 0, args...)
	return err
}

// CallFunctionWithReturn calls name and returns exactly numReturns converted
// results. The stack is left as it was found, on success or failure.
func (vm *VM) CallFunctionWithReturn(name string, numReturns int, args ...any) ([]any, error) {
	if vm.isClosed() {
		return nil, ErrClosed
	}

	top := vm.state.Top()
	defer vm.state.SetTop(top)

	vm.state.Global(name)
	if !vm.state.IsFunction(-1) {
		return nil, fmt.Errorf("global %s is not a function", name)
	}
	for _, arg := range args {
		if err := vm.push(arg); err != nil {
			return nil, err
		}
	}

	if err := vm.state.ProtectedCall(len(args), numReturns, 0); err != nil {
		return nil, fmt.Errorf("game mode function %s: %w", name, err)
	}

	results := make([]any, numReturns)
	for i := range results {
		results[i] = vm.value(i - numReturns)
	}
	return results, nil
}

func (vm *VM) HasFunction(name string) bool {
	vm.state.Global(name)
	defer vm.state.Pop(1)
	return vm.state.IsFunction(-1)
}

func (vm *VM) State() *lua.State {
	return vm.state
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
