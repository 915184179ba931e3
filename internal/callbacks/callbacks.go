package callbacks

import (
	"sync"

	"github.com/siohaza/arenasync/internal/world"
)

type Callbacks interface {
	OnJoin(e world.Entity)
	OnLeave(e world.Entity)
	AllowCollect(e world.Entity, p world.Pickup) bool
	OnCollect(e world.Entity, ledger world.Ledger)
	OnRoundEnd(winner world.Team, hasWinner bool, ledger world.Ledger)
	OnRoundReset(round int)
}

type DefaultCallbacks struct{}

func (d *DefaultCallbacks) OnJoin(e world.Entity)                            {}
func (d *DefaultCallbacks) OnLeave(e world.Entity)                           {}
func (d *DefaultCallbacks) AllowCollect(e world.Entity, p world.Pickup) bool { return true }
func (d *DefaultCallbacks) OnCollect(e world.Entity, ledger world.Ledger)    {}
func (d *DefaultCallbacks) OnRoundEnd(winner world.Team, hasWinner bool, ledger world.Ledger) {
}
func (d *DefaultCallbacks) OnRoundReset(round int) {}

// CallbackChain fans every hook out to the registered callbacks in
// registration order. Veto hooks stop at the first refusal.
type CallbackChain struct {
	callbacks []Callbacks
	mu        sync.RWMutex
}

func NewCallbackChain() *CallbackChain {
	return &CallbackChain{
		callbacks: make([]Callbacks, 0),
	}
}

func (c *CallbackChain) Register(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

func (c *CallbackChain) list() []Callbacks {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callbacks
}

func (c *CallbackChain) OnJoin(e world.Entity) {
	for _, cb := range c.list() {
		cb.OnJoin(e)
	}
}

func (c *CallbackChain) OnLeave(e world.Entity) {
	for _, cb := range c.list() {
		cb.OnLeave(e)
	}
}

func (c *CallbackChain) AllowCollect(e world.Entity, p world.Pickup) bool {
	for _, cb := range c.list() {
		if !cb.AllowCollect(e, p) {
			return false
		}
	}
	return true
}

func (c *CallbackChain) OnCollect(e world.Entity, ledger world.Ledger) {
	for _, cb := range c.list() {
		cb.OnCollect(e, ledger)
	}
}

func (c *CallbackChain) OnRoundEnd(winner world.Team, hasWinner bool, ledger world.Ledger) {
	for _, cb := range c.list() {
		cb.OnRoundEnd(winner, hasWinner, ledger)
	}
}

func (c *CallbackChain) OnRoundReset(round int) {
	for _, cb := range c.list() {
		cb.OnRoundReset(round)
	}
}
