package round

import (
	"log/slog"
	"sync"

	"github.com/siohaza/arenasync/internal/broadcast"
	"github.com/siohaza/arenasync/internal/callbacks"
	"github.com/siohaza/arenasync/internal/protocol"
	"github.com/siohaza/arenasync/internal/world"
	"github.com/siohaza/arenasync/pkg/config"
)

type WinnerDecider interface {
	RoundWinner(ledger world.Ledger) (world.Team, bool)
}

// Spawner places pickups. Sequence holds off collections while fn runs, so
// score resets and the new round's pickup reach clients in store order.
type Spawner interface {
	Sequence(fn func(spawn func() world.Pickup))
}

// Machine drives the round through Active, Ending and Resetting. The clock
// only moves through Advance.
type Machine struct {
	store        *world.Store
	broadcaster  broadcast.Broadcaster
	decider      WinnerDecider
	callbacks    callbacks.Callbacks
	spawner      Spawner
	duration     int
	intermission int
	logger       *slog.Logger

	intermissionLeft int
	mu               sync.Mutex
}

func New(cfg *config.Config, store *world.Store, broadcaster broadcast.Broadcaster, decider WinnerDecider, cb callbacks.Callbacks, spawner Spawner, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	if cb == nil {
		cb = &callbacks.DefaultCallbacks{}
	}

	return &Machine{
		store:        store,
		broadcaster:  broadcaster,
		decider:      decider,
		callbacks:    cb,
		spawner:      spawner,
		duration:     cfg.Round.Duration,
		intermission: cfg.Round.Intermission,
		logger:       logger,
	}
}

// Start clears round scores and places the first pickup.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.spawner.Sequence(func(spawn func() world.Pickup) {
		m.store.ResetRoundScores()
		spawn()
	})
	m.logger.Info("round started", "round", m.store.Round().Number, "duration", m.duration)
}

func (m *Machine) Tick() {
	m.Advance(1)
}

// Advance accounts for seconds of wall clock time. A late scheduler passes
// more than one second; the clock clamps at zero and the round still ends
// exactly once.
func (m *Machine) Advance(seconds int) {
	if seconds <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.spawner.Sequence(func(spawn func() world.Pickup) {
		switch m.store.Round().Phase {
		case world.PhaseActive:
			state, expired := m.store.AdvanceClock(seconds)
			m.broadcaster.BroadcastAll(protocol.ClockUpdate{SecondsRemaining: state.Remaining})
			if expired {
				m.end(spawn)
			}
		case world.PhaseEnding:
			m.intermissionLeft -= seconds
			if m.intermissionLeft <= 0 {
				m.reset(spawn)
			}
		case world.PhaseResetting:
			m.reset(spawn)
		}
	})
}

func (m *Machine) end(spawn func() world.Pickup) {
	ledger := m.store.Ledger()
	winner, hasWinner := m.decider.RoundWinner(ledger)
	if hasWinner {
		ledger = m.store.CreditRoundWin(winner)
	}

	m.broadcaster.BroadcastAll(protocol.RoundEnded{Winner: winner, HasWinner: hasWinner, Scores: ledger.Round})
	m.broadcaster.BroadcastAll(protocol.RoundUpdate{RoundsWon: ledger.RoundsWon})

	if hasWinner {
		m.logger.Info("round ended", "round", m.store.Round().Number, "winner", winner, "scores", ledger.Round)
	} else {
		m.logger.Info("round ended in a draw", "round", m.store.Round().Number, "scores", ledger.Round)
	}
	m.callbacks.OnRoundEnd(winner, hasWinner, ledger)

	if m.intermission > 0 {
		m.intermissionLeft = m.intermission
		return
	}
	m.reset(spawn)
}

func (m *Machine) reset(spawn func() world.Pickup) {
	if !m.store.BeginReset() && m.store.Round().Phase != world.PhaseResetting {
		return
	}

	m.store.ClearPickup()
	state, ok := m.store.FinishReset(m.duration)
	if !ok {
		return
	}
	ledger := m.store.Ledger()

	m.broadcaster.BroadcastAll(protocol.ScoreUpdate{Scores: ledger.Round})
	m.broadcaster.BroadcastAll(protocol.RoundReset{Round: state.Number})
	m.broadcaster.BroadcastAll(protocol.ClockUpdate{SecondsRemaining: state.Remaining})
	spawn()

	m.logger.Info("round reset", "round", state.Number)
	m.callbacks.OnRoundReset(state.Number)
}
