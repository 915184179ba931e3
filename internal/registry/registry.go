package registry

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/siohaza/arenasync/internal/broadcast"
	"github.com/siohaza/arenasync/internal/callbacks"
	"github.com/siohaza/arenasync/internal/protocol"
	"github.com/siohaza/arenasync/internal/validation"
	"github.com/siohaza/arenasync/internal/world"
	"github.com/siohaza/arenasync/pkg/config"
)

// Dispatcher is the part of the broadcast dispatcher the registry drives.
type Dispatcher interface {
	broadcast.Broadcaster
	Attach(id string, conn broadcast.Conn, initial func() []protocol.Event) bool
	Detach(id string) bool
}

type Session struct {
	ID         string
	Team       world.Team
	RemoteAddr string
	JoinedAt   time.Time
	alive      atomic.Bool
}

func (s *Session) Alive() bool {
	return s.alive.Load()
}

type Registry struct {
	store       *world.Store
	dispatcher  Dispatcher
	callbacks   callbacks.Callbacks
	defaultSize float64
	spawnMargin float64
	logger      *slog.Logger

	sessions map[string]*Session
	counts   [2]int
	rng      *rand.Rand
	mu       sync.RWMutex

	// membership serializes join and leave announcements so a joiner's
	// snapshot and the newPlayer/playerLeft stream never overlap
	membership sync.Mutex
}

func New(cfg *config.Config, store *world.Store, dispatcher Dispatcher, cb callbacks.Callbacks, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cb == nil {
		cb = &callbacks.DefaultCallbacks{}
	}

	return &Registry{
		store:       store,
		dispatcher:  dispatcher,
		callbacks:   cb,
		defaultSize: cfg.Entity.DefaultSize,
		spawnMargin: cfg.Arena.SpawnMargin,
		logger:      logger,
		sessions:    make(map[string]*Session),
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// SetRand replaces the spawn position source.
func (r *Registry) SetRand(rng *rand.Rand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng = rng
}

// Join registers a connection, places its entity and announces it. The new
// connection first receives the full current state.
func (r *Registry) Join(conn broadcast.Conn, remoteAddr string) *Session {
	r.membership.Lock()

	bounds := r.store.Bounds()

	r.mu.Lock()
	team := world.Team1
	if r.counts[world.Team2] < r.counts[world.Team1] {
		team = world.Team2
	}
	session := &Session{
		ID:         uuid.NewString(),
		Team:       team,
		RemoteAddr: remoteAddr,
		JoinedAt:   time.Now(),
	}
	session.alive.Store(true)
	r.sessions[session.ID] = session
	r.counts[team]++
	spawn := validation.RandomPoint(bounds.Width, bounds.Height, r.spawnMargin, r.rng.Float64(), r.rng.Float64())
	r.mu.Unlock()

	r.store.Add(world.Entity{
		ID:       session.ID,
		Position: spawn,
		Size:     world.Size{Height: r.defaultSize, Width: r.defaultSize},
		Team:     team,
	})
	entity, _ := r.store.Get(session.ID)

	r.dispatcher.Attach(session.ID, conn, r.initialState)
	r.dispatcher.BroadcastOthers(session.ID, protocol.NewPlayer{Player: entity})

	r.membership.Unlock()

	r.logger.Info("player joined", "id", session.ID, "team", team, "addr", remoteAddr)
	r.callbacks.OnJoin(entity)

	return session
}

func (r *Registry) initialState() []protocol.Event {
	ledger := r.store.Ledger()

	events := []protocol.Event{
		protocol.CurrentPlayers{Players: r.store.Snapshot()},
	}
	if pickup := r.store.Pickup(); pickup.Active {
		events = append(events, protocol.PickupMoved{Position: pickup.Position})
	}
	events = append(events,
		protocol.ScoreUpdate{Scores: ledger.Round},
		protocol.RoundUpdate{RoundsWon: ledger.RoundsWon},
		protocol.ClockUpdate{SecondsRemaining: r.store.Round().Remaining},
	)
	return events
}

// Leave removes a session and its entity. Unknown ids are ignored, so racing
// disconnects are harmless.
func (r *Registry) Leave(id string) bool {
	r.membership.Lock()

	r.mu.Lock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		r.counts[session.Team]--
		session.alive.Store(false)
	}
	r.mu.Unlock()

	if !ok {
		r.membership.Unlock()
		r.logger.Debug("leave for unknown session", "id", id)
		return false
	}

	entity, _ := r.store.Get(id)
	r.store.Remove(id)
	r.dispatcher.Detach(id)
	r.dispatcher.BroadcastOthers(id, protocol.PlayerLeft{PlayerID: id})

	r.membership.Unlock()

	r.logger.Info("player left", "id", id, "team", session.Team)
	r.callbacks.OnLeave(entity)

	return true
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) TeamCounts() [2]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts
}
