package pickup

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/siohaza/arenasync/internal/broadcast"
	"github.com/siohaza/arenasync/internal/callbacks"
	"github.com/siohaza/arenasync/internal/protocol"
	"github.com/siohaza/arenasync/internal/validation"
	"github.com/siohaza/arenasync/internal/world"
	"github.com/siohaza/arenasync/pkg/config"
)

// Service owns the pickup lifecycle: spawning, collection and growth. Every
// change to the pickup or the round scores goes out to clients in the same
// order it reached the store.
type Service struct {
	store        *world.Store
	broadcaster  broadcast.Broadcaster
	callbacks    callbacks.Callbacks
	size         world.Size
	margin       float64
	growth       bool
	growthStep   float64
	serverDetect bool
	logger       *slog.Logger

	// mu orders store updates with their broadcasts. rng is only drawn under it.
	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg *config.Config, store *world.Store, broadcaster broadcast.Broadcaster, cb callbacks.Callbacks, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cb == nil {
		cb = &callbacks.DefaultCallbacks{}
	}

	return &Service{
		store:        store,
		broadcaster:  broadcaster,
		callbacks:    cb,
		size:         world.Size{Height: cfg.Pickup.Size, Width: cfg.Pickup.Size},
		margin:       cfg.Pickup.Margin,
		growth:       cfg.GrowthEnabled(),
		growthStep:   cfg.Pickup.GrowthStep,
		serverDetect: cfg.Pickup.ServerDetect,
		logger:       logger,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (s *Service) SetRand(rng *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rng
}

// Sequence runs fn with collections and spawns held off, handing it a spawn
// function that is only valid inside fn. Round transitions go through here
// so their score and pickup broadcasts never interleave with a collection.
func (s *Service) Sequence(fn func(spawn func() world.Pickup)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.spawn)
}

func (s *Service) nextPosition() world.Vec2 {
	bounds := s.store.Bounds()
	return validation.RandomPoint(bounds.Width, bounds.Height, s.margin, s.rng.Float64(), s.rng.Float64())
}

// spawn places a fresh pickup instance at a random spot inside the margin and
// announces it. Callers hold mu.
func (s *Service) spawn() world.Pickup {
	p := s.store.SetPickup(s.nextPosition())
	s.broadcaster.BroadcastAll(protocol.PickupMoved{Position: p.Position})
	s.logger.Debug("pickup spawned", "instance", p.Instance, "x", p.Position.X, "y", p.Position.Y)
	return p
}

// AttemptCollect credits id's team if its entity overlaps the active pickup.
// A pickup instance is collected at most once no matter how often this runs,
// and each collection announces exactly one score and one new pickup.
func (s *Service) AttemptCollect(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(id)
}

func (s *Service) collect(id string) bool {
	p := s.store.Pickup()
	if !p.Active || s.store.Round().Phase != world.PhaseActive {
		return false
	}

	e, ok := s.store.Get(id)
	if !ok {
		return false
	}
	if !world.Overlaps(e.Position, e.Size, p.Position, s.size) {
		return false
	}
	if !s.callbacks.AllowCollect(e, p) {
		return false
	}

	ledger, next, claimed := s.store.ClaimPickup(p.Instance, e.Team, s.nextPosition())
	if !claimed {
		return false
	}

	s.broadcaster.BroadcastAll(protocol.ScoreUpdate{Scores: ledger.Round})

	if s.growth {
		if grown, ok := s.store.Grow(id, s.growthStep); ok {
			e = grown
			s.broadcaster.BroadcastAll(protocol.PlayerMoved{Player: grown})
		}
	}

	s.logger.Debug("pickup collected", "id", id, "team", e.Team, "instance", p.Instance)
	s.callbacks.OnCollect(e, ledger)

	s.broadcaster.BroadcastAll(protocol.PickupMoved{Position: next.Position})
	s.logger.Debug("pickup spawned", "instance", next.Instance, "x", next.Position.X, "y", next.Position.Y)
	return true
}

// Poll restores a missing pickup and, with server side detection enabled,
// checks every entity for a collection.
func (s *Service) Poll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Round().Phase != world.PhaseActive {
		return
	}

	if !s.store.Pickup().Active {
		s.spawn()
		return
	}

	if !s.serverDetect {
		return
	}
	for _, e := range s.store.Snapshot() {
		if s.collect(e.ID) {
			return
		}
	}
}
