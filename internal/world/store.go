package world

import (
	"sync"
)

// Store is the authoritative world: every entity, the pickup, the score
// ledger and the round state. Every method is atomic; callers get copies and
// never hold references into the store.
type Store struct {
	bounds  Bounds
	maxSize float64

	entities map[string]*Entity
	order    []string

	pickup     Pickup
	nextPickup uint64
	ledger     Ledger
	round      RoundState
	mu         sync.RWMutex
}

func NewStore(bounds Bounds, maxSize float64, roundDuration int) *Store {
	return &Store{
		bounds:   bounds,
		maxSize:  maxSize,
		entities: make(map[string]*Entity),
		round: RoundState{
			Phase:     PhaseActive,
			Remaining: roundDuration,
			Number:    1,
		},
	}
}

func (s *Store) Bounds() Bounds {
	return s.bounds
}

func (s *Store) MaxSize() float64 {
	return s.maxSize
}

// Add inserts a new entity. It returns false if the id is already present.
func (s *Store) Add(e Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[e.ID]; exists {
		return false
	}

	e.Position = s.bounds.Wrap(e.Position)
	e.Rotation = NormalizeRotation(e.Rotation)
	e.Size = s.clampSize(e.Size)

	s.entities[e.ID] = &e
	s.order = append(s.order, e.ID)
	return true
}

func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[id]; !exists {
		return false
	}
	delete(s.entities, id)

	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) Get(id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// UpsertPosition stores a client reported state. Position is wrapped into the
// arena, rotation normalized and size clamped to the maximum. A nil size keeps
// the stored one. changed is false when the stored state is identical after
// normalization; ok is false for an unknown id.
func (s *Store) UpsertPosition(id string, x, y, rotation float64, size *Size) (e Entity, changed bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.entities[id]
	if !exists {
		return Entity{}, false, false
	}

	next := *current
	next.Position = s.bounds.Wrap(Vec2{X: x, Y: y})
	next.Rotation = NormalizeRotation(rotation)
	if size != nil {
		next.Size = s.clampSize(*size)
	}

	if next == *current {
		return next, false, true
	}

	*current = next
	return next, true, true
}

// Grow enlarges an entity by step in both dimensions while both are still
// below the maximum, then clamps. The bool reports whether the size changed.
func (s *Store) Grow(id string, step float64) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}

	if e.Size.Height >= s.maxSize || e.Size.Width >= s.maxSize {
		return *e, false
	}

	e.Size = s.clampSize(Size{
		Height: e.Size.Height + step,
		Width:  e.Size.Width + step,
	})
	return *e, true
}

// Snapshot returns every entity in insertion order.
func (s *Store) Snapshot() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities := make([]Entity, 0, len(s.order))
	for _, id := range s.order {
		entities = append(entities, *s.entities[id])
	}
	return entities
}

// SetPickup activates a new pickup instance at pos, replacing any previous one.
func (s *Store) SetPickup(pos Vec2) Pickup {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPickup++
	s.pickup = Pickup{
		Instance: s.nextPickup,
		Position: pos,
		Active:   true,
	}
	return s.pickup
}

func (s *Store) ClearPickup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pickup.Active = false
}

func (s *Store) Pickup() Pickup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pickup
}

// ClaimPickup credits team for the given pickup instance and puts the next
// instance at next in the same step, so no reader ever sees the arena without
// a pickup between the two. It fails unless instance is the active pickup and
// the round is running; only one caller can win a given instance.
func (s *Store) ClaimPickup(instance uint64, team Team, next Vec2) (Ledger, Pickup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round.Phase != PhaseActive || !s.pickup.Active || s.pickup.Instance != instance {
		return s.ledger, s.pickup, false
	}
	if team.Valid() {
		s.ledger.Round[team]++
	}
	s.nextPickup++
	s.pickup = Pickup{
		Instance: s.nextPickup,
		Position: next,
		Active:   true,
	}
	return s.ledger, s.pickup, true
}

func (s *Store) IncrementScore(team Team) Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()

	if team.Valid() {
		s.ledger.Round[team]++
	}
	return s.ledger
}

func (s *Store) ResetRoundScores() Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.Round = [2]int{}
	return s.ledger
}

func (s *Store) CreditRoundWin(team Team) Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()

	if team.Valid() {
		s.ledger.RoundsWon[team]++
	}
	return s.ledger
}

func (s *Store) Ledger() Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

func (s *Store) Round() RoundState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round
}

// AdvanceClock takes seconds off an active round, clamping at zero. expired is
// true only for the call that moved the round from Active to Ending.
func (s *Store) AdvanceClock(seconds int) (state RoundState, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round.Phase != PhaseActive || seconds <= 0 {
		return s.round, false
	}

	s.round.Remaining -= seconds
	if s.round.Remaining <= 0 {
		s.round.Remaining = 0
		s.round.Phase = PhaseEnding
		return s.round, true
	}
	return s.round, false
}

// BeginReset moves an ending round to Resetting. It reports false from any
// other phase.
func (s *Store) BeginReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round.Phase != PhaseEnding {
		return false
	}
	s.round.Phase = PhaseResetting
	return true
}

// FinishReset clears round scores, restarts the clock and activates the next
// round. It only acts on a round in Resetting.
func (s *Store) FinishReset(duration int) (RoundState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round.Phase != PhaseResetting {
		return s.round, false
	}
	s.ledger.Round = [2]int{}
	s.round = RoundState{
		Phase:     PhaseActive,
		Remaining: duration,
		Number:    s.round.Number + 1,
	}
	return s.round, true
}

func (s *Store) clampSize(size Size) Size {
	if size.Height > s.maxSize {
		size.Height = s.maxSize
	}
	if size.Width > s.maxSize {
		size.Width = s.maxSize
	}
	return size
}
