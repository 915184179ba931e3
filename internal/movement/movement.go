package movement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/siohaza/arenasync/internal/broadcast"
	"github.com/siohaza/arenasync/internal/protocol"
	"github.com/siohaza/arenasync/internal/validation"
	"github.com/siohaza/arenasync/internal/world"
)

var ErrMalformed = errors.New("malformed movement report")

// Reconciler stores client reported movement and relays real changes to the
// other sessions. Reports are trusted as sent.
type Reconciler struct {
	store       *world.Store
	broadcaster broadcast.Broadcaster
	logger      *slog.Logger
}

func NewReconciler(store *world.Store, broadcaster broadcast.Broadcaster, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (r *Reconciler) Report(ctx context.Context, id string, m protocol.Movement) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !validation.IsValidPosition(m.X, m.Y) {
		return fmt.Errorf("%w: position (%v, %v)", ErrMalformed, m.X, m.Y)
	}
	if !validation.IsValidRotation(m.Rotation) {
		return fmt.Errorf("%w: rotation %v", ErrMalformed, m.Rotation)
	}
	if m.Size != nil && !validation.IsValidSize(*m.Size) {
		return fmt.Errorf("%w: size %vx%v", ErrMalformed, m.Size.Width, m.Size.Height)
	}

	if r.store.Round().Phase != world.PhaseActive {
		return nil
	}

	entity, changed, ok := r.store.UpsertPosition(id, m.X, m.Y, m.Rotation, m.Size)
	if !ok {
		r.logger.Debug("movement for unknown session", "id", id)
		return nil
	}
	if !changed {
		return nil
	}

	r.broadcaster.BroadcastOthers(id, protocol.PlayerMoved{Player: entity})
	return nil
}
