package movement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/siohaza/arenasync/internal/broadcast/mocks"
	"github.com/siohaza/arenasync/internal/protocol"
	"github.com/siohaza/arenasync/internal/world"
)

func newTestReconciler(t *testing.T) (*Reconciler, *world.Store, *mocks.MockBroadcaster) {
	t.Helper()

	ctrl := gomock.NewController(t)
	b := mocks.NewMockBroadcaster(ctrl)
	store := world.NewStore(world.Bounds{Width: 1600, Height: 920, Padding: 5}, 200, 120)
	store.Add(world.Entity{ID: "a", Position: world.Vec2{X: 10, Y: 10}, Size: world.Size{Height: 53, Width: 53}})
	store.Add(world.Entity{ID: "b", Position: world.Vec2{X: 20, Y: 20}, Size: world.Size{Height: 53, Width: 53}, Team: world.Team2})

	r := NewReconciler(store, b, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return r, store, b
}

func TestReportBroadcastsToOthersOnce(t *testing.T) {
	r, _, b := newTestReconciler(t)

	want := protocol.PlayerMoved{Player: world.Entity{
		ID:       "a",
		Position: world.Vec2{X: 100, Y: 100},
		Size:     world.Size{Height: 53, Width: 53},
	}}
	b.EXPECT().BroadcastOthers("a", want).Times(1)

	ctx := context.Background()
	if err := r.Report(ctx, "a", protocol.Movement{X: 100, Y: 100}); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	// identical report must not produce a second broadcast
	if err := r.Report(ctx, "a", protocol.Movement{X: 100, Y: 100}); err != nil {
		t.Fatalf("repeat report failed: %v", err)
	}
}

func TestReportRejectsMalformed(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	before, _ := store.Get("a")

	cases := []protocol.Movement{
		{X: math.NaN(), Y: 1},
		{X: 1, Y: math.Inf(1)},
		{X: 1, Y: 1, Rotation: math.NaN()},
		{X: 1, Y: 1, Size: &world.Size{Height: 0, Width: 10}},
		{X: 1, Y: 1, Size: &world.Size{Height: 10, Width: -3}},
	}

	for _, m := range cases {
		err := r.Report(context.Background(), "a", m)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("report %+v: got %v, want ErrMalformed", m, err)
		}
	}

	after, _ := store.Get("a")
	if after != before {
		t.Fatalf("malformed reports changed the entity: %+v", after)
	}
}

func TestReportUnknownSessionIsNoop(t *testing.T) {
	r, store, _ := newTestReconciler(t)

	if err := r.Report(context.Background(), "ghost", protocol.Movement{X: 5, Y: 5}); err != nil {
		t.Fatalf("unknown session returned %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("unknown session created an entity")
	}
}

func TestReportIgnoredOutsideActiveRound(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	store.AdvanceClock(1000)

	if err := r.Report(context.Background(), "a", protocol.Movement{X: 300, Y: 300}); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	e, _ := store.Get("a")
	if e.Position != (world.Vec2{X: 10, Y: 10}) {
		t.Fatalf("movement applied during ending phase: %+v", e.Position)
	}
}

func TestReportWrapsAndClamps(t *testing.T) {
	r, _, b := newTestReconciler(t)

	var got protocol.PlayerMoved
	b.EXPECT().BroadcastOthers("b", gomock.Any()).Do(func(_ string, ev protocol.Event) {
		got = ev.(protocol.PlayerMoved)
	})

	err := r.Report(context.Background(), "b", protocol.Movement{
		X:        -50,
		Y:        400,
		Rotation: 2 * math.Pi,
		Size:     &world.Size{Height: 999, Width: 60},
	})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if got.Player.Position != (world.Vec2{X: 1605, Y: 400}) {
		t.Fatalf("position not wrapped: %+v", got.Player.Position)
	}
	if got.Player.Size != (world.Size{Height: 200, Width: 60}) {
		t.Fatalf("size not clamped: %+v", got.Player.Size)
	}
	if math.Abs(got.Player.Rotation) > 1e-9 {
		t.Fatalf("rotation not normalized: %v", got.Player.Rotation)
	}
}

func TestReportHonoursCancelledContext(t *testing.T) {
	r, _, _ := newTestReconciler(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Report(ctx, "a", protocol.Movement{X: 1, Y: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
