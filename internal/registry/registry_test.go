package registry

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"github.com/siohaza/arenasync/internal/broadcast"
	"github.com/siohaza/arenasync/internal/callbacks"
	"github.com/siohaza/arenasync/internal/protocol"
	"github.com/siohaza/arenasync/internal/world"
	"github.com/siohaza/arenasync/pkg/config"
)

type sent struct {
	to      string
	exclude string
	ev      protocol.Event
}

type fakeDispatcher struct {
	mu       sync.Mutex
	attached map[string][]protocol.Event
	sent     []sent
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{attached: make(map[string][]protocol.Event)}
}

func (f *fakeDispatcher) Attach(id string, conn broadcast.Conn, initial func() []protocol.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached[id] = initial()
	return true
}

func (f *fakeDispatcher) Detach(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.attached[id]
	delete(f.attached, id)
	return ok
}

func (f *fakeDispatcher) BroadcastAll(ev protocol.Event) {
	f.BroadcastOthers("", ev)
}

func (f *fakeDispatcher) BroadcastOthers(exclude string, ev protocol.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{exclude: exclude, ev: ev})
}

func (f *fakeDispatcher) SendTo(id string, ev protocol.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: id, ev: ev})
}

func (f *fakeDispatcher) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type leaveCounter struct {
	callbacks.DefaultCallbacks
	joins, leaves int
}

func (c *leaveCounter) OnJoin(e world.Entity)  { c.joins++ }
func (c *leaveCounter) OnLeave(e world.Entity) { c.leaves++ }

func newTestRegistry(cb callbacks.Callbacks) (*Registry, *world.Store, *fakeDispatcher) {
	cfg := config.Default()
	store := world.NewStore(world.Bounds{Width: cfg.Arena.Width, Height: cfg.Arena.Height, Padding: cfg.Arena.WrapPadding}, cfg.Entity.MaxSize, cfg.Round.Duration)
	dispatcher := newFakeDispatcher()
	r := New(cfg, store, dispatcher, cb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.SetRand(rand.New(rand.NewPCG(1, 2)))
	return r, store, dispatcher
}

func TestJoinBalancesTeams(t *testing.T) {
	r, _, _ := newTestRegistry(nil)

	a := r.Join(nil, "a")
	b := r.Join(nil, "b")
	c := r.Join(nil, "c")

	if a.Team != world.Team1 || b.Team != world.Team2 || c.Team != world.Team1 {
		t.Fatalf("unexpected teams %v %v %v", a.Team, b.Team, c.Team)
	}

	r.Leave(a.ID)
	r.Leave(c.ID)
	d := r.Join(nil, "d")
	if d.Team != world.Team1 {
		t.Fatalf("joiner not placed on the smaller team: %v", d.Team)
	}
	if counts := r.TeamCounts(); counts != [2]int{1, 1} {
		t.Fatalf("unexpected team counts %v", counts)
	}
}

func TestJoinSendsSnapshotAndAnnounces(t *testing.T) {
	r, store, dispatcher := newTestRegistry(nil)
	store.SetPickup(world.Vec2{X: 300, Y: 300})

	first := r.Join(nil, "a")
	dispatcher.reset()
	second := r.Join(nil, "b")

	initial := dispatcher.attached[second.ID]
	if len(initial) != 5 {
		t.Fatalf("expected 5 initial events, got %d", len(initial))
	}

	players, ok := initial[0].(protocol.CurrentPlayers)
	if !ok {
		t.Fatalf("first initial event is %T", initial[0])
	}
	if len(players.Players) != 2 || players.Players[0].ID != first.ID || players.Players[1].ID != second.ID {
		t.Fatalf("snapshot not in join order: %+v", players.Players)
	}
	if _, ok := initial[1].(protocol.PickupMoved); !ok {
		t.Fatalf("pickup location missing from initial state: %T", initial[1])
	}
	if _, ok := initial[4].(protocol.ClockUpdate); !ok {
		t.Fatalf("clock missing from initial state: %T", initial[4])
	}

	if len(dispatcher.sent) != 1 {
		t.Fatalf("expected one announcement, got %d", len(dispatcher.sent))
	}
	announce := dispatcher.sent[0]
	np, ok := announce.ev.(protocol.NewPlayer)
	if !ok || announce.exclude != second.ID || np.Player.ID != second.ID {
		t.Fatalf("unexpected announcement %+v", announce)
	}

	e, _ := store.Get(second.ID)
	if e.Size.Height != 53 || e.Size.Width != 53 {
		t.Fatalf("entity not created at default size: %+v", e.Size)
	}
	if e.Position.X < 50 || e.Position.X > 1550 || e.Position.Y < 50 || e.Position.Y > 870 {
		t.Fatalf("spawn outside margin: %+v", e.Position)
	}
}

func TestLeaveUnknownIsNoop(t *testing.T) {
	counter := &leaveCounter{}
	r, store, dispatcher := newTestRegistry(counter)

	s := r.Join(nil, "a")
	dispatcher.reset()

	if r.Leave("never-joined") {
		t.Fatalf("leave of unknown id reported success")
	}
	if store.Len() != 1 || len(dispatcher.sent) != 0 {
		t.Fatalf("unknown leave mutated state: len=%d sent=%d", store.Len(), len(dispatcher.sent))
	}

	if !r.Leave(s.ID) {
		t.Fatalf("leave failed")
	}
	if r.Leave(s.ID) {
		t.Fatalf("second leave reported success")
	}
	if s.Alive() {
		t.Fatalf("session still alive after leave")
	}
	if store.Len() != 0 || len(dispatcher.sent) != 1 {
		t.Fatalf("leave not applied exactly once: len=%d sent=%d", store.Len(), len(dispatcher.sent))
	}
	if left, ok := dispatcher.sent[0].ev.(protocol.PlayerLeft); !ok || left.PlayerID != s.ID {
		t.Fatalf("unexpected leave event %+v", dispatcher.sent[0])
	}
	if counter.joins != 1 || counter.leaves != 1 {
		t.Fatalf("callbacks joins=%d leaves=%d", counter.joins, counter.leaves)
	}
}

func TestSnapshotMatchesSessions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r, store, _ := newTestRegistry(nil)

		var live []string
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(live) == 0 || rapid.Bool().Draw(t, "join") {
				live = append(live, r.Join(nil, "addr").ID)
				continue
			}

			if rapid.IntRange(0, 4).Draw(t, "stale") == 0 {
				r.Leave("stale-" + live[0])
				continue
			}
			idx := rapid.IntRange(0, len(live)-1).Draw(t, "leave")
			r.Leave(live[idx])
			live = slices.Delete(live, idx, idx+1)
		}

		snapshot := store.Snapshot()
		if len(snapshot) != len(live) || r.Count() != len(live) {
			t.Fatalf("snapshot=%d sessions=%d want %d", len(snapshot), r.Count(), len(live))
		}

		var teams [2]int
		for i, e := range snapshot {
			if e.ID != live[i] {
				t.Fatalf("snapshot[%d] = %s, want %s", i, e.ID, live[i])
			}
			s, ok := r.Get(e.ID)
			if !ok || s.Team != e.Team {
				t.Fatalf("entity %s has no matching session", e.ID)
			}
			teams[e.Team]++
		}
		if teams != r.TeamCounts() {
			t.Fatalf("team counts %v, entities say %v", r.TeamCounts(), teams)
		}
	})
}
