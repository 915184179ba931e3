package bans

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager() (*Manager, *fakeClock) {
	clock := &fakeClock{now: time.Unix(5000, 0)}
	m := NewManager()
	m.clock = clock.Now
	return m, clock
}

func TestBanMatchesHostOnAnyPort(t *testing.T) {
	m, _ := newTestManager()

	if ban := m.Add("10.0.0.7:51234", "flooding", time.Minute); ban == nil || ban.Host != "10.0.0.7" {
		t.Fatalf("unexpected ban: %+v", ban)
	}

	banned, ban := m.IsBanned("10.0.0.7:40000")
	if !banned || ban.Reason != "flooding" {
		t.Fatalf("other port of banned host admitted: %v %+v", banned, ban)
	}
	if banned, _ := m.IsBanned("10.0.0.8:51234"); banned {
		t.Fatal("unrelated host refused")
	}
}

func TestBanExpires(t *testing.T) {
	m, clock := newTestManager()
	m.Add("[::1]:9000", "flooding", 30*time.Second)

	clock.now = clock.now.Add(29 * time.Second)
	if banned, _ := m.IsBanned("::1"); !banned {
		t.Fatal("ban lifted early")
	}

	clock.now = clock.now.Add(time.Second)
	if banned, _ := m.IsBanned("[::1]:9000"); banned {
		t.Fatal("ban outlived its duration")
	}
	if len(m.GetAll()) != 0 {
		t.Fatal("expired ban still listed")
	}
	if removed := m.Cleanup(); removed != 1 {
		t.Fatalf("cleanup removed %d entries, want 1", removed)
	}
}

func TestZeroDurationDoesNotBan(t *testing.T) {
	m, _ := newTestManager()

	if ban := m.Add("10.0.0.7:1", "flooding", 0); ban != nil {
		t.Fatalf("zero duration created a ban: %+v", ban)
	}
	if banned, _ := m.IsBanned("10.0.0.7:1"); banned {
		t.Fatal("host refused without a ban")
	}
}

func TestRemoveAndListOrder(t *testing.T) {
	m, _ := newTestManager()
	m.Add("10.0.0.1:1", "a", 3*time.Minute)
	m.Add("10.0.0.2:1", "b", time.Minute)
	m.Add("10.0.0.3:1", "c", 2*time.Minute)

	all := m.GetAll()
	if len(all) != 3 || all[0].Host != "10.0.0.2" || all[2].Host != "10.0.0.1" {
		t.Fatalf("unexpected order: %+v", all)
	}

	if !m.Remove("10.0.0.2:5555") {
		t.Fatal("remove missed an existing ban")
	}
	if m.Remove("10.0.0.2") {
		t.Fatal("second remove reported success")
	}
	if banned, _ := m.IsBanned("10.0.0.2:1"); banned {
		t.Fatal("removed ban still active")
	}
}
