package server

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestSecondCounterCarriesRemainder(t *testing.T) {
	start := time.Unix(1000, 0)
	c := secondCounter{last: start}

	steps := []struct {
		at   time.Duration
		want int
	}{
		{400 * time.Millisecond, 0},
		{800 * time.Millisecond, 0},
		{1200 * time.Millisecond, 1},
		{1900 * time.Millisecond, 0},
		{2000 * time.Millisecond, 1},
		{5500 * time.Millisecond, 3},
		{6000 * time.Millisecond, 1},
	}
	for _, step := range steps {
		if got := c.advance(start.Add(step.at)); got != step.want {
			t.Fatalf("advance to %v = %d, want %d", step.at, got, step.want)
		}
	}
}

func TestSecondCounterIgnoresClockGoingBack(t *testing.T) {
	start := time.Unix(1000, 0)
	c := secondCounter{last: start}

	if got := c.advance(start.Add(-5 * time.Second)); got != 0 {
		t.Fatalf("backwards step counted %d seconds", got)
	}
	if got := c.advance(start.Add(-4 * time.Second)); got != 1 {
		t.Fatalf("counter did not resume from the new base: %d", got)
	}
}

func TestSecondCounterNeverDrifts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := time.Unix(1000, 0)
		c := secondCounter{last: start}

		now := start
		total := 0
		steps := rapid.SliceOfN(rapid.Int64Range(0, int64(3*time.Second)), 1, 200).Draw(t, "steps")
		for _, step := range steps {
			now = now.Add(time.Duration(step))
			total += c.advance(now)
		}

		if want := int(now.Sub(start) / time.Second); total != want {
			t.Fatalf("counted %d seconds over %v", total, now.Sub(start))
		}
	})
}
