package world

import "math"

type Team uint8

const (
	Team1 Team = 0
	Team2 Team = 1
)

func (t Team) Valid() bool {
	return t <= Team2
}

// Other returns the opposing team.
func (t Team) Other() Team {
	return 1 - t
}

type Vec2 struct {
	X float64
	Y float64
}

type Size struct {
	Height float64
	Width  float64
}

type Entity struct {
	ID       string
	Position Vec2
	Rotation float64
	Size     Size
	Team     Team
}

// Pickup is the shared collectible. Instance changes on every spawn so a
// collect can be tied to the exact pickup it observed.
type Pickup struct {
	Instance uint64
	Position Vec2
	Active   bool
}

type Ledger struct {
	Round     [2]int
	RoundsWon [2]int
}

type Phase int

const (
	PhaseActive Phase = iota
	PhaseEnding
	PhaseResetting
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseEnding:
		return "ending"
	case PhaseResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

type RoundState struct {
	Phase     Phase
	Remaining int
	Number    int
}

// Bounds is the arena rectangle plus the padding used when wrapping.
type Bounds struct {
	Width   float64
	Height  float64
	Padding float64
}

// Wrap moves a point that left the arena to the opposite edge, mirroring the
// client's world wrap so both sides agree on where an entity is.
func (b Bounds) Wrap(p Vec2) Vec2 {
	return Vec2{
		X: wrapAxis(p.X, 0, b.Width, b.Padding),
		Y: wrapAxis(p.Y, 0, b.Height, b.Padding),
	}
}

func wrapAxis(v, low, high, pad float64) float64 {
	if v < low-pad {
		return high + pad
	}
	if v > high+pad {
		return low - pad
	}
	return v
}

// NormalizeRotation maps an angle in radians into (-pi, pi].
func NormalizeRotation(r float64) float64 {
	if r > -math.Pi && r <= math.Pi {
		return r
	}
	r = math.Mod(r+math.Pi, 2*math.Pi)
	if r <= 0 {
		r += 2 * math.Pi
	}
	return r - math.Pi
}

// Overlaps reports whether two axis aligned boxes centred on a and b overlap.
func Overlaps(a Vec2, as Size, b Vec2, bs Size) bool {
	return math.Abs(a.X-b.X)*2 < as.Width+bs.Width &&
		math.Abs(a.Y-b.Y)*2 < as.Height+bs.Height
}
