package validation

import (
	"math"

	"github.com/siohaza/arenasync/internal/world"
)

func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsValidPosition only rejects values that cannot be stored. Coordinates
// outside the arena are legal and get wrapped.
func IsValidPosition(x, y float64) bool {
	return IsFinite(x, y)
}

func IsValidRotation(rotation float64) bool {
	return IsFinite(rotation)
}

func IsValidSize(size world.Size) bool {
	if !IsFinite(size.Height, size.Width) {
		return false
	}
	return size.Height > 0 && size.Width > 0
}

// RandomPoint maps two unit samples onto the rectangle [margin, width-margin] x
// [margin, height-margin].
func RandomPoint(width, height, margin, u, v float64) world.Vec2 {
	return world.Vec2{
		X: margin + u*(width-2*margin),
		Y: margin + v*(height-2*margin),
	}
}

func CalculateDistance(a, b world.Vec2) float64 {
	return math.Sqrt(CalculateDistanceSquared(a, b))
}

func CalculateDistanceSquared(a, b world.Vec2) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}
