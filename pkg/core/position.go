// Package core holds the domain types shared by the strike packages.
package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Position is a point in a named world with a view rotation.
// Yaw and pitch are kept at the host runtime's rotation precision.
type Position struct {
	World string
	Vec   mgl64.Vec3
	Yaw   float32
	Pitch float32
}

// NewPosition builds a Position from raw coordinates.
func NewPosition(world string, x, y, z float64, yaw, pitch float32) Position {
	return Position{World: world, Vec: mgl64.Vec3{x, y, z}, Yaw: yaw, Pitch: pitch}
}

// X returns the east/west coordinate.
func (p Position) X() float64 { return p.Vec.X() }

// Y returns the vertical coordinate.
func (p Position) Y() float64 { return p.Vec.Y() }

// Z returns the north/south coordinate.
func (p Position) Z() float64 { return p.Vec.Z() }

// Distance returns the euclidean distance to other. The second value is false
// when the positions are in different worlds.
func (p Position) Distance(other Position) (float64, bool) {
	if p.World != other.World {
		return 0, false
	}
	return p.Vec.Sub(other.Vec).Len(), true
}

// Block returns the integer block coordinates containing p.
func (p Position) Block() [3]int {
	return [3]int{
		int(math.Floor(p.Vec.X())),
		int(math.Floor(p.Vec.Y())),
		int(math.Floor(p.Vec.Z())),
	}
}

// WithWorld returns a copy of p moved to another world.
func (p Position) WithWorld(world string) Position {
	p.World = world
	return p
}

func (p Position) String() string {
	return fmt.Sprintf("%s (%.1f, %.1f, %.1f)", p.World, p.Vec.X(), p.Vec.Y(), p.Vec.Z())
}
