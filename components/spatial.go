package components

import "github.com/go-gl/mathgl/mgl32"

// Position represents an entity's world position.
type Position struct {
	mgl32.Vec3
}

// Velocity represents an entity's velocity.
type Velocity struct {
	mgl32.Vec3
}
