package components

// Particle holds the immutable per-particle data. Type is assigned at spawn
// as slot index mod type count.
type Particle struct {
	Type uint8
	Slot uint16 // index within the owning population
}
