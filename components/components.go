// Package components defines ECS components for the simulation.
package components

// Food is a shared food item. Value is credited to the score of the
// population whose particle eats it.
type Food struct {
	Value   float32
	Respawn float32 // seconds until visible again
	Visible bool
}

// Eaten hides the item and starts its respawn timer. A cooldown of zero or
// less leaves it hidden until the next reset.
func (f *Food) Eaten(cooldown float32) {
	f.Visible = false
	f.Respawn = cooldown
}

// Advance counts down the respawn timer and reports whether the item
// reappeared this step.
func (f *Food) Advance(dt float32) bool {
	if f.Visible || f.Respawn <= 0 {
		return false
	}
	f.Respawn -= dt
	if f.Respawn <= 0 {
		f.Respawn = 0
		f.Visible = true
		return true
	}
	return false
}
