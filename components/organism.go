package components

// Member links a particle back to the population that owns it.
type Member struct {
	Population uint16
}
