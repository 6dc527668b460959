package game

import (
	"fmt"
	"strings"
)

// Speed is the number of whole ticks run per frame.
type Speed uint8

const (
	Paused Speed = iota
	Normal
	Fast
	VeryFast
)

var speedNames = [...]string{"paused", "normal", "fast", "very_fast"}

// Steps returns the ticks per frame: 0, 1, 2 or 4.
func (s Speed) Steps() int {
	switch s {
	case Normal:
		return 1
	case Fast:
		return 2
	case VeryFast:
		return 4
	}
	return 0
}

func (s Speed) String() string {
	if int(s) < len(speedNames) {
		return speedNames[s]
	}
	return fmt.Sprintf("speed(%d)", uint8(s))
}

// ParseSpeed accepts a speed name or its multiplier ("0", "1", "2", "4").
func ParseSpeed(s string) (Speed, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range speedNames {
		if s == name {
			return Speed(i), nil
		}
	}
	switch strings.TrimPrefix(s, "x") {
	case "0":
		return Paused, nil
	case "1":
		return Normal, nil
	case "2":
		return Fast, nil
	case "4":
		return VeryFast, nil
	}
	return Paused, fmt.Errorf("unknown speed %q", s)
}

// EpochState is the epoch timer. Elapsed advances by dt per tick and the
// epoch ends once it reaches Duration.
type EpochState struct {
	Epoch    int
	Elapsed  float32
	Duration float32
	Speed    Speed

	ticks int
}

// Remaining returns the simulated seconds left in the epoch.
func (s EpochState) Remaining() float32 {
	return max(0, s.Duration-s.Elapsed)
}
