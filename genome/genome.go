// Package genome defines the heritable particle-interaction strategy of a
// population: a signed force matrix between particle types and a signed
// affinity of each type toward food.
package genome

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// MaxForce bounds every decoded coefficient to [-MaxForce, MaxForce].
const MaxForce float32 = 2.0

// MaxFitnessHistory is the number of most recent epoch scores kept per genome.
const MaxFitnessHistory = 10

// ErrShape is returned when a genome's slices do not match its type count,
// or contain non-finite or out-of-range values.
var ErrShape = errors.New("malformed genome")

// Genome is the read side shared by every codec.
// Out-of-range indices decode to 0 so the physics hot path never panics.
type Genome interface {
	Types() int
	DecodeForce(a, b int) float32
	DecodeFoodForce(t int) float32
}

// Vector is the canonical flat floating-point genome.
// Invariant: len(ForceMatrix) == Types*Types and len(FoodForces) == Types.
type Vector struct {
	ForceMatrix    []float32 `json:"force_matrix"`
	FoodForces     []float32 `json:"food_forces"`
	TypeCount      int       `json:"type_count"`
	FitnessHistory []float32 `json:"fitness_history"`
	Coherence      float32   `json:"strategy_coherence"`
}

// New validates the slices and returns a genome with coherence computed.
// The slices are copied.
func New(types int, force, food []float32) (*Vector, error) {
	v := &Vector{
		ForceMatrix: append([]float32(nil), force...),
		FoodForces:  append([]float32(nil), food...),
		TypeCount:   types,
	}
	if err := v.Check(MaxForce); err != nil {
		return nil, err
	}
	v.Refresh()
	return v, nil
}

// FromRows builds a genome from a row-major matrix (row = emitting type).
func FromRows(rows [][]float32, food []float32) (*Vector, error) {
	n := len(rows)
	flat := make([]float32, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrShape, i, len(row), n)
		}
		flat = append(flat, row...)
	}
	return New(n, flat, food)
}

// Random returns a genome with forces and food affinities uniform in [-1, 1].
func Random(types int, rng *rand.Rand) *Vector {
	v := &Vector{
		ForceMatrix: make([]float32, types*types),
		FoodForces:  make([]float32, types),
		TypeCount:   types,
	}
	for i := range v.ForceMatrix {
		v.ForceMatrix[i] = rng.Float32()*2 - 1
	}
	for i := range v.FoodForces {
		v.FoodForces[i] = rng.Float32()*2 - 1
	}
	v.Refresh()
	return v
}

// Check verifies the length invariant and that every value is finite and
// within [-limit, limit]. The archive uses a wider limit than MaxForce.
func (v *Vector) Check(limit float32) error {
	if v.TypeCount < 1 {
		return fmt.Errorf("%w: type count %d", ErrShape, v.TypeCount)
	}
	if len(v.ForceMatrix) != v.TypeCount*v.TypeCount {
		return fmt.Errorf("%w: force matrix has %d entries, want %d",
			ErrShape, len(v.ForceMatrix), v.TypeCount*v.TypeCount)
	}
	if len(v.FoodForces) != v.TypeCount {
		return fmt.Errorf("%w: food forces has %d entries, want %d",
			ErrShape, len(v.FoodForces), v.TypeCount)
	}
	for i, f := range v.ForceMatrix {
		if !finiteIn(f, limit) {
			return fmt.Errorf("%w: force[%d] = %v", ErrShape, i, f)
		}
	}
	for i, f := range v.FoodForces {
		if !finiteIn(f, limit) {
			return fmt.Errorf("%w: food force[%d] = %v", ErrShape, i, f)
		}
	}
	return nil
}

func finiteIn(f, limit float32) bool {
	x := float64(f)
	return !math.IsNaN(x) && !math.IsInf(x, 0) && f >= -limit && f <= limit
}

// Types returns the number of particle types.
func (v *Vector) Types() int { return v.TypeCount }

// DecodeForce returns the coefficient type a applies toward type b.
func (v *Vector) DecodeForce(a, b int) float32 {
	n := v.TypeCount
	if a < 0 || b < 0 || a >= n || b >= n {
		return 0
	}
	return Clamp(v.ForceMatrix[a*n+b])
}

// DecodeFoodForce returns the food affinity of type t.
func (v *Vector) DecodeFoodForce(t int) float32 {
	if t < 0 || t >= v.TypeCount {
		return 0
	}
	return Clamp(v.FoodForces[t])
}

// SetForce edits one interaction and recomputes coherence.
func (v *Vector) SetForce(a, b int, f float32) {
	n := v.TypeCount
	if a < 0 || b < 0 || a >= n || b >= n {
		return
	}
	v.ForceMatrix[a*n+b] = Clamp(f)
	v.Refresh()
}

// SetFoodForce edits one food affinity and recomputes coherence.
func (v *Vector) SetFoodForce(t int, f float32) {
	if t < 0 || t >= v.TypeCount {
		return
	}
	v.FoodForces[t] = Clamp(f)
	v.Refresh()
}

// ClampAll forces every gene back into [-MaxForce, MaxForce].
func (v *Vector) ClampAll() {
	for i, f := range v.ForceMatrix {
		v.ForceMatrix[i] = Clamp(f)
	}
	for i, f := range v.FoodForces {
		v.FoodForces[i] = Clamp(f)
	}
}

// Refresh recomputes the strategy coherence. It must follow any change of forces.
func (v *Vector) Refresh() {
	v.Coherence = Coherence(v)
}

// RecordFitness appends an epoch score, keeping only the most recent entries.
func (v *Vector) RecordFitness(score float32) {
	v.FitnessHistory = append(v.FitnessHistory, score)
	if over := len(v.FitnessHistory) - MaxFitnessHistory; over > 0 {
		v.FitnessHistory = append(v.FitnessHistory[:0], v.FitnessHistory[over:]...)
	}
}

// FitnessTrend is the mean of the recent half of the history minus the mean
// of the older half.
func (v *Vector) FitnessTrend() float32 {
	h := v.FitnessHistory
	if len(h) < 2 {
		return 0
	}
	mid := len(h) / 2
	var older, recent float32
	for _, s := range h[:mid] {
		older += s
	}
	for _, s := range h[mid:] {
		recent += s
	}
	return recent/float32(len(h)-mid) - older/float32(mid)
}

// Clone returns a deep copy.
func (v *Vector) Clone() *Vector {
	return &Vector{
		ForceMatrix:    append([]float32(nil), v.ForceMatrix...),
		FoodForces:     append([]float32(nil), v.FoodForces...),
		TypeCount:      v.TypeCount,
		FitnessHistory: append([]float32(nil), v.FitnessHistory...),
		Coherence:      v.Coherence,
	}
}

// Equal reports whether both genomes encode the same forces.
// History and coherence are not compared.
func (v *Vector) Equal(o *Vector) bool {
	if v.TypeCount != o.TypeCount || len(v.ForceMatrix) != len(o.ForceMatrix) || len(v.FoodForces) != len(o.FoodForces) {
		return false
	}
	for i := range v.ForceMatrix {
		if v.ForceMatrix[i] != o.ForceMatrix[i] {
			return false
		}
	}
	for i := range v.FoodForces {
		if v.FoodForces[i] != o.FoodForces[i] {
			return false
		}
	}
	return true
}

// Rows returns the force matrix as rows, for display.
func (v *Vector) Rows() [][]float32 {
	n := v.TypeCount
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = make([]float32, n)
		for j := range rows[i] {
			rows[i][j] = v.DecodeForce(i, j)
		}
	}
	return rows
}

// Clamp bounds f to [-MaxForce, MaxForce]. NaN maps to 0.
func Clamp(f float32) float32 {
	switch {
	case f != f:
		return 0
	case f > MaxForce:
		return MaxForce
	case f < -MaxForce:
		return -MaxForce
	}
	return f
}

// Table is a decoded genome laid out for the physics step: Types*Types force
// coefficients (row-major) followed by Types food affinities.
type Table struct {
	Types int
	Force []float32
	Food  []float32
}

// TableOf decodes every coefficient of g once.
func TableOf(g Genome) Table {
	n := g.Types()
	t := Table{Types: n, Force: make([]float32, n*n), Food: make([]float32, n)}
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			t.Force[a*n+b] = g.DecodeForce(a, b)
		}
		t.Food[a] = g.DecodeFoodForce(a)
	}
	return t
}

// At returns the coefficient from a toward b, 0 when out of range.
func (t Table) At(a, b int) float32 {
	if a < 0 || b < 0 || a >= t.Types || b >= t.Types {
		return 0
	}
	return t.Force[a*t.Types+b]
}

// FoodAt returns the food affinity of type a, 0 when out of range.
func (t Table) FoodAt(a int) float32 {
	if a < 0 || a >= t.Types {
		return 0
	}
	return t.Food[a]
}
