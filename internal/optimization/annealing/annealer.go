// Package annealing provides the stochastic global strategies:
// simulated annealing over integer pulse perturbations and
// basin-hopping over local minimizations.
package annealing

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
)

// PulseAnnealer adapts a pulse to the annealing driver's move/energy
// contract. Moves perturb each pulse element by a uniform integer step
// in [-stepSize, stepSize]; with probability 1-stepRatio an element is
// left untouched. Every move saturates at the bounds.
type PulseAnnealer struct {
	state     *mat.Dense
	stepSize  int
	stepRatio float64
	bounds    *optimization.Bounds
	costs     func(x []float64) ([]float64, error)
}

// NewPulseAnnealer builds the annealing state around an initial pulse
// and a cost evaluator. The step size must be positive and bounds are
// required; the discrete moves have no other scale to work against.
func NewPulseAnnealer(initial *mat.Dense, stepSize int, stepRatio float64, bounds *optimization.Bounds, costs func(x []float64) ([]float64, error)) (*PulseAnnealer, error) {
	if stepSize <= 0 {
		return nil, optimization.NewErrorf("step size must be positive, got %d", stepSize).WithComponent("annealing")
	}
	if bounds == nil {
		return nil, optimization.NewError("bounds are required for annealing").WithComponent("annealing")
	}
	state := mat.DenseCopyOf(initial)
	bounds.Clamp(state)
	return &PulseAnnealer{
		state:     state,
		stepSize:  stepSize,
		stepRatio: stepRatio,
		bounds:    bounds,
		costs:     costs,
	}, nil
}

// Move perturbs the current pulse in place.
func (a *PulseAnnealer) Move(rng *rand.Rand) error {
	nt, nc := a.state.Dims()
	for t := 0; t < nt; t++ {
		for c := 0; c < nc; c++ {
			if a.stepRatio < 1 && rng.Float64() > a.stepRatio {
				continue
			}
			step := rng.Intn(2*a.stepSize+1) - a.stepSize
			a.state.Set(t, c, a.state.At(t, c)+float64(step))
		}
	}
	a.bounds.Clamp(a.state)
	return nil
}

// Energy evaluates the current pulse and reduces the cost vector to
// its Euclidean norm.
func (a *PulseAnnealer) Energy() (float64, error) {
	costs, err := a.costs(optimization.FlattenPulse(a.state))
	if err != nil {
		return 0, err
	}
	return floats.Norm(costs, 2), nil
}

// State snapshots the current pulse.
func (a *PulseAnnealer) State() *mat.Dense { return mat.DenseCopyOf(a.state) }

// SetState restores a snapshot.
func (a *PulseAnnealer) SetState(p *mat.Dense) { a.state = mat.DenseCopyOf(p) }
