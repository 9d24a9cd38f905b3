package solver

import (
	"math"
	"math/rand"
	"time"
)

// StepTaker proposes the next starting point for a basin-hopping
// iteration.
type StepTaker interface {
	TakeStep(rng *rand.Rand, x []float64) []float64
}

// StepScaler is optionally implemented by step takers whose step size
// the adaptive schedule may rescale.
type StepScaler interface {
	ScaleStep(factor float64)
}

// BasinHoppingProblem configures a basin-hopping global minimization:
// a Metropolis acceptance loop over local minimizations started from
// perturbed points.
type BasinHoppingProblem struct {
	Objective Objective
	X0        []float64
	Steps     StepTaker
	// Temperature governs the Metropolis acceptance of worse local
	// minima.
	Temperature float64
	// Iterations is the number of hop iterations.
	Iterations int
	// Interval is the cadence of the adaptive step rescale; zero or
	// negative disables it.
	Interval int
	// Bounds and LocalTol configure the derivative-free local
	// minimizations.
	Bounds   [][2]float64
	LocalTol Tolerances
	// Seed fixes the random sequence; zero seeds from the clock.
	Seed int64
}

const basinHoppingSuccess = "requested number of basinhopping iterations completed successfully"

// Step-rescale factor of the adaptive schedule: the step grows when
// more than half of the recent hops were accepted and shrinks
// otherwise.
const stepAdjustFactor = 0.9

// BasinHopping runs the basin-hopping loop. Evaluation errors from the
// objective abort the loop and are returned unchanged.
func BasinHopping(p BasinHoppingProblem) (*Result, error) {
	rng := rand.New(rand.NewSource(p.Seed))
	if p.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	localMin := func(x0 []float64) (*Result, error) {
		return Minimize(MinimizeProblem{
			Objective: p.Objective,
			X0:        x0,
			Bounds:    p.Bounds,
			Tol:       p.LocalTol,
			Method:    MethodNelderMead,
		})
	}

	cur, err := localMin(p.X0)
	if err != nil {
		return nil, err
	}

	bestX := append([]float64(nil), cur.X...)
	bestF := cur.F
	nEval := cur.NumEval
	accepted := 0

	for i := 1; i <= p.Iterations; i++ {
		xNew := p.Steps.TakeStep(rng, append([]float64(nil), cur.X...))
		trial, err := localMin(xNew)
		if err != nil {
			return nil, err
		}
		nEval += trial.NumEval

		if acceptMetropolis(cur.F, trial.F, p.Temperature, rng) {
			cur = trial
			accepted++
		}
		if cur.F < bestF {
			bestF = cur.F
			bestX = append(bestX[:0], cur.X...)
		}

		if p.Interval > 0 && i%p.Interval == 0 {
			if s, ok := p.Steps.(StepScaler); ok {
				if float64(accepted)/float64(i) > 0.5 {
					s.ScaleStep(1 / stepAdjustFactor)
				} else {
					s.ScaleStep(stepAdjustFactor)
				}
			}
		}
	}

	return &Result{
		X:       bestX,
		F:       bestF,
		Status:  0,
		Message: basinHoppingSuccess,
		NumEval: nEval,
	}, nil
}

// acceptMetropolis accepts a candidate that improves on the current
// value, or a worse one with Boltzmann probability at the given
// temperature.
func acceptMetropolis(cur, cand, temp float64, rng *rand.Rand) bool {
	if cand <= cur {
		return true
	}
	if temp <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-(cand-cur)/temp)
}
