package optimization

import "time"

// TerminationConditions holds the named numeric limits consulted during
// an optimization run. How each limit maps onto a solver's own knobs is
// up to the strategy; the wall-time budget is enforced centrally by the
// cost wrapper.
//
// A nil *TerminationConditions passed to a strategy selects
// DefaultTerminationConditions. A non-nil value is used verbatim, so an
// explicit zero MaxWallTime aborts on the first cost evaluation.
type TerminationConditions struct {
	// MinGradientNorm stops gradient-capable solvers once the gradient
	// norm falls below this value.
	MinGradientNorm float64
	// MinCostGain stops once the cost improvement per iteration falls
	// below this value.
	MinCostGain float64
	// MaxWallTime bounds the elapsed wall-clock time of a run.
	MaxWallTime time.Duration
	// MaxCostFuncCalls caps the number of cost evaluations where the
	// bound solver exposes an evaluation limit.
	MaxCostFuncCalls int
	// MaxIterations caps the solver iterations (annealing steps,
	// basin-hopping iterations, quasi-Newton iterations).
	MaxIterations int
	// MinAmplitudeChange stops once the change of the control
	// amplitudes per iteration falls below this value.
	MinAmplitudeChange float64
}

// DefaultTerminationConditions returns the default limits.
func DefaultTerminationConditions() *TerminationConditions {
	return &TerminationConditions{
		MinGradientNorm:    1e-7,
		MinCostGain:        1e-7,
		MaxWallTime:        10 * time.Minute,
		MaxCostFuncCalls:   1_000_000,
		MaxIterations:      10_000,
		MinAmplitudeChange: 1e-8,
	}
}

// normalized returns tc, or the defaults when tc is nil.
func (tc *TerminationConditions) normalized() *TerminationConditions {
	if tc == nil {
		return DefaultTerminationConditions()
	}
	return tc
}
