package annealing

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
	"github.com/openpulse/pulseopt/internal/solver"
)

// BasinHoppingConfig configures the basin-hopping optimizer.
type BasinHoppingConfig struct {
	Simulator  optimization.Simulator
	Conditions *optimization.TerminationConditions
	// RecordSteps enables the per-evaluation iteration summary.
	RecordSteps bool
	// Weights are the optional per-cost-function weights.
	Weights []float64
	// Bounds are required; hop perturbations saturate at them.
	Bounds *optimization.Bounds
	// Temperature governs Metropolis acceptance between local minima.
	// Zero defaults to 1.
	Temperature float64
	// StepSize is the maximum integer perturbation per pulse element
	// and hop before adaptive rescaling. Zero defaults to 1; negative
	// is an error.
	StepSize int
	// Interval is the cadence of the adaptive step rescale. Zero
	// defaults to 50.
	Interval int
	// Seed fixes the random sequence; zero seeds from the clock.
	Seed int64
}

// BasinHopping chains derivative-free local minimizations from
// perturbed starting points and keeps the best local minimum. The
// number of hops is taken from the termination conditions' iteration
// limit.
type BasinHopping struct {
	cfg     BasinHoppingConfig
	weights []float64
}

// NewBasinHopping validates the configuration and builds the
// optimizer.
func NewBasinHopping(cfg BasinHoppingConfig) (*BasinHopping, error) {
	if cfg.Simulator == nil {
		return nil, optimization.NewError("a simulator is required").WithComponent("annealing")
	}
	if cfg.Bounds == nil {
		return nil, optimization.NewError("bounds are required for basin hopping").WithComponent("annealing")
	}
	if cfg.StepSize < 0 {
		return nil, optimization.NewErrorf("step size must be positive, got %d", cfg.StepSize).WithComponent("annealing")
	}
	weights, err := optimization.NormalizeWeights(cfg.Simulator, cfg.Weights)
	if err != nil {
		return nil, err
	}
	if cfg.StepSize == 0 {
		cfg.StepSize = 1
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 50
	}
	return &BasinHopping{cfg: cfg, weights: weights}, nil
}

// RunOptimization runs the basin-hopping loop starting from the given
// initial pulse. A wall-time abort yields a best-effort status-5
// result instead of an error.
func (o *BasinHopping) RunOptimization(initial *mat.Dense) (*optimization.Result, error) {
	run := optimization.NewRun(optimization.RunConfig{
		Simulator:   o.cfg.Simulator,
		Conditions:  o.cfg.Conditions,
		RecordSteps: o.cfg.RecordSteps,
		Weights:     o.weights,
	}, initial)

	objective := func(x []float64) (float64, error) {
		costs, err := run.EvaluateCost(x)
		if err != nil {
			return 0, err
		}
		return floats.Norm(costs, 2), nil
	}

	cond := run.Conditions()
	nt, nc := initial.Dims()
	res, err := solver.BasinHopping(solver.BasinHoppingProblem{
		Objective: objective,
		X0:        optimization.FlattenPulse(initial),
		Steps: &pulseStepTaker{
			stepSize: o.cfg.StepSize,
			scale:    1,
			bounds:   o.cfg.Bounds,
			nt:       nt,
			nc:       nc,
		},
		Temperature: o.cfg.Temperature,
		Iterations:  cond.MaxIterations,
		Interval:    o.cfg.Interval,
		Bounds:      o.cfg.Bounds.Flatten(),
		LocalTol: solver.Tolerances{
			FuncTol:        cond.MinCostGain,
			MaxEvaluations: cond.MaxCostFuncCalls,
		},
		Seed: o.cfg.Seed,
	})
	if errors.Is(err, optimization.ErrWallTimeExceeded) {
		return run.AbortResult(o), nil
	}
	if err != nil {
		return nil, err
	}

	run.FinishStats()
	return &optimization.Result{
		FinalCosts:        []float64{res.F},
		Indices:           o.cfg.Simulator.CostIndices(),
		FinalParameters:   optimization.ReshapePulse(res.X, nt, nc),
		NumIter:           res.NumEval,
		TerminationReason: res.Message,
		Status:            res.Status,
		Optimizer:         o,
		Summary:           run.Summary(),
		Stats:             run.Stats(),
	}, nil
}

// pulseStepTaker perturbs each pulse element by a uniform integer step
// whose magnitude the adaptive schedule rescales between hops.
type pulseStepTaker struct {
	stepSize int
	scale    float64
	bounds   *optimization.Bounds
	nt, nc   int
}

func (s *pulseStepTaker) TakeStep(rng *rand.Rand, x []float64) []float64 {
	step := int(math.Max(1, math.Round(float64(s.stepSize)*s.scale)))
	pulse := optimization.ReshapePulse(x, s.nt, s.nc)
	for t := 0; t < s.nt; t++ {
		for c := 0; c < s.nc; c++ {
			delta := rng.Intn(2*step+1) - step
			pulse.Set(t, c, pulse.At(t, c)+float64(delta))
		}
	}
	s.bounds.Clamp(pulse)
	return optimization.FlattenPulse(pulse)
}

func (s *pulseStepTaker) ScaleStep(factor float64) { s.scale *= factor }
