// Package swarm minimizes the cost norm with the mayfly population
// algorithm, a derivative-free global method.
package swarm

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/cwbudde/mayfly"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
)

// Config configures the swarm optimizer.
type Config struct {
	Simulator  optimization.Simulator
	Conditions *optimization.TerminationConditions
	// RecordSteps enables the per-evaluation iteration summary.
	RecordSteps bool
	// Weights are the optional per-cost-function weights.
	Weights []float64
	// LowerBound and UpperBound are scalar amplitude bounds applied to
	// every pulse element; the population algorithm supports no
	// per-element bounds. Zero values default to -1 and 1.
	LowerBound float64
	UpperBound float64
	// Population is the mayfly population size. Zero defaults to 20.
	Population int
	// Seed fixes the random sequence; zero seeds from the clock.
	Seed int64
}

// Optimizer runs the mayfly algorithm over the flattened pulse. The
// number of generations is taken from the termination conditions'
// iteration limit.
type Optimizer struct {
	cfg     Config
	weights []float64
}

// New validates the configuration and builds the optimizer.
func New(cfg Config) (*Optimizer, error) {
	if cfg.Simulator == nil {
		return nil, optimization.NewError("a simulator is required").WithComponent("swarm")
	}
	weights, err := optimization.NormalizeWeights(cfg.Simulator, cfg.Weights)
	if err != nil {
		return nil, err
	}
	if cfg.LowerBound == 0 && cfg.UpperBound == 0 {
		cfg.LowerBound, cfg.UpperBound = -1, 1
	}
	if cfg.LowerBound >= cfg.UpperBound {
		return nil, optimization.NewErrorf("invalid bounds [%g, %g]", cfg.LowerBound, cfg.UpperBound).WithComponent("swarm")
	}
	if cfg.Population <= 0 {
		cfg.Population = 20
	}
	return &Optimizer{cfg: cfg, weights: weights}, nil
}

// RunOptimization runs the population search. The initial pulse fixes
// the parameter dimensionality; the population itself is sampled
// inside the bounds. A wall-time abort yields a best-effort status-5
// result instead of an error.
func (o *Optimizer) RunOptimization(initial *mat.Dense) (*optimization.Result, error) {
	run := optimization.NewRun(optimization.RunConfig{
		Simulator:   o.cfg.Simulator,
		Conditions:  o.cfg.Conditions,
		RecordSteps: o.cfg.RecordSteps,
		Weights:     o.weights,
	}, initial)

	var evalErr error
	eval := func(x []float64) float64 {
		if evalErr != nil {
			return math.Inf(1)
		}
		costs, err := run.EvaluateCost(x)
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return floats.Norm(costs, 2)
	}

	nt, nc := initial.Dims()
	cfg := mayfly.NewDefaultConfig()
	cfg.ObjectiveFunc = eval
	cfg.ProblemSize = nt * nc
	cfg.MaxIterations = run.Conditions().MaxIterations
	cfg.NPop = o.cfg.Population
	cfg.LowerBound = o.cfg.LowerBound
	cfg.UpperBound = o.cfg.UpperBound
	seed := o.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	cfg.Rand = rand.New(rand.NewSource(seed))

	res, err := mayfly.Optimize(cfg)
	if errors.Is(evalErr, optimization.ErrWallTimeExceeded) {
		return run.AbortResult(o), nil
	}
	if evalErr != nil {
		return nil, evalErr
	}
	if err != nil {
		return nil, optimization.WrapError(err, "mayfly optimization failed").WithComponent("swarm")
	}

	run.FinishStats()
	return &optimization.Result{
		FinalCosts:      []float64{res.GlobalBest.Cost},
		Indices:         o.cfg.Simulator.CostIndices(),
		FinalParameters: optimization.ReshapePulse(res.GlobalBest.Position, nt, nc),
		NumIter:         run.CostEvals(),
		Status:          0,
		Optimizer:       o,
		Summary:         run.Summary(),
		Stats:           run.Stats(),
	}, nil
}
