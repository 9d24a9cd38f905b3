// Package leastsquares minimizes the vector-valued cost through the
// bound-constrained least-squares solver binding.
package leastsquares

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
	"github.com/openpulse/pulseopt/internal/solver"
)

// MethodLBFGSB is the default (and currently only) least-squares
// solver method.
const MethodLBFGSB = "lbfgsb"

// Config configures a least-squares optimizer.
type Config struct {
	Simulator  optimization.Simulator
	Conditions *optimization.TerminationConditions
	// RecordSteps enables the per-evaluation iteration summary.
	RecordSteps bool
	// Weights are the optional per-cost-function weights.
	Weights []float64
	// NumericJacobian disables the simulator's analytical Jacobian in
	// favour of the solver's finite-difference fallback.
	NumericJacobian bool
	// Method selects the solver binding; empty selects MethodLBFGSB.
	Method string
	// Bounds are the optional per-element pulse bounds.
	Bounds *optimization.Bounds
}

// Optimizer drives the least-squares binding. It carries configuration
// only; all mutable run state lives in the per-run context, so an
// instance may be reused for sequential runs.
type Optimizer struct {
	cfg     Config
	weights []float64
}

// New validates the configuration and builds the optimizer.
func New(cfg Config) (*Optimizer, error) {
	if cfg.Simulator == nil {
		return nil, optimization.NewError("a simulator is required").WithComponent("leastsquares")
	}
	weights, err := optimization.NormalizeWeights(cfg.Simulator, cfg.Weights)
	if err != nil {
		return nil, err
	}
	if cfg.Method == "" {
		cfg.Method = MethodLBFGSB
	}
	if cfg.Method != MethodLBFGSB {
		return nil, optimization.NewErrorf("unsupported method %q", cfg.Method).WithComponent("leastsquares")
	}
	return &Optimizer{cfg: cfg, weights: weights}, nil
}

// RunOptimization minimizes the cost vector starting from the given
// initial pulse. The termination limits map onto the solver's own
// knobs: MinCostGain to the function tolerance, MinAmplitudeChange to
// the parameter tolerance, MinGradientNorm to the gradient tolerance
// and MaxIterations to the evaluation cap. A wall-time abort yields a
// best-effort status-5 result instead of an error.
func (o *Optimizer) RunOptimization(initial *mat.Dense) (*optimization.Result, error) {
	run := optimization.NewRun(optimization.RunConfig{
		Simulator:   o.cfg.Simulator,
		Conditions:  o.cfg.Conditions,
		RecordSteps: o.cfg.RecordSteps,
		Weights:     o.weights,
		UseJacobian: !o.cfg.NumericJacobian,
	}, initial)

	var jac solver.JacobianFunc
	if !o.cfg.NumericJacobian {
		jac = run.EvaluateJacobian
	}
	var bounds [][2]float64
	if o.cfg.Bounds != nil {
		bounds = o.cfg.Bounds.Flatten()
	}

	cond := run.Conditions()
	res, err := solver.LeastSquares(solver.LeastSquaresProblem{
		Residuals: run.EvaluateCost,
		Jacobian:  jac,
		X0:        optimization.FlattenPulse(initial),
		Bounds:    bounds,
		Tol: solver.Tolerances{
			FuncTol:        cond.MinCostGain,
			StepTol:        cond.MinAmplitudeChange,
			GradTol:        cond.MinGradientNorm,
			MaxIterations:  cond.MaxIterations,
			MaxEvaluations: cond.MaxCostFuncCalls,
		},
	})
	if errors.Is(err, optimization.ErrWallTimeExceeded) {
		return run.AbortResult(o), nil
	}
	if err != nil {
		return nil, err
	}

	run.FinishStats()
	nt, nc := initial.Dims()
	return &optimization.Result{
		FinalCosts:        res.Residuals,
		Indices:           o.cfg.Simulator.CostIndices(),
		FinalParameters:   optimization.ReshapePulse(res.X, nt, nc),
		FinalGradNorm:     floats.Norm(res.Grad, 2),
		NumIter:           res.NumEval,
		TerminationReason: res.Message,
		Status:            res.Status,
		Optimizer:         o,
		Summary:           run.Summary(),
		Stats:             run.Stats(),
	}, nil
}
