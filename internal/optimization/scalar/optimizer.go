// Package scalar minimizes the sum of squared cost values with scalar
// minimization methods.
package scalar

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
	"github.com/openpulse/pulseopt/internal/solver"
)

// Methods accepted by the scalar optimizer.
const (
	MethodLBFGSB     = "l-bfgs-b"
	MethodNelderMead = "nelder-mead"
	MethodBFGS       = "bfgs"
	MethodCG         = "cg"
)

// Config configures a scalar-cost optimizer.
type Config struct {
	Simulator  optimization.Simulator
	Conditions *optimization.TerminationConditions
	// RecordSteps enables the per-evaluation iteration summary.
	RecordSteps bool
	// Weights are the optional per-cost-function weights.
	Weights []float64
	// NumericJacobian disables the simulator's analytical Jacobian in
	// favour of the solver's finite-difference fallback. It has no
	// effect on derivative-free methods.
	NumericJacobian bool
	// Method selects the minimization method; empty selects
	// MethodLBFGSB.
	Method string
	// Bounds are the optional per-element pulse bounds. The L-BFGS-B
	// method enforces them natively, the gonum methods by clamping.
	Bounds *optimization.Bounds
}

// Optimizer reduces the cost vector to its squared Euclidean norm and
// minimizes the scalar with the configured method.
type Optimizer struct {
	cfg     Config
	weights []float64
}

// New validates the configuration and builds the optimizer.
func New(cfg Config) (*Optimizer, error) {
	if cfg.Simulator == nil {
		return nil, optimization.NewError("a simulator is required").WithComponent("scalar")
	}
	weights, err := optimization.NormalizeWeights(cfg.Simulator, cfg.Weights)
	if err != nil {
		return nil, err
	}
	if cfg.Method == "" {
		cfg.Method = MethodLBFGSB
	}
	switch cfg.Method {
	case MethodLBFGSB, MethodNelderMead, MethodBFGS, MethodCG:
	default:
		return nil, optimization.NewErrorf("unsupported method %q", cfg.Method).WithComponent("scalar")
	}
	return &Optimizer{cfg: cfg, weights: weights}, nil
}

// RunOptimization minimizes the scalar cost starting from the given
// initial pulse. The three method branches differ in capability: the
// quasi-Newton branch takes bounds, a gradient and the mapped
// tolerances; the simplex branch takes bounds and the iteration limit
// only; any other method takes bounds only. A wall-time abort yields a
// best-effort status-5 result instead of an error.
func (o *Optimizer) RunOptimization(initial *mat.Dense) (*optimization.Result, error) {
	useJac := !o.cfg.NumericJacobian && o.cfg.Method == MethodLBFGSB
	run := optimization.NewRun(optimization.RunConfig{
		Simulator:   o.cfg.Simulator,
		Conditions:  o.cfg.Conditions,
		RecordSteps: o.cfg.RecordSteps,
		Weights:     o.weights,
		UseJacobian: useJac,
	}, initial)

	var bounds [][2]float64
	if o.cfg.Bounds != nil {
		bounds = o.cfg.Bounds.Flatten()
	}

	cond := run.Conditions()
	x0 := optimization.FlattenPulse(initial)

	var res *solver.Result
	var err error
	switch o.cfg.Method {
	case MethodLBFGSB:
		var grad solver.Gradient
		if useJac {
			grad = run.ScalarGradient
		}
		res, err = solver.MinimizeLBFGSB(solver.LBFGSBProblem{
			Objective: run.ScalarCost,
			Gradient:  grad,
			X0:        x0,
			Bounds:    bounds,
			Tol: solver.Tolerances{
				FuncTol:       cond.MinCostGain,
				GradTol:       cond.MinGradientNorm,
				MaxIterations: cond.MaxIterations,
			},
		})
	case MethodNelderMead:
		res, err = solver.Minimize(solver.MinimizeProblem{
			Objective: run.ScalarCost,
			X0:        x0,
			Bounds:    bounds,
			Tol:       solver.Tolerances{MaxIterations: cond.MaxIterations},
			Method:    MethodNelderMead,
		})
	default:
		res, err = solver.Minimize(solver.MinimizeProblem{
			Objective: run.ScalarCost,
			X0:        x0,
			Bounds:    bounds,
			Method:    o.cfg.Method,
		})
	}
	if errors.Is(err, optimization.ErrWallTimeExceeded) {
		return run.AbortResult(o), nil
	}
	if err != nil {
		return nil, err
	}

	run.FinishStats()
	var gradNorm float64
	if res.Grad != nil {
		gradNorm = floats.Norm(res.Grad, 2)
	}
	nt, nc := initial.Dims()
	return &optimization.Result{
		FinalCosts:        []float64{res.F},
		Indices:           o.cfg.Simulator.CostIndices(),
		FinalParameters:   optimization.ReshapePulse(res.X, nt, nc),
		FinalGradNorm:     gradNorm,
		NumIter:           res.NumEval,
		TerminationReason: res.Message,
		Status:            res.Status,
		Optimizer:         o,
		Summary:           run.Summary(),
		Stats:             run.Stats(),
	}, nil
}
