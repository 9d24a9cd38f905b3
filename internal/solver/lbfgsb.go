package solver

import (
	"fmt"
	"math"

	"github.com/curioloop/optimizer/lbfgsb"
)

const (
	// lbfgsbCorrections is the number of limited-memory corrections.
	lbfgsbCorrections = 10
	// lbfgsbMaxIterations backs MaxIterations when the caller leaves it
	// unset; the underlying solver requires a positive limit.
	lbfgsbMaxIterations = 15_000

	fdStep = 1e-8
)

// machEps is the double-precision machine epsilon, used to translate a
// function tolerance into the solver's accuracy factor.
var machEps = math.Nextafter(1, 2) - 1

// LBFGSBProblem configures a bound-constrained minimization through
// the L-BFGS-B solver. StepTol has no counterpart in this binding and
// is ignored.
type LBFGSBProblem struct {
	Objective Objective
	// Gradient is optional; a forward-difference approximation of the
	// objective is used when it is nil.
	Gradient Gradient
	X0       []float64
	Bounds   [][2]float64
	Tol      Tolerances
}

// evalAbort carries an evaluation error out of the solver's Eval
// callback, whose signature has no error path.
type evalAbort struct{}

// MinimizeLBFGSB runs the bound-constrained L-BFGS-B binding.
// Evaluation errors abort the solver and are returned unchanged.
func MinimizeLBFGSB(p LBFGSBProblem) (res *Result, err error) {
	n := len(p.X0)
	grad := p.Gradient
	if grad == nil {
		grad = forwardDifference(p.Objective)
	}

	var evalErr error
	eval := func(x, g []float64) float64 {
		f, err := p.Objective(x)
		if err == nil {
			err = grad(x, g)
		}
		if err != nil {
			evalErr = err
			panic(evalAbort{})
		}
		return f
	}

	var bounds []lbfgsb.Bound
	if p.Bounds != nil {
		bounds = make([]lbfgsb.Bound, n)
		for i, b := range p.Bounds {
			bounds[i] = lbfgsb.Bound{Lower: b[0], Upper: b[1]}
		}
	}

	stop := lbfgsb.Termination{
		MaxIterations:     p.Tol.MaxIterations,
		MaxEvaluations:    p.Tol.MaxEvaluations,
		EpsAccuracyFactor: math.NaN(),
		ProjGradTolerance: math.NaN(),
	}
	if stop.MaxIterations <= 0 {
		stop.MaxIterations = lbfgsbMaxIterations
	}
	if p.Tol.FuncTol > 0 {
		stop.EpsAccuracyFactor = math.Max(1, p.Tol.FuncTol/machEps)
	}
	if p.Tol.GradTol > 0 {
		stop.ProjGradTolerance = p.Tol.GradTol
	}

	problem := lbfgsb.Problem{
		N:      n,
		M:      lbfgsbCorrections,
		Eval:   eval,
		Stop:   stop,
		Bounds: bounds,
	}
	opt, err := problem.New(nil)
	if err != nil {
		return nil, fmt.Errorf("solver: lbfgsb setup: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(evalAbort); ok && evalErr != nil {
				res, err = nil, evalErr
				return
			}
			panic(r)
		}
	}()

	fit := opt.Fit(append([]float64(nil), p.X0...), opt.Init())
	// The solver recovers panics raised inside Eval and halts, so the
	// abort surfaces here rather than through the deferred recover.
	if evalErr != nil {
		return nil, evalErr
	}

	res = &Result{
		X:       fit.X,
		F:       fit.F,
		Grad:    fit.G,
		NumEval: fit.NumEval,
	}
	if fit.OK {
		res.Status = 0
		res.Message = "convergence condition satisfied"
	} else {
		res.Status = 1
		res.Message = fmt.Sprintf("stopped before convergence after %d iterations", fit.NumIter)
	}
	return res, nil
}

// forwardDifference approximates the gradient of f with one-sided
// differences.
func forwardDifference(f Objective) Gradient {
	return func(x, grad []float64) error {
		f0, err := f(x)
		if err != nil {
			return err
		}
		for i := range x {
			h := fdStep * math.Max(1, math.Abs(x[i]))
			orig := x[i]
			x[i] = orig + h
			fi, err := f(x)
			x[i] = orig
			if err != nil {
				return err
			}
			grad[i] = (fi - f0) / h
		}
		return nil
	}
}
