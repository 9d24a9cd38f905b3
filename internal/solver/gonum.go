package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Methods accepted by Minimize.
const (
	MethodNelderMead = "nelder-mead"
	MethodBFGS       = "bfgs"
	MethodCG         = "cg"
)

// MinimizeProblem configures a scalar minimization through the gonum
// optimize package.
type MinimizeProblem struct {
	Objective Objective
	// Gradient is optional; gradient-based methods fall back to gonum's
	// finite-difference approximation when it is nil.
	Gradient Gradient
	X0       []float64
	// Bounds are enforced by clamping the query point before every
	// evaluation; gonum's local methods are themselves unconstrained.
	Bounds [][2]float64
	Tol    Tolerances
	Method string
}

// Minimize runs the selected gonum optimize method over the problem.
// Evaluation errors abort the solver through the problem status hook
// and are returned unchanged. A solver that stops without converging
// is not an error; the outcome is reported in Result.Status/Message.
func Minimize(p MinimizeProblem) (*Result, error) {
	method, err := minimizeMethod(p.Method)
	if err != nil {
		return nil, err
	}

	var evalErr error
	clamp := func(x []float64) []float64 {
		for i := range x {
			x[i] = math.Max(p.Bounds[i][0], math.Min(x[i], p.Bounds[i][1]))
		}
		return x
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if evalErr != nil {
				return math.Inf(1)
			}
			if p.Bounds != nil {
				x = clamp(x)
			}
			f, err := p.Objective(x)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return f
		},
		Status: func() (optimize.Status, error) {
			if evalErr != nil {
				return optimize.Failure, evalErr
			}
			return optimize.NotTerminated, nil
		},
	}
	if p.Gradient != nil {
		problem.Grad = func(grad, x []float64) {
			if evalErr != nil {
				return
			}
			if p.Bounds != nil {
				x = clamp(x)
			}
			if err := p.Gradient(x, grad); err != nil {
				evalErr = err
			}
		}
	}

	settings := &optimize.Settings{
		MajorIterations:   p.Tol.MaxIterations,
		FuncEvaluations:   p.Tol.MaxEvaluations,
		GradientThreshold: p.Tol.GradTol,
	}
	if p.Tol.FuncTol > 0 {
		settings.Converger = &optimize.FunctionConverge{
			Absolute:   p.Tol.FuncTol,
			Iterations: 20,
		}
	}

	res, err := optimize.Minimize(problem, append([]float64(nil), p.X0...), settings, method)
	if evalErr != nil {
		return nil, evalErr
	}
	if err != nil && res == nil {
		return nil, err
	}

	out := &Result{
		X:       res.X,
		F:       res.F,
		Status:  int(res.Status),
		Message: res.Status.String(),
		NumEval: res.Stats.FuncEvaluations,
	}
	if p.Bounds != nil {
		clamp(out.X)
	}
	if res.Gradient != nil {
		out.Grad = append([]float64(nil), res.Gradient...)
	}
	if err != nil {
		out.Message = err.Error()
	}
	return out, nil
}

func minimizeMethod(name string) (optimize.Method, error) {
	switch name {
	case MethodNelderMead, "":
		return &optimize.NelderMead{}, nil
	case MethodBFGS:
		return &optimize.BFGS{}, nil
	case MethodCG:
		return &optimize.CG{}, nil
	}
	return nil, fmt.Errorf("solver: unsupported minimize method %q", name)
}
