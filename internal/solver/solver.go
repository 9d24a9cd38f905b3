// Package solver binds the external numerical optimizers behind
// minimal capability contracts: an objective over flat parameters, an
// optional gradient, optional per-parameter bounds and a fixed set of
// tolerance knobs. Evaluation callables return errors; a binding
// aborts as soon as one is reported and surfaces it unchanged, so the
// driving strategy can decide how to recover.
package solver

import (
	"gonum.org/v1/gonum/mat"
)

// Objective evaluates a scalar cost at the flat parameter vector x.
type Objective func(x []float64) (float64, error)

// Gradient writes the cost gradient at x into grad.
type Gradient func(x, grad []float64) error

// Residuals evaluates a residual vector at x.
type Residuals func(x []float64) ([]float64, error)

// JacobianFunc evaluates the residual Jacobian at x, one row per
// residual component in flat-parameter column order.
type JacobianFunc func(x []float64) (*mat.Dense, error)

// Tolerances maps termination-policy thresholds onto a binding's own
// knobs. Zero values select the binding's defaults; not every binding
// supports every knob (see the binding's documentation).
type Tolerances struct {
	// FuncTol stops on small cost improvement per iteration.
	FuncTol float64
	// StepTol stops on small parameter change per iteration.
	StepTol float64
	// GradTol stops on a small (projected) gradient norm.
	GradTol float64
	// MaxIterations caps solver iterations.
	MaxIterations int
	// MaxEvaluations caps objective evaluations.
	MaxEvaluations int
}

// Result is the common report of a solver binding.
type Result struct {
	// X is the final parameter vector.
	X []float64
	// F is the final objective value.
	F float64
	// Residuals is the residual vector at X, for least-squares
	// bindings.
	Residuals []float64
	// Grad is the gradient at X, for gradient-capable bindings.
	Grad []float64
	// Status is the binding's numeric termination code.
	Status int
	// Message is the binding's human-readable termination reason.
	Message string
	// NumEval is the number of objective evaluations performed.
	NumEval int
}
