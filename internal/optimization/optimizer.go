// Package optimization provides the core of the pulse optimization
// layer: the termination policy, the pulse shape adapter between
// (time step, channel) arrays and flat solver vectors, the per-run
// cost/Jacobian evaluation context, and the result containers shared by
// every optimizer strategy.
package optimization

import (
	"gonum.org/v1/gonum/mat"
)

// Status codes reported in Result.Status. Solver bindings contribute
// their own codes; 5 is reserved for wall-time aborts.
const (
	// StatusWallTime marks a run cut short by the wall-time budget.
	StatusWallTime = 5
)

// ReasonWallTime is the termination reason of a wall-time abort.
const ReasonWallTime = "Maximum Wall Time Exceeded"

// Optimizer is implemented by every concrete optimization strategy.
type Optimizer interface {
	// RunOptimization optimizes the control amplitudes starting from
	// the given initial pulse of shape (time steps, channels). The
	// pulse shape is fixed for the duration of the run.
	RunOptimization(initial *mat.Dense) (*Result, error)
}

// Result is the record produced once per optimization run.
type Result struct {
	// FinalCosts is the cost vector at the final parameters, or a
	// single-element slice for scalar-reducing strategies.
	FinalCosts []float64
	// Indices are the simulator's cost-function labels.
	Indices []string
	// FinalParameters is the final pulse in array form. Nil when a run
	// was aborted before any evaluation completed.
	FinalParameters *mat.Dense
	// FinalGradNorm is the gradient norm at the final parameters, for
	// gradient-capable strategies.
	FinalGradNorm float64
	// NumIter is the number of cost evaluations reported for the run.
	NumIter int
	// TerminationReason is the human-readable stop reason.
	TerminationReason string
	// Status is the numeric termination code; StatusWallTime marks a
	// wall-time abort.
	Status int
	// Optimizer is a back-reference to the strategy that produced the
	// result.
	Optimizer Optimizer
	// Summary is the iteration history, when step recording was on.
	Summary *Summary
	// Stats is the performance-statistics record, when the simulator
	// requested one.
	Stats *PerformanceStatistics
}

// Summary is the append-only per-evaluation history of a run. Costs and
// parameters are recorded before weighting, one entry per cost
// evaluation; gradients are recorded raw, one entry per Jacobian
// evaluation.
type Summary struct {
	Indices    []string
	IterNum    int
	Costs      [][]float64
	Parameters []*mat.Dense
	Gradients  []*Jacobian
}
