package optimization

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RunConfig is the shared configuration every strategy feeds into its
// per-run evaluation context.
type RunConfig struct {
	// Simulator computes cost values and Jacobians from a pulse.
	Simulator Simulator
	// Conditions are the termination limits; nil selects the defaults.
	Conditions *TerminationConditions
	// RecordSteps enables the per-evaluation iteration summary.
	RecordSteps bool
	// Weights are applied multiplicatively to costs and Jacobian rows
	// after history recording, one per cost function. Nil disables
	// weighting. Validate with NormalizeWeights before constructing a
	// strategy.
	Weights []float64
	// UseJacobian marks whether the simulator's analytical Jacobian is
	// in use; it controls the gradient-norm recomputation of
	// AbortResult.
	UseJacobian bool
}

// NormalizeWeights validates a cost-function weight vector against the
// simulator. An empty vector normalizes to nil (weighting disabled); a
// length mismatch is a configuration error.
func NormalizeWeights(sim Simulator, weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, nil
	}
	if n := len(sim.CostIndices()); len(weights) != n {
		return nil, NewErrorf("got %d cost function weights for %d cost functions; specify one weight per cost function or none at all",
			len(weights), n).WithComponent("optimization")
	}
	return append([]float64(nil), weights...), nil
}

// Run is the evaluation context of a single optimization run. It owns
// the wall-time budget, best-point tracking, the evaluation counters
// and the optional iteration history, so strategies carry no mutable
// run state of their own. A Run serves one logical thread of control
// and is not safe for concurrent use.
type Run struct {
	cfg  RunConfig
	cond *TerminationConditions

	timeSteps int
	channels  int
	start     time.Time

	bestNorm  float64
	bestCosts []float64
	bestPulse *mat.Dense

	costEvals int
	jacEvals  int

	summary *Summary
	stats   *PerformanceStatistics
}

// NewRun prepares the evaluation context for one optimization run:
// fresh best-point state, the recorded pulse shape and start time, a
// new iteration summary when step recording is enabled, and a fresh
// statistics record when the simulator requests one.
func NewRun(cfg RunConfig, initial *mat.Dense) *Run {
	nt, nc := initial.Dims()
	r := &Run{
		cfg:       cfg,
		cond:      cfg.Conditions.normalized(),
		timeSteps: nt,
		channels:  nc,
		bestNorm:  math.Inf(1),
		start:     time.Now(),
	}
	if cfg.RecordSteps {
		r.summary = &Summary{Indices: cfg.Simulator.CostIndices()}
	}
	if sp, ok := cfg.Simulator.(StatsProvider); ok && sp.Stats() != nil {
		r.stats = &PerformanceStatistics{
			StartTime: r.start,
			Indices:   cfg.Simulator.CostIndices(),
		}
		sp.ResetStats(r.stats)
	}
	return r
}

// Conditions returns the effective termination limits of the run.
func (r *Run) Conditions() *TerminationConditions { return r.cond }

// Shape returns the pulse shape fixed at run start.
func (r *Run) Shape() (timeSteps, channels int) { return r.timeSteps, r.channels }

// Reshape converts a flat parameter vector back to pulse form.
func (r *Run) Reshape(x []float64) *mat.Dense {
	return ReshapePulse(x, r.timeSteps, r.channels)
}

// CostEvals returns the number of completed cost evaluations.
func (r *Run) CostEvals() int { return r.costEvals }

// JacEvals returns the number of completed Jacobian evaluations.
func (r *Run) JacEvals() int { return r.jacEvals }

// Summary returns the iteration history, or nil when recording is off.
func (r *Run) Summary() *Summary { return r.summary }

// Stats returns the statistics record, or nil when the simulator did
// not request one.
func (r *Run) Stats() *PerformanceStatistics { return r.stats }

// Best returns the unweighted cost vector and pulse with the smallest
// cost norm seen so far. Both are nil before the first successful
// evaluation.
func (r *Run) Best() (costs []float64, pulse *mat.Dense) {
	return r.bestCosts, r.bestPulse
}

// EvaluateCost evaluates the simulator's cost functions at the flat
// parameter vector x. The wall-time budget is checked before the
// simulator is invoked; on a budget violation ErrWallTimeExceeded is
// returned and no evaluation takes place. History entries and the
// best-point state always hold the unweighted cost vector; weights are
// applied to a copy just before returning.
func (r *Run) EvaluateCost(x []float64) ([]float64, error) {
	if time.Since(r.start) > r.cond.MaxWallTime {
		return nil, ErrWallTimeExceeded
	}

	pulse := r.Reshape(x)
	evalStart := time.Now()
	costs, err := r.cfg.Simulator.Costs(pulse)
	if err != nil {
		return nil, WrapError(err, "cost evaluation failed").WithComponent("optimization")
	}
	if r.stats != nil {
		r.stats.CostEvalDurations = append(r.stats.CostEvalDurations, time.Since(evalStart))
	}

	if r.summary != nil {
		r.summary.IterNum++
		r.summary.Costs = append(r.summary.Costs, append([]float64(nil), costs...))
		r.summary.Parameters = append(r.summary.Parameters, mat.DenseCopyOf(pulse))
	}

	if n := floats.Norm(costs, 2); n < r.bestNorm {
		r.bestNorm = n
		r.bestCosts = append([]float64(nil), costs...)
		r.bestPulse = pulse
	}

	if r.cfg.Weights != nil {
		weighted := append([]float64(nil), costs...)
		floats.Mul(weighted, r.cfg.Weights)
		costs = weighted
	}

	r.costEvals++
	return costs, nil
}

// EvaluateJacobian evaluates the simulator's Jacobian at the flat
// parameter vector x and rearranges it into a (cost function,
// channel*time) matrix whose column order matches FlattenPulse. The
// raw Jacobian is recorded in the history before weighting; weights
// scale whole rows. There is no wall-time check here, the budget is
// enforced on cost evaluations only.
func (r *Run) EvaluateJacobian(x []float64) (*mat.Dense, error) {
	pulse := r.Reshape(x)
	evalStart := time.Now()
	jac, err := r.cfg.Simulator.Jacobian(pulse)
	if err != nil {
		return nil, WrapError(err, "jacobian evaluation failed").WithComponent("optimization")
	}
	if r.stats != nil {
		r.stats.GradEvalDurations = append(r.stats.GradEvalDurations, time.Since(evalStart))
	}

	if r.summary != nil {
		r.summary.Gradients = append(r.summary.Gradients, jac.Clone())
	}

	m := jac.Flatten()
	if r.cfg.Weights != nil {
		for f, w := range r.cfg.Weights {
			floats.Scale(w, m.RawRowView(f))
		}
	}

	r.jacEvals++
	return m, nil
}

// ScalarCost reduces the cost vector to its sum of squares.
func (r *Run) ScalarCost(x []float64) (float64, error) {
	costs, err := r.EvaluateCost(x)
	if err != nil {
		return 0, err
	}
	return floats.Dot(costs, costs), nil
}

// ScalarGradient reduces the Jacobian to the gradient of the
// sum-of-squares cost by summing twice each cost function's row into
// grad, which must have length timeSteps*channels.
func (r *Run) ScalarGradient(x, grad []float64) error {
	m, err := r.EvaluateJacobian(x)
	if err != nil {
		return err
	}
	rows, cols := m.Dims()
	for j := 0; j < cols; j++ {
		var g float64
		for i := 0; i < rows; i++ {
			g += 2 * m.At(i, j)
		}
		grad[j] = g
	}
	return nil
}

// FinishStats stamps the end time on the statistics record, if any.
func (r *Run) FinishStats() {
	if r.stats != nil {
		r.stats.EndTime = time.Now()
	}
}

// AbortResult builds the best-effort result used when a run exceeds
// its wall-time budget: the best point seen so far with status
// StatusWallTime. When analytical Jacobians are in use and at least
// one evaluation completed, the gradient norm at the best point is
// recomputed; a run aborted before any evaluation yields a result with
// nil costs and parameters rather than failing.
func (r *Run) AbortResult(opt Optimizer) *Result {
	r.FinishStats()

	var gradNorm float64
	if r.cfg.UseJacobian && r.bestPulse != nil {
		if m, err := r.EvaluateJacobian(FlattenPulse(r.bestPulse)); err == nil {
			gradNorm = mat.Norm(m, 2)
		}
	}

	return &Result{
		FinalCosts:        r.bestCosts,
		Indices:           r.cfg.Simulator.CostIndices(),
		FinalParameters:   r.bestPulse,
		FinalGradNorm:     gradNorm,
		NumIter:           r.costEvals,
		TerminationReason: ReasonWallTime,
		Status:            StatusWallTime,
		Optimizer:         opt,
		Summary:           r.summary,
		Stats:             r.stats,
	}
}
