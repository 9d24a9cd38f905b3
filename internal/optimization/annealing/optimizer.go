package annealing

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
	"github.com/openpulse/pulseopt/internal/solver"
)

// Config configures the simulated-annealing optimizer.
type Config struct {
	Simulator  optimization.Simulator
	Conditions *optimization.TerminationConditions
	// RecordSteps enables the per-evaluation iteration summary.
	RecordSteps bool
	// Weights are the optional per-cost-function weights.
	Weights []float64
	// Bounds are required; the discrete annealing moves saturate at
	// them.
	Bounds *optimization.Bounds
	// InitialTemperature and FinalTemperature bound the exponential
	// cooling schedule. Defaults: 1 and InitialTemperature*1e-6.
	InitialTemperature float64
	FinalTemperature   float64
	// StepSize is the maximum integer perturbation per pulse element
	// and move. Zero defaults to 1; negative is an error.
	StepSize int
	// StepRatio is the per-element probability of being perturbed in a
	// move. Zero defaults to 1 (perturb all elements).
	StepRatio float64
	// Updates is the number of progress log lines over the run.
	Updates int
	// Seed fixes the random sequence; zero seeds from the clock.
	Seed int64
	// Logger, when set, receives periodic progress updates.
	Logger *zap.Logger
}

// SimulatedAnnealing anneals the pulse with integer moves under an
// exponential cooling schedule. The number of annealing steps is taken
// from the termination conditions' iteration limit.
type SimulatedAnnealing struct {
	cfg     Config
	weights []float64
}

// NewSimulatedAnnealing validates the configuration and builds the
// optimizer.
func NewSimulatedAnnealing(cfg Config) (*SimulatedAnnealing, error) {
	if cfg.Simulator == nil {
		return nil, optimization.NewError("a simulator is required").WithComponent("annealing")
	}
	if cfg.Bounds == nil {
		return nil, optimization.NewError("bounds are required for annealing").WithComponent("annealing")
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
	if cfg.StepRatio <= 0 || cfg.StepRatio > 1 {
		cfg.StepRatio = 1
	}
	if cfg.InitialTemperature <= 0 {
		cfg.InitialTemperature = 1
	}
	if cfg.FinalTemperature <= 0 {
		cfg.FinalTemperature = cfg.InitialTemperature * 1e-6
	}
	return &SimulatedAnnealing{cfg: cfg, weights: weights}, nil
}

// RunOptimization anneals the pulse starting from the given initial
// value. Unlike the gradient strategies an exceeded wall-time budget is
// returned as an error; annealing has no meaningful partial result to
// salvage from an interrupted schedule.
func (o *SimulatedAnnealing) RunOptimization(initial *mat.Dense) (*optimization.Result, error) {
	run := optimization.NewRun(optimization.RunConfig{
		Simulator:   o.cfg.Simulator,
		Conditions:  o.cfg.Conditions,
		RecordSteps: o.cfg.RecordSteps,
		Weights:     o.weights,
	}, initial)

	annealer, err := NewPulseAnnealer(initial, o.cfg.StepSize, o.cfg.StepRatio, o.cfg.Bounds, run.EvaluateCost)
	if err != nil {
		return nil, err
	}

	var progress func(step int, temp, energy, best float64)
	if o.cfg.Logger != nil {
		logger := o.cfg.Logger
		progress = func(step int, temp, energy, best float64) {
			logger.Info("annealing progress",
				zap.Int("step", step),
				zap.Float64("temperature", temp),
				zap.Float64("energy", energy),
				zap.Float64("best_energy", best))
		}
	}

	best, bestEnergy, err := solver.Anneal[*mat.Dense](annealer, solver.AnnealConfig{
		TMax:     o.cfg.InitialTemperature,
		TMin:     o.cfg.FinalTemperature,
		Steps:    run.Conditions().MaxIterations,
		Updates:  o.cfg.Updates,
		Seed:     o.cfg.Seed,
		Progress: progress,
	})
	if err != nil {
		return nil, err
	}

	run.FinishStats()
	return &optimization.Result{
		FinalCosts:      []float64{bestEnergy},
		Indices:         o.cfg.Simulator.CostIndices(),
		FinalParameters: best,
		NumIter:         run.CostEvals(),
		Status:          0,
		Optimizer:       o,
		Summary:         run.Summary(),
		Stats:           run.Stats(),
	}, nil
}
