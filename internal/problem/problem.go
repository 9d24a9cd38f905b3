// Package problem defines the declarative optimization problem file
// consumed by the CLI and the HTTP service.
package problem

import (
	"fmt"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/openpulse/pulseopt/internal/optimization"
	"github.com/openpulse/pulseopt/internal/optimization/annealing"
	"github.com/openpulse/pulseopt/internal/optimization/leastsquares"
	"github.com/openpulse/pulseopt/internal/optimization/scalar"
	"github.com/openpulse/pulseopt/internal/optimization/swarm"
)

// Methods accepted in a problem spec.
const (
	MethodLeastSquares = "least-squares"
	MethodLBFGSB       = "l-bfgs-b"
	MethodNelderMead   = "nelder-mead"
	MethodBFGS         = "bfgs"
	MethodCG           = "cg"
	MethodAnnealing    = "annealing"
	MethodBasinHopping = "basin-hopping"
	MethodSwarm        = "swarm"
)

// Spec is one optimization problem: the pulse dimensions, the target,
// the method and its tuning knobs. It decodes from YAML problem files
// and from JSON request bodies.
type Spec struct {
	TimeSteps int    `yaml:"time_steps" json:"time_steps"`
	Channels  int    `yaml:"channels" json:"channels"`
	Method    string `yaml:"method" json:"method"`

	// Initial is the starting pulse, row per time step. Empty starts
	// from zeros.
	Initial [][]float64 `yaml:"initial" json:"initial,omitempty"`
	// Target is the pulse the simulator scores against.
	Target [][]float64 `yaml:"target" json:"target"`

	Weights         []float64 `yaml:"weights" json:"weights,omitempty"`
	RecordSteps     bool      `yaml:"record_steps" json:"record_steps,omitempty"`
	NumericJacobian bool      `yaml:"numeric_jacobian" json:"numeric_jacobian,omitempty"`

	// Bounds are scalar amplitude bounds broadcast over the pulse.
	Bounds *BoundsSpec `yaml:"bounds" json:"bounds,omitempty"`

	Termination *TerminationSpec `yaml:"termination" json:"termination,omitempty"`
	Annealing   *AnnealingSpec   `yaml:"annealing" json:"annealing,omitempty"`
	Swarm       *SwarmSpec       `yaml:"swarm" json:"swarm,omitempty"`
}

// BoundsSpec is a scalar amplitude interval broadcast over every pulse
// element.
type BoundsSpec struct {
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper"`
}

// TerminationSpec overrides individual termination limits; unset
// fields keep their defaults. MaxWallTime is a duration string such as
// "30s".
type TerminationSpec struct {
	MinGradientNorm    *float64 `yaml:"min_gradient_norm" json:"min_gradient_norm,omitempty"`
	MinCostGain        *float64 `yaml:"min_cost_gain" json:"min_cost_gain,omitempty"`
	MaxWallTime        string   `yaml:"max_wall_time" json:"max_wall_time,omitempty"`
	MaxCostFuncCalls   *int     `yaml:"max_cost_func_calls" json:"max_cost_func_calls,omitempty"`
	MaxIterations      *int     `yaml:"max_iterations" json:"max_iterations,omitempty"`
	MinAmplitudeChange *float64 `yaml:"min_amplitude_change" json:"min_amplitude_change,omitempty"`
}

// AnnealingSpec tunes the annealing and basin-hopping methods.
type AnnealingSpec struct {
	InitialTemperature float64 `yaml:"initial_temperature" json:"initial_temperature,omitempty"`
	FinalTemperature   float64 `yaml:"final_temperature" json:"final_temperature,omitempty"`
	StepSize           int     `yaml:"step_size" json:"step_size,omitempty"`
	StepRatio          float64 `yaml:"step_ratio" json:"step_ratio,omitempty"`
	Interval           int     `yaml:"interval" json:"interval,omitempty"`
	Seed               int64   `yaml:"seed" json:"seed,omitempty"`
}

// SwarmSpec tunes the swarm method.
type SwarmSpec struct {
	Population int   `yaml:"population" json:"population,omitempty"`
	Seed       int64 `yaml:"seed" json:"seed,omitempty"`
}

// Load reads and validates a YAML problem file.
func Load(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("problem: read %s: %w", path, err)
	}
	var spec Spec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("problem: parse %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks dimensions and method consistency.
func (s *Spec) Validate() error {
	if s.TimeSteps <= 0 || s.Channels <= 0 {
		return fmt.Errorf("problem: time_steps and channels must be positive, got (%d, %d)", s.TimeSteps, s.Channels)
	}
	if err := checkPulse("target", s.Target, s.TimeSteps, s.Channels); err != nil {
		return err
	}
	if len(s.Initial) > 0 {
		if err := checkPulse("initial", s.Initial, s.TimeSteps, s.Channels); err != nil {
			return err
		}
	}
	if s.Bounds != nil && s.Bounds.Lower >= s.Bounds.Upper {
		return fmt.Errorf("problem: bounds lower %g must be below upper %g", s.Bounds.Lower, s.Bounds.Upper)
	}
	switch s.Method {
	case "", MethodLeastSquares, MethodLBFGSB, MethodNelderMead, MethodBFGS, MethodCG, MethodSwarm:
	case MethodAnnealing, MethodBasinHopping:
		if s.Bounds == nil {
			return fmt.Errorf("problem: method %q requires bounds", s.Method)
		}
	default:
		return fmt.Errorf("problem: unknown method %q", s.Method)
	}
	if s.Termination != nil && s.Termination.MaxWallTime != "" {
		if _, err := time.ParseDuration(s.Termination.MaxWallTime); err != nil {
			return fmt.Errorf("problem: invalid max_wall_time: %w", err)
		}
	}
	return nil
}

func checkPulse(name string, rows [][]float64, nt, nc int) error {
	if len(rows) != nt {
		return fmt.Errorf("problem: %s has %d rows, want %d", name, len(rows), nt)
	}
	for t, row := range rows {
		if len(row) != nc {
			return fmt.Errorf("problem: %s row %d has %d values, want %d", name, t, len(row), nc)
		}
	}
	return nil
}

// InitialPulse returns the starting pulse, zeros when unspecified.
func (s *Spec) InitialPulse() *mat.Dense {
	p := mat.NewDense(s.TimeSteps, s.Channels, nil)
	for t, row := range s.Initial {
		for c, v := range row {
			p.Set(t, c, v)
		}
	}
	return p
}

// TargetPulse returns the target pulse.
func (s *Spec) TargetPulse() *mat.Dense {
	p := mat.NewDense(s.TimeSteps, s.Channels, nil)
	for t, row := range s.Target {
		for c, v := range row {
			p.Set(t, c, v)
		}
	}
	return p
}

// Conditions resolves the termination overrides against the defaults.
func (s *Spec) Conditions() (*optimization.TerminationConditions, error) {
	cond := optimization.DefaultTerminationConditions()
	t := s.Termination
	if t == nil {
		return cond, nil
	}
	if t.MinGradientNorm != nil {
		cond.MinGradientNorm = *t.MinGradientNorm
	}
	if t.MinCostGain != nil {
		cond.MinCostGain = *t.MinCostGain
	}
	if t.MaxWallTime != "" {
		d, err := time.ParseDuration(t.MaxWallTime)
		if err != nil {
			return nil, fmt.Errorf("problem: invalid max_wall_time: %w", err)
		}
		cond.MaxWallTime = d
	}
	if t.MaxCostFuncCalls != nil {
		cond.MaxCostFuncCalls = *t.MaxCostFuncCalls
	}
	if t.MaxIterations != nil {
		cond.MaxIterations = *t.MaxIterations
	}
	if t.MinAmplitudeChange != nil {
		cond.MinAmplitudeChange = *t.MinAmplitudeChange
	}
	return cond, nil
}

func (s *Spec) bounds() *optimization.Bounds {
	if s.Bounds == nil {
		return nil
	}
	return optimization.UniformBounds(s.TimeSteps, s.Channels, s.Bounds.Lower, s.Bounds.Upper)
}

// Build wires the spec and a simulator into a ready-to-run optimizer.
func (s *Spec) Build(sim optimization.Simulator) (optimization.Optimizer, error) {
	cond, err := s.Conditions()
	if err != nil {
		return nil, err
	}
	bounds := s.bounds()

	switch s.Method {
	case "", MethodLeastSquares:
		return leastsquares.New(leastsquares.Config{
			Simulator:       sim,
			Conditions:      cond,
			RecordSteps:     s.RecordSteps,
			Weights:         s.Weights,
			NumericJacobian: s.NumericJacobian,
			Bounds:          bounds,
		})
	case MethodLBFGSB, MethodNelderMead, MethodBFGS, MethodCG:
		return scalar.New(scalar.Config{
			Simulator:       sim,
			Conditions:      cond,
			RecordSteps:     s.RecordSteps,
			Weights:         s.Weights,
			NumericJacobian: s.NumericJacobian,
			Method:          s.Method,
			Bounds:          bounds,
		})
	case MethodAnnealing:
		cfg := annealing.Config{
			Simulator:   sim,
			Conditions:  cond,
			RecordSteps: s.RecordSteps,
			Weights:     s.Weights,
			Bounds:      bounds,
		}
		if a := s.Annealing; a != nil {
			cfg.InitialTemperature = a.InitialTemperature
			cfg.FinalTemperature = a.FinalTemperature
			cfg.StepSize = a.StepSize
			cfg.StepRatio = a.StepRatio
			cfg.Seed = a.Seed
		}
		return annealing.NewSimulatedAnnealing(cfg)
	case MethodBasinHopping:
		cfg := annealing.BasinHoppingConfig{
			Simulator:   sim,
			Conditions:  cond,
			RecordSteps: s.RecordSteps,
			Weights:     s.Weights,
			Bounds:      bounds,
		}
		if a := s.Annealing; a != nil {
			cfg.Temperature = a.InitialTemperature
			cfg.StepSize = a.StepSize
			cfg.Interval = a.Interval
			cfg.Seed = a.Seed
		}
		return annealing.NewBasinHopping(cfg)
	case MethodSwarm:
		cfg := swarm.Config{
			Simulator:   sim,
			Conditions:  cond,
			RecordSteps: s.RecordSteps,
			Weights:     s.Weights,
		}
		if s.Bounds != nil {
			cfg.LowerBound = s.Bounds.Lower
			cfg.UpperBound = s.Bounds.Upper
		}
		if w := s.Swarm; w != nil {
			cfg.Population = w.Population
			cfg.Seed = w.Seed
		}
		return swarm.New(cfg)
	}
	return nil, fmt.Errorf("problem: unknown method %q", s.Method)
}
