package optimization

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Simulator is the interface to the physical simulation. It maps a
// pulse to a vector of scalar cost values and, optionally, their
// derivatives. Implementations live outside this layer.
type Simulator interface {
	// Costs evaluates the cost functions at the given pulse. The
	// returned vector has one entry per cost function.
	Costs(pulse *mat.Dense) ([]float64, error)

	// Jacobian evaluates the derivatives of the cost functions at the
	// given pulse, indexed by (time step, cost function, channel).
	Jacobian(pulse *mat.Dense) (*Jacobian, error)

	// CostIndices returns the ordered labels of the cost-function
	// components. They are passed through into results unchanged.
	CostIndices() []string
}

// StatsProvider is implemented by simulators that record performance
// statistics. When the current record is non-nil, each run installs a
// fresh one before the first evaluation.
type StatsProvider interface {
	Stats() *PerformanceStatistics
	ResetStats(*PerformanceStatistics)
}

// PerformanceStatistics is the timing record of a single run.
type PerformanceStatistics struct {
	StartTime time.Time
	EndTime   time.Time
	Indices   []string

	CostEvalDurations []time.Duration
	GradEvalDurations []time.Duration
}

// Jacobian holds simulator derivatives indexed by (time step,
// cost function, channel).
type Jacobian struct {
	timeSteps int
	costFuncs int
	channels  int
	data      []float64
}

// NewJacobian allocates a zero Jacobian of the given dimensions.
func NewJacobian(timeSteps, costFuncs, channels int) *Jacobian {
	return &Jacobian{
		timeSteps: timeSteps,
		costFuncs: costFuncs,
		channels:  channels,
		data:      make([]float64, timeSteps*costFuncs*channels),
	}
}

// Dims returns the (time step, cost function, channel) dimensions.
func (j *Jacobian) Dims() (timeSteps, costFuncs, channels int) {
	return j.timeSteps, j.costFuncs, j.channels
}

// At returns the derivative of cost function f with respect to the
// amplitude at time step t on channel c.
func (j *Jacobian) At(t, f, c int) float64 {
	return j.data[(t*j.costFuncs+f)*j.channels+c]
}

// Set stores the derivative of cost function f with respect to the
// amplitude at time step t on channel c.
func (j *Jacobian) Set(t, f, c int, v float64) {
	j.data[(t*j.costFuncs+f)*j.channels+c] = v
}

// Clone returns a deep copy.
func (j *Jacobian) Clone() *Jacobian {
	out := &Jacobian{
		timeSteps: j.timeSteps,
		costFuncs: j.costFuncs,
		channels:  j.channels,
		data:      make([]float64, len(j.data)),
	}
	copy(out.data, j.data)
	return out
}

// Flatten rearranges the Jacobian into a (costFuncs, channels*timeSteps)
// matrix whose column order matches FlattenPulse, so that row f is the
// gradient of cost function f with respect to the flat parameters.
func (j *Jacobian) Flatten() *mat.Dense {
	m := mat.NewDense(j.costFuncs, j.channels*j.timeSteps, nil)
	for f := 0; f < j.costFuncs; f++ {
		for c := 0; c < j.channels; c++ {
			for t := 0; t < j.timeSteps; t++ {
				m.Set(f, c*j.timeSteps+t, j.At(t, f, c))
			}
		}
	}
	return m
}
