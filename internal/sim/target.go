// Package sim provides the built-in pulse simulator used by the
// service surface: a per-channel distance to a target pulse with an
// analytic Jacobian.
package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
)

// TargetSimulator scores a pulse against a fixed target pulse. Cost
// function f is the Euclidean distance between channel f of the pulse
// and channel f of the target, so there is one cost function per
// channel.
type TargetSimulator struct {
	target  *mat.Dense
	indices []string
	stats   *optimization.PerformanceStatistics
}

// NewTargetSimulator builds a simulator scoring against the given
// target pulse.
func NewTargetSimulator(target *mat.Dense) *TargetSimulator {
	_, nc := target.Dims()
	indices := make([]string, nc)
	for c := range indices {
		indices[c] = fmt.Sprintf("ch%d", c)
	}
	return &TargetSimulator{
		target:  mat.DenseCopyOf(target),
		indices: indices,
	}
}

// WithStats enables performance-statistics recording.
func (s *TargetSimulator) WithStats() *TargetSimulator {
	s.stats = &optimization.PerformanceStatistics{Indices: s.indices}
	return s
}

// Costs returns the per-channel distances to the target.
func (s *TargetSimulator) Costs(pulse *mat.Dense) ([]float64, error) {
	nt, nc, err := s.checkShape(pulse)
	if err != nil {
		return nil, err
	}
	costs := make([]float64, nc)
	for c := 0; c < nc; c++ {
		var sum float64
		for t := 0; t < nt; t++ {
			d := pulse.At(t, c) - s.target.At(t, c)
			sum += d * d
		}
		costs[c] = math.Sqrt(sum)
	}
	return costs, nil
}

// Jacobian returns the analytic derivatives. The distance of channel f
// depends only on channel f, so every cross-channel entry is zero. At
// the target itself the distance is not differentiable; the derivative
// is reported as zero there.
func (s *TargetSimulator) Jacobian(pulse *mat.Dense) (*optimization.Jacobian, error) {
	nt, nc, err := s.checkShape(pulse)
	if err != nil {
		return nil, err
	}
	costs, err := s.Costs(pulse)
	if err != nil {
		return nil, err
	}
	jac := optimization.NewJacobian(nt, nc, nc)
	for f := 0; f < nc; f++ {
		if costs[f] == 0 {
			continue
		}
		for t := 0; t < nt; t++ {
			d := pulse.At(t, f) - s.target.At(t, f)
			jac.Set(t, f, f, d/costs[f])
		}
	}
	return jac, nil
}

// CostIndices returns one label per channel, "ch0" onwards.
func (s *TargetSimulator) CostIndices() []string { return s.indices }

// Stats returns the current statistics record, or nil when recording
// is disabled.
func (s *TargetSimulator) Stats() *optimization.PerformanceStatistics { return s.stats }

// ResetStats installs a fresh statistics record.
func (s *TargetSimulator) ResetStats(stats *optimization.PerformanceStatistics) { s.stats = stats }

func (s *TargetSimulator) checkShape(pulse *mat.Dense) (nt, nc int, err error) {
	nt, nc = s.target.Dims()
	pt, pc := pulse.Dims()
	if pt != nt || pc != nc {
		return 0, 0, optimization.NewErrorf("pulse shape (%d, %d) does not match target shape (%d, %d)",
			pt, pc, nt, nc).WithComponent("sim")
	}
	return nt, nc, nil
}
