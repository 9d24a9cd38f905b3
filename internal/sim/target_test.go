package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTargetSimulatorCosts(t *testing.T) {
	target := mat.NewDense(2, 2, []float64{
		1, 0,
		1, 0,
	})
	sim := NewTargetSimulator(target)

	pulse := mat.NewDense(2, 2, []float64{
		1, 3,
		1, 4,
	})
	costs, err := sim.Costs(pulse)
	require.NoError(t, err)
	require.Len(t, costs, 2)

	// Channel 0 matches the target, channel 1 is off by (3, 4).
	assert.InDelta(t, 0, costs[0], 1e-12)
	assert.InDelta(t, 5, costs[1], 1e-12)
	assert.Equal(t, []string{"ch0", "ch1"}, sim.CostIndices())
}

func TestTargetSimulatorShapeMismatch(t *testing.T) {
	sim := NewTargetSimulator(mat.NewDense(2, 2, nil))
	_, err := sim.Costs(mat.NewDense(3, 2, nil))
	assert.Error(t, err)
}

func TestTargetSimulatorJacobianMatchesFiniteDifference(t *testing.T) {
	target := mat.NewDense(3, 2, []float64{
		0.5, -1,
		0.2, 0.4,
		-0.3, 1.2,
	})
	sim := NewTargetSimulator(target)

	pulse := mat.NewDense(3, 2, []float64{
		1, 0,
		-0.5, 2,
		0.7, -1,
	})

	jac, err := sim.Jacobian(pulse)
	require.NoError(t, err)

	const h = 1e-7
	nt, nc := pulse.Dims()
	for tt := 0; tt < nt; tt++ {
		for c := 0; c < nc; c++ {
			base, err := sim.Costs(pulse)
			require.NoError(t, err)

			bumped := mat.DenseCopyOf(pulse)
			bumped.Set(tt, c, bumped.At(tt, c)+h)
			shifted, err := sim.Costs(bumped)
			require.NoError(t, err)

			for f := 0; f < nc; f++ {
				fd := (shifted[f] - base[f]) / h
				assert.InDeltaf(t, fd, jac.At(tt, f, c), 1e-5,
					"d cost[%d] / d pulse(%d,%d)", f, tt, c)
			}
		}
	}
}

func TestTargetSimulatorJacobianAtTarget(t *testing.T) {
	target := mat.NewDense(2, 1, []float64{1, 2})
	sim := NewTargetSimulator(target)

	jac, err := sim.Jacobian(mat.DenseCopyOf(target))
	require.NoError(t, err)

	// The distance is not differentiable at the target; the derivative
	// is reported as zero.
	nt, nf, nc := jac.Dims()
	for tt := 0; tt < nt; tt++ {
		for f := 0; f < nf; f++ {
			for c := 0; c < nc; c++ {
				assert.Zero(t, jac.At(tt, f, c))
			}
		}
	}
}

func TestTargetSimulatorStats(t *testing.T) {
	sim := NewTargetSimulator(mat.NewDense(1, 1, []float64{1}))
	assert.Nil(t, sim.Stats())

	sim = sim.WithStats()
	require.NotNil(t, sim.Stats())
}
