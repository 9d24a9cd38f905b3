package annealing

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
	"github.com/openpulse/pulseopt/internal/sim"
)

func testConditions(steps int) *optimization.TerminationConditions {
	cond := optimization.DefaultTerminationConditions()
	cond.MaxWallTime = time.Hour
	cond.MaxIterations = steps
	return cond
}

func TestNewPulseAnnealerValidation(t *testing.T) {
	initial := mat.NewDense(2, 1, nil)
	bounds := optimization.UniformBounds(2, 1, -1, 1)
	energy := func(x []float64) ([]float64, error) { return []float64{0}, nil }

	_, err := NewPulseAnnealer(initial, 0, 1, bounds, energy)
	assert.Error(t, err, "a non-positive step size is rejected")

	_, err = NewPulseAnnealer(initial, 1, 1, nil, energy)
	assert.Error(t, err, "bounds are required")
}

func TestPulseAnnealerMoveStaysInBounds(t *testing.T) {
	bounds := optimization.UniformBounds(3, 2, -2, 2)
	initial := mat.NewDense(3, 2, []float64{
		2, -2,
		0, 2,
		-2, 0,
	})
	annealer, err := NewPulseAnnealer(initial, 3, 1, bounds, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		require.NoError(t, annealer.Move(rng))
		state := annealer.State()
		for tt := 0; tt < 3; tt++ {
			for c := 0; c < 2; c++ {
				v := state.At(tt, c)
				assert.GreaterOrEqual(t, v, -2.0)
				assert.LessOrEqual(t, v, 2.0)
			}
		}
	}
}

func TestPulseAnnealerEnergyIsCostNorm(t *testing.T) {
	bounds := optimization.UniformBounds(1, 1, -10, 10)
	annealer, err := NewPulseAnnealer(mat.NewDense(1, 1, nil), 1, 1, bounds,
		func(x []float64) ([]float64, error) { return []float64{3, 4}, nil })
	require.NoError(t, err)

	energy, err := annealer.Energy()
	require.NoError(t, err)
	assert.InDelta(t, 5, energy, 1e-12)
}

func TestPulseAnnealerStateSnapshots(t *testing.T) {
	bounds := optimization.UniformBounds(1, 1, -10, 10)
	annealer, err := NewPulseAnnealer(mat.NewDense(1, 1, []float64{3}), 1, 1, bounds, nil)
	require.NoError(t, err)

	snap := annealer.State()
	annealer.SetState(mat.NewDense(1, 1, []float64{7}))
	assert.Equal(t, 3.0, snap.At(0, 0), "snapshots are copies")
	assert.Equal(t, 7.0, annealer.State().At(0, 0))
}

func TestSimulatedAnnealingReducesCost(t *testing.T) {
	target := mat.NewDense(4, 1, []float64{3, -2, 4, 1})
	simulator := sim.NewTargetSimulator(target)

	opt, err := NewSimulatedAnnealing(Config{
		Simulator:  simulator,
		Conditions: testConditions(3000),
		Bounds:     optimization.UniformBounds(4, 1, -5, 5),
		Seed:       17,
	})
	require.NoError(t, err)

	initial := mat.NewDense(4, 1, nil)
	startCosts, err := simulator.Costs(initial)
	require.NoError(t, err)

	res, err := opt.RunOptimization(initial)
	require.NoError(t, err)

	require.Len(t, res.FinalCosts, 1)
	assert.Less(t, res.FinalCosts[0], startCosts[0])
	assert.Equal(t, 0, res.Status)
	assert.Greater(t, res.NumIter, 0)
}

func TestSimulatedAnnealingPropagatesWallTimeError(t *testing.T) {
	simulator := sim.NewTargetSimulator(mat.NewDense(2, 1, []float64{1, 1}))
	cond := optimization.DefaultTerminationConditions()
	cond.MaxWallTime = 0
	cond.MaxIterations = 10

	opt, err := NewSimulatedAnnealing(Config{
		Simulator:  simulator,
		Conditions: cond,
		Bounds:     optimization.UniformBounds(2, 1, -1, 1),
	})
	require.NoError(t, err)

	_, err = opt.RunOptimization(mat.NewDense(2, 1, nil))
	assert.True(t, errors.Is(err, optimization.ErrWallTimeExceeded))
}

func TestBasinHoppingReachesTarget(t *testing.T) {
	target := mat.NewDense(2, 1, []float64{1, -1})
	simulator := sim.NewTargetSimulator(target)

	opt, err := NewBasinHopping(BasinHoppingConfig{
		Simulator:  simulator,
		Conditions: testConditions(10),
		Bounds:     optimization.UniformBounds(2, 1, -3, 3),
		Seed:       23,
	})
	require.NoError(t, err)

	res, err := opt.RunOptimization(mat.NewDense(2, 1, nil))
	require.NoError(t, err)
	assert.InDelta(t, 0, res.FinalCosts[0], 1e-3)
	assert.Equal(t, 0, res.Status)
}

func TestBasinHoppingWallTimeExceeded(t *testing.T) {
	simulator := sim.NewTargetSimulator(mat.NewDense(2, 1, []float64{1, 1}))
	cond := optimization.DefaultTerminationConditions()
	cond.MaxWallTime = 0
	cond.MaxIterations = 5

	opt, err := NewBasinHopping(BasinHoppingConfig{
		Simulator:  simulator,
		Conditions: cond,
		Bounds:     optimization.UniformBounds(2, 1, -1, 1),
	})
	require.NoError(t, err)

	res, err := opt.RunOptimization(mat.NewDense(2, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, optimization.StatusWallTime, res.Status)
	assert.Equal(t, optimization.ReasonWallTime, res.TerminationReason)
}
