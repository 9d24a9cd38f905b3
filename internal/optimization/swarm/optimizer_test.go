package swarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
	"github.com/openpulse/pulseopt/internal/sim"
)

func TestNewValidation(t *testing.T) {
	simulator := sim.NewTargetSimulator(mat.NewDense(2, 1, nil))

	_, err := New(Config{})
	assert.Error(t, err, "a simulator is required")

	_, err = New(Config{Simulator: simulator, LowerBound: 1, UpperBound: -1})
	assert.Error(t, err, "inverted bounds are rejected")
}

func TestRunOptimizationReducesCost(t *testing.T) {
	target := mat.NewDense(3, 1, []float64{0.4, -0.3, 0.1})
	simulator := sim.NewTargetSimulator(target)

	cond := optimization.DefaultTerminationConditions()
	cond.MaxWallTime = time.Hour
	cond.MaxIterations = 100

	opt, err := New(Config{
		Simulator:  simulator,
		Conditions: cond,
		Seed:       31,
	})
	require.NoError(t, err)

	res, err := opt.RunOptimization(mat.NewDense(3, 1, nil))
	require.NoError(t, err)

	require.Len(t, res.FinalCosts, 1)
	assert.Less(t, res.FinalCosts[0], 0.3)
	nt, nc := res.FinalParameters.Dims()
	assert.Equal(t, 3, nt)
	assert.Equal(t, 1, nc)
	assert.Greater(t, res.NumIter, 0)
}

func TestRunOptimizationWallTimeExceeded(t *testing.T) {
	simulator := sim.NewTargetSimulator(mat.NewDense(2, 1, []float64{1, 1}))
	cond := optimization.DefaultTerminationConditions()
	cond.MaxWallTime = 0
	cond.MaxIterations = 10

	opt, err := New(Config{Simulator: simulator, Conditions: cond})
	require.NoError(t, err)

	res, err := opt.RunOptimization(mat.NewDense(2, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, optimization.StatusWallTime, res.Status)
}
