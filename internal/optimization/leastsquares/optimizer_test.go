package leastsquares

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/optimization"
	"github.com/openpulse/pulseopt/internal/sim"
)

func testConditions() *optimization.TerminationConditions {
	cond := optimization.DefaultTerminationConditions()
	cond.MaxWallTime = time.Hour
	return cond
}

func TestNewRequiresSimulator(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNewRejectsUnknownMethod(t *testing.T) {
	simulator := sim.NewTargetSimulator(mat.NewDense(2, 1, nil))
	_, err := New(Config{Simulator: simulator, Method: "trf"})
	assert.Error(t, err)
}

func TestNewRejectsMismatchedWeights(t *testing.T) {
	simulator := sim.NewTargetSimulator(mat.NewDense(2, 2, nil))
	_, err := New(Config{Simulator: simulator, Weights: []float64{1}})
	assert.Error(t, err)
}

func TestRunOptimizationReachesTarget(t *testing.T) {
	target := mat.NewDense(5, 1, []float64{0.5, -0.2, 0.8, 0.1, -0.4})
	simulator := sim.NewTargetSimulator(target)

	opt, err := New(Config{
		Simulator:   simulator,
		Conditions:  testConditions(),
		RecordSteps: true,
	})
	require.NoError(t, err)

	res, err := opt.RunOptimization(mat.NewDense(5, 1, nil))
	require.NoError(t, err)

	require.Len(t, res.FinalCosts, 1)
	assert.InDelta(t, 0, res.FinalCosts[0], 1e-4)
	assert.Equal(t, []string{"ch0"}, res.Indices)
	assert.InDelta(t, 0.5, res.FinalParameters.At(0, 0), 1e-4)
	assert.Greater(t, res.NumIter, 0)
	require.NotNil(t, res.Summary)
	assert.Greater(t, res.Summary.IterNum, 0)
}

func TestRunOptimizationNumericJacobian(t *testing.T) {
	target := mat.NewDense(3, 1, []float64{1, 2, 3})
	simulator := sim.NewTargetSimulator(target)

	opt, err := New(Config{
		Simulator:       simulator,
		Conditions:      testConditions(),
		NumericJacobian: true,
	})
	require.NoError(t, err)

	res, err := opt.RunOptimization(mat.NewDense(3, 1, nil))
	require.NoError(t, err)
	assert.InDelta(t, 0, res.FinalCosts[0], 1e-3)
}

func TestRunOptimizationRespectsBounds(t *testing.T) {
	target := mat.NewDense(2, 1, []float64{5, 5})
	simulator := sim.NewTargetSimulator(target)

	opt, err := New(Config{
		Simulator:  simulator,
		Conditions: testConditions(),
		Bounds:     optimization.UniformBounds(2, 1, -1, 1),
	})
	require.NoError(t, err)

	res, err := opt.RunOptimization(mat.NewDense(2, 1, nil))
	require.NoError(t, err)
	assert.InDelta(t, 1, res.FinalParameters.At(0, 0), 1e-6)
	assert.InDelta(t, 1, res.FinalParameters.At(1, 0), 1e-6)
}

func TestRunOptimizationWallTimeExceeded(t *testing.T) {
	simulator := sim.NewTargetSimulator(mat.NewDense(2, 1, []float64{1, 1}))
	cond := optimization.DefaultTerminationConditions()
	cond.MaxWallTime = 0

	opt, err := New(Config{Simulator: simulator, Conditions: cond})
	require.NoError(t, err)

	res, err := opt.RunOptimization(mat.NewDense(2, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, optimization.StatusWallTime, res.Status)
	assert.Equal(t, optimization.ReasonWallTime, res.TerminationReason)
	assert.Nil(t, res.FinalParameters)
}
