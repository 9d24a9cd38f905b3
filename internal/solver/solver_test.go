package solver

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sphere(x []float64) (float64, error) {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

func sphereGrad(x, grad []float64) error {
	for i, v := range x {
		grad[i] = 2 * v
	}
	return nil
}

func identityJacobian(x []float64) (*mat.Dense, error) {
	n := len(x)
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m, nil
}

func TestMinimizeNelderMeadSphere(t *testing.T) {
	res, err := Minimize(MinimizeProblem{
		Objective: sphere,
		X0:        []float64{2, -3},
		Tol:       Tolerances{FuncTol: 1e-10, MaxIterations: 1000},
		Method:    MethodNelderMead,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.F, 1e-6)
	for _, v := range res.X {
		assert.InDelta(t, 0, v, 1e-3)
	}
}

func TestMinimizeClampsToBounds(t *testing.T) {
	// Minimum of (x-2)^2 under x <= 1 sits on the bound.
	res, err := Minimize(MinimizeProblem{
		Objective: func(x []float64) (float64, error) {
			return (x[0] - 2) * (x[0] - 2), nil
		},
		X0:     []float64{0},
		Bounds: [][2]float64{{-1, 1}},
		Tol:    Tolerances{FuncTol: 1e-10, MaxIterations: 1000},
		Method: MethodNelderMead,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1, res.X[0], 1e-3)
}

func TestMinimizeUnsupportedMethod(t *testing.T) {
	_, err := Minimize(MinimizeProblem{
		Objective: sphere,
		X0:        []float64{1},
		Method:    "trust-region",
	})
	assert.Error(t, err)
}

func TestMinimizePropagatesEvaluationError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Minimize(MinimizeProblem{
		Objective: func(x []float64) (float64, error) { return 0, boom },
		X0:        []float64{1},
		Method:    MethodNelderMead,
	})
	assert.ErrorIs(t, err, boom)
}

func TestMinimizeLBFGSBQuadratic(t *testing.T) {
	res, err := MinimizeLBFGSB(LBFGSBProblem{
		Objective: sphere,
		Gradient:  sphereGrad,
		X0:        []float64{4, -1},
		Tol:       Tolerances{GradTol: 1e-8},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Status)
	assert.InDelta(t, 0, res.F, 1e-10)
	for _, v := range res.X {
		assert.InDelta(t, 0, v, 1e-5)
	}
}

func TestMinimizeLBFGSBRespectsBounds(t *testing.T) {
	res, err := MinimizeLBFGSB(LBFGSBProblem{
		Objective: func(x []float64) (float64, error) {
			return (x[0] - 2) * (x[0] - 2), nil
		},
		Gradient: func(x, grad []float64) error {
			grad[0] = 2 * (x[0] - 2)
			return nil
		},
		X0:     []float64{0},
		Bounds: [][2]float64{{-1, 1}},
		Tol:    Tolerances{GradTol: 1e-8},
	})
	require.NoError(t, err)
	assert.InDelta(t, 1, res.X[0], 1e-8)
}

func TestMinimizeLBFGSBPropagatesEvaluationError(t *testing.T) {
	boom := errors.New("boom")
	_, err := MinimizeLBFGSB(LBFGSBProblem{
		Objective: func(x []float64) (float64, error) { return 0, boom },
		X0:        []float64{1},
	})
	assert.ErrorIs(t, err, boom)
}

func TestForwardDifference(t *testing.T) {
	grad := forwardDifference(sphere)
	g := make([]float64, 2)
	require.NoError(t, grad([]float64{1, -2}, g))
	assert.InDelta(t, 2, g[0], 1e-5)
	assert.InDelta(t, -4, g[1], 1e-5)
}

func TestLeastSquaresLinearResiduals(t *testing.T) {
	// r = x - [1, 2], minimum at x = [1, 2] with zero residuals.
	res, err := LeastSquares(LeastSquaresProblem{
		Residuals: func(x []float64) ([]float64, error) {
			return []float64{x[0] - 1, x[1] - 2}, nil
		},
		Jacobian: identityJacobian,
		X0:       []float64{0, 0},
		Tol:      Tolerances{GradTol: 1e-10},
	})
	require.NoError(t, err)
	assert.InDelta(t, 1, res.X[0], 1e-6)
	assert.InDelta(t, 2, res.X[1], 1e-6)
	require.Len(t, res.Residuals, 2)
	assert.InDelta(t, 0, res.Residuals[0], 1e-6)
	assert.InDelta(t, 0, res.Residuals[1], 1e-6)
}

// uniformStep perturbs every coordinate uniformly within a fixed
// width, with an adjustable scale for the adaptive schedule.
type uniformStep struct {
	width float64
	scale float64
}

func (s *uniformStep) TakeStep(rng *rand.Rand, x []float64) []float64 {
	for i := range x {
		x[i] += s.width * s.scale * (2*rng.Float64() - 1)
	}
	return x
}

func (s *uniformStep) ScaleStep(factor float64) { s.scale *= factor }

func TestBasinHoppingFindsGlobalBasin(t *testing.T) {
	res, err := BasinHopping(BasinHoppingProblem{
		Objective:   sphere,
		X0:          []float64{3, 3},
		Steps:       &uniformStep{width: 2, scale: 1},
		Temperature: 1,
		Iterations:  20,
		Interval:    5,
		LocalTol:    Tolerances{FuncTol: 1e-10, MaxIterations: 500},
		Seed:        7,
	})
	require.NoError(t, err)
	assert.Equal(t, basinHoppingSuccess, res.Message)
	assert.InDelta(t, 0, res.F, 1e-4)
}

func TestBasinHoppingPropagatesEvaluationError(t *testing.T) {
	boom := errors.New("boom")
	_, err := BasinHopping(BasinHoppingProblem{
		Objective:   func(x []float64) (float64, error) { return 0, boom },
		X0:          []float64{1},
		Steps:       &uniformStep{width: 1, scale: 1},
		Temperature: 1,
		Iterations:  3,
		Seed:        7,
	})
	assert.ErrorIs(t, err, boom)
}

func TestAcceptMetropolis(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.True(t, acceptMetropolis(5, 4, 1, rng), "an improvement is always accepted")
	assert.False(t, acceptMetropolis(1, 1e9, 1e-12, rng), "a huge regression at cold temperature is rejected")
}

// quadState anneals a single coordinate on f(x) = x^2.
type quadState struct {
	x         float64
	evals     int
	failAfter int
	failWith  error
}

func (s *quadState) Move(rng *rand.Rand) error {
	s.x += rng.Float64() - 0.5
	return nil
}

func (s *quadState) Energy() (float64, error) {
	s.evals++
	if s.failAfter > 0 && s.evals > s.failAfter {
		return 0, s.failWith
	}
	return s.x * s.x, nil
}

func (s *quadState) State() float64     { return s.x }
func (s *quadState) SetState(v float64) { s.x = v }

func TestAnnealQuadratic(t *testing.T) {
	state := &quadState{x: 5}
	best, bestEnergy, err := Anneal[float64](state, AnnealConfig{
		TMax:  10,
		TMin:  1e-6,
		Steps: 5000,
		Seed:  11,
	})
	require.NoError(t, err)
	assert.Less(t, bestEnergy, 1.0)
	assert.InDelta(t, best*best, bestEnergy, 1e-12)
}

func TestAnnealPropagatesEnergyError(t *testing.T) {
	boom := errors.New("boom")
	state := &quadState{x: 1, failAfter: 3, failWith: boom}
	_, _, err := Anneal[float64](state, AnnealConfig{TMax: 1, TMin: 1e-4, Steps: 100, Seed: 3})
	assert.ErrorIs(t, err, boom)
}

func TestAnnealReportsProgress(t *testing.T) {
	state := &quadState{x: 2}
	calls := 0
	_, _, err := Anneal[float64](state, AnnealConfig{
		TMax:    1,
		TMin:    1e-4,
		Steps:   100,
		Updates: 10,
		Seed:    5,
		Progress: func(step int, temp, energy, best float64) {
			calls++
			assert.False(t, math.IsNaN(temp))
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
}
