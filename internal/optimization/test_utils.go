package optimization

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// stubSimulator returns fixed cost vectors in sequence and a constant
// Jacobian, for exercising the evaluation wrapper in isolation.
type stubSimulator struct {
	indices   []string
	costs     [][]float64
	jacobian  *Jacobian
	callCount int
	stats     *PerformanceStatistics
}

func newStubSimulator(indices []string, costs ...[]float64) *stubSimulator {
	return &stubSimulator{indices: indices, costs: costs}
}

func (s *stubSimulator) Costs(pulse *mat.Dense) ([]float64, error) {
	i := s.callCount
	if i >= len(s.costs) {
		i = len(s.costs) - 1
	}
	s.callCount++
	return append([]float64(nil), s.costs[i]...), nil
}

func (s *stubSimulator) Jacobian(pulse *mat.Dense) (*Jacobian, error) {
	if s.jacobian != nil {
		return s.jacobian.Clone(), nil
	}
	nt, nc := pulse.Dims()
	return NewJacobian(nt, len(s.indices), nc), nil
}

func (s *stubSimulator) CostIndices() []string { return s.indices }

func (s *stubSimulator) Stats() *PerformanceStatistics { return s.stats }

func (s *stubSimulator) ResetStats(ps *PerformanceStatistics) { s.stats = ps }

// assertFloat64SlicesEqual checks if two float64 slices are
// approximately equal.
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// assertMatEqual checks if two matrices are approximately equal.
func assertMatEqual(t *testing.T, got, want mat.Matrix, tol float64) {
	t.Helper()

	rg, cg := got.Dims()
	rw, cw := want.Dims()
	if rg != rw || cg != cw {
		t.Fatalf("matrix dimensions mismatch: got %dx%d, want %dx%d", rg, cg, rw, cw)
	}

	for i := 0; i < rg; i++ {
		for j := 0; j < cg; j++ {
			g := got.At(i, j)
			w := want.At(i, j)
			if math.Abs(g-w) > tol {
				t.Fatalf("at (%d,%d): got %v, want %v (tolerance %v)", i, j, g, w, tol)
			}
		}
	}
}
