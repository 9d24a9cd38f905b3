package solver

import (
	"gonum.org/v1/gonum/floats"
)

// LeastSquaresProblem configures a residual-vector minimization. The
// residual and Jacobian callables follow the flat-parameter ordering
// of the caller.
type LeastSquaresProblem struct {
	Residuals Residuals
	// Jacobian is optional; the binding falls back to finite
	// differences of the squared residual norm when it is nil.
	Jacobian JacobianFunc
	X0       []float64
	Bounds   [][2]float64
	Tol      Tolerances
}

// LeastSquares minimizes the squared residual norm through the
// bound-constrained quasi-Newton binding and reports the residual
// vector at the solution. The residual evaluated for the objective is
// memoized so the paired gradient call at the same point costs no
// extra evaluation.
func LeastSquares(p LeastSquaresProblem) (*Result, error) {
	var lastX, lastR []float64
	resid := func(x []float64) ([]float64, error) {
		if lastX != nil && floats.Equal(x, lastX) {
			return lastR, nil
		}
		r, err := p.Residuals(x)
		if err != nil {
			return nil, err
		}
		lastX = append(lastX[:0], x...)
		lastR = r
		return r, nil
	}

	obj := func(x []float64) (float64, error) {
		r, err := resid(x)
		if err != nil {
			return 0, err
		}
		return floats.Dot(r, r), nil
	}

	var grad Gradient
	if p.Jacobian != nil {
		// grad = 2 Jᵀ r
		grad = func(x, g []float64) error {
			r, err := resid(x)
			if err != nil {
				return err
			}
			m, err := p.Jacobian(x)
			if err != nil {
				return err
			}
			nf, nx := m.Dims()
			for j := 0; j < nx; j++ {
				var s float64
				for i := 0; i < nf; i++ {
					s += m.At(i, j) * r[i]
				}
				g[j] = 2 * s
			}
			return nil
		}
	}

	res, err := MinimizeLBFGSB(LBFGSBProblem{
		Objective: obj,
		Gradient:  grad,
		X0:        p.X0,
		Bounds:    p.Bounds,
		Tol:       p.Tol,
	})
	if err != nil {
		return nil, err
	}

	final, err := resid(res.X)
	if err != nil {
		return nil, err
	}
	res.Residuals = append([]float64(nil), final...)
	return res, nil
}
