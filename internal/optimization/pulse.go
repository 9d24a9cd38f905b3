package optimization

import (
	"gonum.org/v1/gonum/mat"
)

// FlattenPulse converts a (timeSteps, channels) pulse into the flat
// vector handed to generic solvers: the transpose flattened in
// row-major order, i.e. channel-major, time-minor. ReshapePulse is its
// exact inverse; every strategy and the annealer use this convention,
// deviating breaks result interpretation.
func FlattenPulse(p *mat.Dense) []float64 {
	nt, nc := p.Dims()
	out := make([]float64, nt*nc)
	for c := 0; c < nc; c++ {
		for t := 0; t < nt; t++ {
			out[c*nt+t] = p.At(t, c)
		}
	}
	return out
}

// ReshapePulse inverts FlattenPulse for the given target shape.
func ReshapePulse(x []float64, timeSteps, channels int) *mat.Dense {
	p := mat.NewDense(timeSteps, channels, nil)
	for c := 0; c < channels; c++ {
		for t := 0; t < timeSteps; t++ {
			p.Set(t, c, x[c*timeSteps+t])
		}
	}
	return p
}

// Bounds holds per-element pulse bounds. Lower and Upper match the
// pulse shape.
type Bounds struct {
	Lower *mat.Dense
	Upper *mat.Dense
}

// UniformBounds builds pulse-shaped bounds with the same interval for
// every element.
func UniformBounds(timeSteps, channels int, lower, upper float64) *Bounds {
	lo := mat.NewDense(timeSteps, channels, nil)
	up := mat.NewDense(timeSteps, channels, nil)
	for t := 0; t < timeSteps; t++ {
		for c := 0; c < channels; c++ {
			lo.Set(t, c, lower)
			up.Set(t, c, upper)
		}
	}
	return &Bounds{Lower: lo, Upper: up}
}

// Flatten returns the bounds as (lower, upper) pairs in flat-parameter
// order.
func (b *Bounds) Flatten() [][2]float64 {
	lo := FlattenPulse(b.Lower)
	up := FlattenPulse(b.Upper)
	out := make([][2]float64, len(lo))
	for i := range out {
		out[i] = [2]float64{lo[i], up[i]}
	}
	return out
}

// Clamp saturates every element of p into the bounds, in place.
func (b *Bounds) Clamp(p *mat.Dense) {
	nt, nc := p.Dims()
	for t := 0; t < nt; t++ {
		for c := 0; c < nc; c++ {
			v := p.At(t, c)
			if lo := b.Lower.At(t, c); v < lo {
				v = lo
			}
			if up := b.Upper.At(t, c); v > up {
				v = up
			}
			p.Set(t, c, v)
		}
	}
}
