package plan

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// #region trajectory

// Trajectory is a continuous piecewise-cubic joint-space path. Its time
// domain is fixed at creation and it is never mutated afterwards.
type Trajectory struct {
	start float64
	end   float64
	dofs  []interp.PiecewiseCubic
	// hold is the constant posture for degenerate single-knot spans.
	hold []float64
}

// NewTrajectory interpolates per-knot postures with a shape-preserving
// (Fritsch-Butland) cubic per degree of freedom. times are relative to
// zero; the domain is shifted to begin at startTime. restToRest forces
// zero endpoint derivatives so the path starts and ends at rest.
func NewTrajectory(times []float64, knots [][]float64, startTime float64, restToRest bool) (*Trajectory, error) {
	if len(times) == 0 || len(times) != len(knots) {
		return nil, fmt.Errorf("trajectory: %d knots for %d times", len(knots), len(times))
	}
	nq := len(knots[0])

	if len(times) == 1 {
		return &Trajectory{
			start: startTime,
			end:   startTime + times[0],
			hold:  append([]float64(nil), knots[0]...),
		}, nil
	}

	xs := make([]float64, len(times))
	for i, t := range times {
		xs[i] = startTime + t
	}

	tr := &Trajectory{
		start: xs[0],
		end:   xs[len(xs)-1],
		dofs:  make([]interp.PiecewiseCubic, nq),
	}
	ys := make([]float64, len(times))
	for d := 0; d < nq; d++ {
		for k := range knots {
			if len(knots[k]) != nq {
				return nil, fmt.Errorf("trajectory: knot %d has %d dofs, want %d", k, len(knots[k]), nq)
			}
			ys[k] = knots[k][d]
		}
		derivs := pchipDerivatives(xs, ys)
		if restToRest {
			derivs[0] = 0
			derivs[len(derivs)-1] = 0
		}
		tr.dofs[d].FitWithDerivatives(xs, ys, derivs)
	}
	return tr, nil
}

// Start returns the first instant of the trajectory's domain.
func (tr *Trajectory) Start() float64 { return tr.start }

// End returns the last instant of the trajectory's domain.
func (tr *Trajectory) End() float64 { return tr.end }

// At samples the posture at time t. Times outside the domain clamp to
// the nearest endpoint.
func (tr *Trajectory) At(t float64) []float64 {
	if tr.hold != nil {
		return append([]float64(nil), tr.hold...)
	}
	if t < tr.start {
		t = tr.start
	} else if t > tr.end {
		t = tr.end
	}
	out := make([]float64, len(tr.dofs))
	for d := range tr.dofs {
		out[d] = tr.dofs[d].Predict(t)
	}
	return out
}

// #endregion trajectory

// #region pchip

// pchipDerivatives computes Fritsch-Butland monotonicity-preserving
// derivative estimates at each sample.
func pchipDerivatives(xs, ys []float64) []float64 {
	n := len(xs)
	d := make([]float64, n)
	if n < 2 {
		return d
	}

	h := make([]float64, n-1)
	s := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h[i] = xs[i+1] - xs[i]
		s[i] = (ys[i+1] - ys[i]) / h[i]
	}

	d[0] = s[0]
	d[n-1] = s[n-2]
	for i := 1; i < n-1; i++ {
		if s[i-1]*s[i] <= 0 {
			d[i] = 0
			continue
		}
		w1 := 2*h[i] + h[i-1]
		w2 := h[i] + 2*h[i-1]
		d[i] = 3 * (s[i-1] + s[i]) / (w1/s[i-1] + w2/s[i])
	}
	return d
}

// #endregion pchip
