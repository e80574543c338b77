// Package plan produces joint-space trajectories satisfying posture and
// end-effector pose constraints over spline knot points.
package plan

// #region span

// Span is a closed time interval during which a constraint is active.
// A point constraint uses Start == End.
type Span struct {
	Start float64
	End   float64
}

// Contains reports whether t lies inside the span (inclusive, with a
// small slack so knot times compare reliably).
func (s Span) Contains(t float64) bool {
	const eps = 1e-9
	return t >= s.Start-eps && t <= s.End+eps
}

// Instant returns a point span at t.
func Instant(t float64) Span { return Span{Start: t, End: t} }

// #endregion span

// #region constraints

// Constraint is a tagged variant over the planner's constraint kinds.
// Constraints are inputs to a single planning call and do not outlive it.
type Constraint interface {
	constraint()
}

// PostureConstraint bounds a set of position slots inside [Lo, Hi]
// during Active.
type PostureConstraint struct {
	Slots  []int
	Lo     []float64
	Hi     []float64
	Active Span
}

// PositionConstraint bounds a frame's world position inside the box
// [Lo, Hi] during Active.
type PositionConstraint struct {
	Frame  string
	Lo     [3]float64
	Hi     [3]float64
	Active Span
}

// EulerConstraint bounds a frame's world roll-pitch-yaw inside the box
// [Lo, Hi] during Active.
type EulerConstraint struct {
	Frame  string
	Lo     [3]float64
	Hi     [3]float64
	Active Span
}

// MinDistanceConstraint requires every pair of bodies to keep at least
// Distance separation. Active for the whole solve.
type MinDistanceConstraint struct {
	Distance float64
}

func (PostureConstraint) constraint()     {}
func (PositionConstraint) constraint()    {}
func (EulerConstraint) constraint()       {}
func (MinDistanceConstraint) constraint() {}

// #endregion constraints

// #region helpers

// postureBox builds a ±tol box constraint on slots around the values of
// q at those slots.
func postureBox(slots []int, q []float64, tol float64, active Span) PostureConstraint {
	lo := make([]float64, len(slots))
	hi := make([]float64, len(slots))
	for i, s := range slots {
		lo[i] = q[s] - tol
		hi[i] = q[s] + tol
	}
	return PostureConstraint{Slots: slots, Lo: lo, Hi: hi, Active: active}
}

// #endregion helpers
