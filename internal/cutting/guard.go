// Package cutting detects blade contact conditions that trigger a
// topology change.
package cutting

// #region event

// Event describes one detected cut. It is produced by the guard and
// consumed exactly once by the orchestrator.
type Event struct {
	// BodyIndex is the cuttable body that was cut.
	BodyIndex int `json:"body_index"`
	// Point is the cut location in world coordinates.
	Point [3]float64 `json:"point"`
	// Normal is the cut plane normal in world coordinates.
	Normal [3]float64 `json:"normal"`
	// Time is the simulation time at which the cut was detected.
	Time float64 `json:"time"`
}

// #endregion event

// #region contact

// Contact is one sampled contact between the cutting body and another
// body, as reported by the engine's contact layer.
type Contact struct {
	Body   int        // the non-blade body
	Point  [3]float64 // world contact point
	Force  [3]float64 // world force applied by the blade onto Body
	Normal [3]float64 // world contact normal
}

// #endregion contact

// #region guard

// GuardConfig parameterizes cut detection.
type GuardConfig struct {
	// CuttingBody is the blade body index.
	CuttingBody int
	// CutDirection is the direction the blade must push to cut.
	CutDirection [3]float64
	// CutNormal is the plane normal assigned to resulting cuts.
	CutNormal [3]float64
	// MinCutForce is the minimum force along CutDirection.
	MinCutForce float64
	// CuttableBodies are the body indices eligible for cutting.
	CuttableBodies []int
	// Debounce is the minimum simulation time between consecutive cuts.
	Debounce float64
}

// DefaultGuardConfig mirrors the reference blade configuration: cut by
// pushing down, split across the x-normal plane, 10 N threshold.
func DefaultGuardConfig(blade int, cuttable []int) GuardConfig {
	return GuardConfig{
		CuttingBody:    blade,
		CutDirection:   [3]float64{0, 0, -1},
		CutNormal:      [3]float64{1, 0, 0},
		MinCutForce:    10.0,
		CuttableBodies: cuttable,
		Debounce:       0.5,
	}
}

// Guard raises cut events from contact samples. It is rebuilt per
// simulation segment; lastCutTime carries the debounce horizon across
// rebuilds.
type Guard struct {
	config      GuardConfig
	lastCutTime float64
}

// NewGuard creates a guard. lastCutTime should be the time of the most
// recent cut (or the segment start time for the first segment).
func NewGuard(config GuardConfig, lastCutTime float64) *Guard {
	return &Guard{config: config, lastCutTime: lastCutTime}
}

// Check evaluates contacts at simulation time t and returns a cut event
// if any contact satisfies the force and geometry criteria, or nil.
func (g *Guard) Check(t float64, contacts []Contact) *Event {
	if t-g.lastCutTime < g.config.Debounce {
		return nil
	}
	for _, c := range contacts {
		if !g.cuttable(c.Body) {
			continue
		}
		// Force component along the configured cut direction.
		along := c.Force[0]*g.config.CutDirection[0] +
			c.Force[1]*g.config.CutDirection[1] +
			c.Force[2]*g.config.CutDirection[2]
		if along < g.config.MinCutForce {
			continue
		}
		g.lastCutTime = t
		return &Event{
			BodyIndex: c.Body,
			Point:     c.Point,
			Normal:    g.config.CutNormal,
			Time:      t,
		}
	}
	return nil
}

func (g *Guard) cuttable(body int) bool {
	for _, b := range g.config.CuttableBodies {
		if b == body {
			return true
		}
	}
	return false
}

// #endregion guard
