// Package replay accumulates per-segment topology and sampled state so
// a completed run can be played back after the fact.
package replay

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/mlowell/cutsim/internal/model"
	"github.com/mlowell/cutsim/internal/sim"
)

// #region segment

// Segment is one continuous span of simulated time over a single fixed
// topology. Immutable once appended.
type Segment struct {
	ID      string
	Model   *model.KinematicModel
	Samples []sim.Sample
	T0      float64
	T1      float64
}

// #endregion segment

// #region buffer

// Buffer is the append-only log of simulation segments. The ordered
// segment sequence is the authoritative record of the whole run. It is
// consumed only for offline visualization, never by the control loop.
type Buffer struct {
	segments []Segment
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append records a completed segment and returns it.
func (b *Buffer) Append(m *model.KinematicModel, samples []sim.Sample, t0, t1 float64) Segment {
	seg := Segment{
		ID:      uuid.New().String(),
		Model:   m,
		Samples: samples,
		T0:      t0,
		T1:      t1,
	}
	b.segments = append(b.segments, seg)
	return seg
}

// Segments returns the ordered segment sequence.
func (b *Buffer) Segments() []Segment {
	return append([]Segment(nil), b.segments...)
}

// Len returns the number of recorded segments.
func (b *Buffer) Len() int { return len(b.segments) }

// FinalTime returns the end time of the last segment, or zero.
func (b *Buffer) FinalTime() float64 {
	if len(b.segments) == 0 {
		return 0
	}
	return b.segments[len(b.segments)-1].T1
}

// CheckContiguous verifies that the segment spans tile [start,
// FinalTime] with no gaps or overlaps.
func (b *Buffer) CheckContiguous(start float64) error {
	const eps = 1e-9
	t := start
	for i, seg := range b.segments {
		if math.Abs(seg.T0-t) > eps {
			return fmt.Errorf("segment %d starts at %.9f, want %.9f", i, seg.T0, t)
		}
		if seg.T1 < seg.T0 {
			return fmt.Errorf("segment %d ends at %.9f before its start %.9f", i, seg.T1, seg.T0)
		}
		t = seg.T1
	}
	return nil
}

// #endregion buffer
