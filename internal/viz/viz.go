// Package viz renders replay history as a stream of pose frames for
// external frontends. Playback is offline: frames are derived from
// recorded samples, never from the live control loop.
package viz

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mlowell/cutsim/internal/replay"
)

// #region frames

// BodySnapshot describes one body's pose in a frame.
type BodySnapshot struct {
	Name string     `json:"name"`
	Pos  [3]float64 `json:"pos"`
	RPY  [3]float64 `json:"rpy"`
	Dims [3]float64 `json:"dims"`
}

// Frame aggregates the world pose of every body at one sample time.
type Frame struct {
	Time    float64        `json:"time"`
	Segment int            `json:"segment"`
	Bodies  []BodySnapshot `json:"bodies"`
}

// Visualizer consumes pose frames.
type Visualizer interface {
	PublishFrame(frame *Frame) error
}

// #endregion frames

// #region null-visualizer

// NullVisualizer is a no-op implementation used for headless mode.
type NullVisualizer struct{}

// NewNullVisualizer creates a new NullVisualizer.
func NewNullVisualizer() *NullVisualizer {
	return &NullVisualizer{}
}

func (n *NullVisualizer) PublishFrame(frame *Frame) error { return nil }

// #endregion null-visualizer

// #region stream-visualizer

// StreamVisualizer writes one JSON object per frame, newline-delimited,
// to an arbitrary writer (stdout, a socket, a file).
type StreamVisualizer struct {
	enc *json.Encoder
}

// NewStreamVisualizer creates a visualizer over w.
func NewStreamVisualizer(w io.Writer) *StreamVisualizer {
	return &StreamVisualizer{enc: json.NewEncoder(w)}
}

func (s *StreamVisualizer) PublishFrame(frame *Frame) error {
	if err := s.enc.Encode(frame); err != nil {
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}

// #endregion stream-visualizer

// #region playback

// FrameAt computes the pose frame for one recorded sample.
func FrameAt(seg replay.Segment, segIndex, sampleIndex int) (*Frame, error) {
	sample := seg.Samples[sampleIndex]
	if err := sample.State.CheckShape(seg.Model); err != nil {
		return nil, fmt.Errorf("frame at t=%.4f: %w", sample.Time, err)
	}

	q := sample.State.Positions(seg.Model)
	bodies := seg.Model.Bodies()
	frame := &Frame{Time: sample.Time, Segment: segIndex, Bodies: make([]BodySnapshot, len(bodies))}
	for i, b := range bodies {
		pose := seg.Model.BodyPose(q, i)
		roll, pitch, yaw := pose.RPY()
		frame.Bodies[i] = BodySnapshot{
			Name: b.Name,
			Pos:  pose.P,
			RPY:  [3]float64{roll, pitch, yaw},
			Dims: b.Dims,
		}
	}
	return frame, nil
}

// Play publishes every recorded sample of every segment in order. Frame
// pacing is the consumer's concern; timestamps carry the sim clock.
func Play(segments []replay.Segment, v Visualizer) error {
	for si, seg := range segments {
		for i := range seg.Samples {
			frame, err := FrameAt(seg, si, i)
			if err != nil {
				return err
			}
			if err := v.PublishFrame(frame); err != nil {
				return err
			}
		}
	}
	return nil
}

// #endregion playback
