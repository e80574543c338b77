package model

// #region spec

// Spec is the JSON-serializable form of a KinematicModel, used by the
// run store and replay fixtures.
type Spec struct {
	Bodies []Body  `json:"bodies"`
	Frames []Frame `json:"frames"`
}

// Spec returns the model's serializable form.
func (m *KinematicModel) Spec() Spec {
	return Spec{Bodies: m.Bodies(), Frames: m.Frames()}
}

// FromSpec rebuilds a model from its serialized form.
func FromSpec(s Spec) (*KinematicModel, error) {
	return New(s.Bodies, s.Frames)
}

// #endregion spec
