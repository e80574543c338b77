package model

import (
	"math"
	"testing"
)

func TestNewStateVectorShape(t *testing.T) {
	m := chainModel(t)
	x := NewStateVector(m)

	if len(x) != m.PositionCount()+m.VelocityCount() {
		t.Fatalf("state length = %d, want %d", len(x), m.PositionCount()+m.VelocityCount())
	}
	if err := x.CheckShape(m); err != nil {
		t.Fatalf("check shape: %v", err)
	}
	if err := append(x, 0).CheckShape(m); err == nil {
		t.Fatal("expected shape error for oversized state")
	}
}

func TestPositionsVelocitiesAreViews(t *testing.T) {
	m := chainModel(t)
	x := NewStateVector(m)

	x.Positions(m)[0] = 0.7
	x.Velocities(m)[0] = -0.2

	if x[0] != 0.7 {
		t.Fatalf("position write not visible in state: %v", x[0])
	}
	if x[m.PositionCount()] != -0.2 {
		t.Fatalf("velocity write not visible in state: %v", x[m.PositionCount()])
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := chainModel(t)
	x := NewStateVector(m)
	x[0] = 1.5

	y := x.Clone()
	y[0] = -3

	if x[0] != 1.5 {
		t.Fatalf("clone write leaked into original: %v", x[0])
	}
}

func TestFinite(t *testing.T) {
	x := StateVector{0, 1.5, -2}
	if !x.Finite() {
		t.Fatal("finite state reported non-finite")
	}

	x[1] = math.NaN()
	if x.Finite() {
		t.Fatal("NaN state reported finite")
	}

	x[1] = math.Inf(1)
	if x.Finite() {
		t.Fatal("Inf state reported finite")
	}
}
