package replay

import (
	"testing"

	"github.com/mlowell/cutsim/internal/sim"
)

func TestBufferAppendAndFinalTime(t *testing.T) {
	b := NewBuffer()
	if b.Len() != 0 || b.FinalTime() != 0 {
		t.Fatalf("empty buffer: len=%d final=%v", b.Len(), b.FinalTime())
	}

	seg := b.Append(nil, []sim.Sample{{Time: 0}}, 0, 2.5)
	if seg.ID == "" {
		t.Fatal("segment without an id")
	}
	b.Append(nil, nil, 2.5, 4.0)

	if b.Len() != 2 {
		t.Fatalf("len = %d, want 2", b.Len())
	}
	if b.FinalTime() != 4.0 {
		t.Fatalf("final time = %v, want 4.0", b.FinalTime())
	}

	segs := b.Segments()
	if len(segs) != 2 || segs[0].T1 != 2.5 || segs[1].T0 != 2.5 {
		t.Fatalf("unexpected segments: %+v", segs)
	}
}

func TestBufferSegmentsIsACopy(t *testing.T) {
	b := NewBuffer()
	b.Append(nil, nil, 0, 1)

	segs := b.Segments()
	segs[0].T1 = 99

	if b.Segments()[0].T1 != 1 {
		t.Fatal("mutating the returned slice leaked into the buffer")
	}
}

func TestBufferCheckContiguous(t *testing.T) {
	b := NewBuffer()
	b.Append(nil, nil, 0, 2.0)
	b.Append(nil, nil, 2.0, 5.0)
	if err := b.CheckContiguous(0); err != nil {
		t.Fatalf("contiguous history rejected: %v", err)
	}

	gap := NewBuffer()
	gap.Append(nil, nil, 0, 2.0)
	gap.Append(nil, nil, 2.1, 5.0)
	if err := gap.CheckContiguous(0); err == nil {
		t.Fatal("gap between segments not detected")
	}

	overlap := NewBuffer()
	overlap.Append(nil, nil, 0, 2.0)
	overlap.Append(nil, nil, 1.5, 5.0)
	if err := overlap.CheckContiguous(0); err == nil {
		t.Fatal("overlapping segments not detected")
	}

	backwards := NewBuffer()
	backwards.Append(nil, nil, 0, -1.0)
	if err := backwards.CheckContiguous(0); err == nil {
		t.Fatal("segment ending before its start not detected")
	}
}
