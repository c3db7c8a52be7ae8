package brep

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func unitBox() *Shell {
	s := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	s.makeClassifyingBsps(nil)
	return s
}

func TestClassifyPointInside(t *testing.T) {
	s := unitBox()
	defer s.CleanupAfterBoolean()

	tests := []struct {
		p    r3.Vec
		want bool
	}{
		{r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, true},
		{r3.Vec{X: 0.99, Y: 0.01, Z: 0.5}, true},
		{r3.Vec{X: 1.5, Y: 0.5, Z: 0.5}, false},
		{r3.Vec{X: 0.5, Y: 0.5, Z: -0.2}, false},
		{r3.Vec{X: 2, Y: 2, Z: 2}, false},
	}
	for _, tc := range tests {
		if got := s.classifyPointInside(tc.p); got != tc.want {
			t.Errorf("classifyPointInside(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestClassifyProbeCoincident(t *testing.T) {
	s := unitBox()
	defer s.CleanupAfterBoolean()

	// A probe on the top face is coincident; the verdict follows the
	// query normal's alignment with the face normal.
	q := r3.Vec{X: 0.5, Y: 0.5, Z: 1}
	if got := s.classifyProbe(q, r3.Vec{Z: 1}); got != CoincSame {
		t.Errorf("got %v, want coinc-same", got)
	}
	if got := s.classifyProbe(q, r3.Vec{Z: -1}); got != CoincOpp {
		t.Errorf("got %v, want coinc-opp", got)
	}

	// On the face's plane but outside its trim: not coincident.
	q = r3.Vec{X: 2.5, Y: 0.5, Z: 1}
	if got := s.classifyProbe(q, r3.Vec{Z: 1}); got != Outside {
		t.Errorf("got %v, want outside", got)
	}
}

func TestClassifyEdgeAgainstShell(t *testing.T) {
	s := unitBox()
	defer s.CleanupAfterBoolean()

	// A horizontal edge through the middle of the box: both probes
	// are inside. The same edge above the box: both are outside.
	p := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	indir, outdir := s.ClassifyEdge(
		r3.Vec{X: 0.4, Y: 0.5, Z: 0.5}, r3.Vec{X: 0.6, Y: 0.5, Z: 0.5},
		p,
		r3.Vec{Z: -0.01}, r3.Vec{Z: 0.01},
		r3.Vec{Y: 1})
	if indir != Inside || outdir != Inside {
		t.Errorf("got (%v, %v), want (inside, inside)", indir, outdir)
	}

	p = r3.Vec{X: 0.5, Y: 0.5, Z: 1.5}
	indir, outdir = s.ClassifyEdge(
		r3.Vec{X: 0.4, Y: 0.5, Z: 1.5}, r3.Vec{X: 0.6, Y: 0.5, Z: 1.5},
		p,
		r3.Vec{Z: -0.01}, r3.Vec{Z: 0.01},
		r3.Vec{Y: 1})
	if indir != Outside || outdir != Outside {
		t.Errorf("got (%v, %v), want (outside, outside)", indir, outdir)
	}
}

func TestAllPointsIntersecting(t *testing.T) {
	s := unitBox()
	defer s.CleanupAfterBoolean()

	// Straight through the middle: two side faces.
	var il []Inter
	s.AllPointsIntersecting(
		r3.Vec{X: -1, Y: 0.5, Z: 0.5}, r3.Vec{X: 2, Y: 0.5, Z: 0.5},
		&il, true, true, true)
	if len(il) != 2 {
		t.Fatalf("got %d trimmed intersections, want 2", len(il))
	}

	// Untrimmed, the same segment still only meets the two
	// perpendicular planes; the others are parallel.
	il = nil
	s.AllPointsIntersecting(
		r3.Vec{X: -1, Y: 0.5, Z: 0.5}, r3.Vec{X: 2, Y: 0.5, Z: 0.5},
		&il, true, false, true)
	if len(il) != 2 {
		t.Fatalf("got %d untrimmed intersections, want 2", len(il))
	}

	// Off to the side: the planes are still pierced, but outside
	// every trim polygon.
	il = nil
	s.AllPointsIntersecting(
		r3.Vec{X: -1, Y: 5, Z: 5}, r3.Vec{X: 2, Y: 5, Z: 5},
		&il, true, true, true)
	if len(il) != 0 {
		t.Fatalf("got %d trimmed intersections, want 0", len(il))
	}

	// As a segment, hits beyond the endpoints don't count.
	il = nil
	s.AllPointsIntersecting(
		r3.Vec{X: -3, Y: 0.5, Z: 0.5}, r3.Vec{X: -2, Y: 0.5, Z: 0.5},
		&il, true, false, true)
	if len(il) != 0 {
		t.Fatalf("got %d intersections, want 0", len(il))
	}
}
