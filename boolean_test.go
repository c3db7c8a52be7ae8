package brep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestKeepRegion(t *testing.T) {
	// The side is outside the face: never kept, whatever else holds.
	for _, op := range []Op{Union, Difference} {
		for _, opA := range []bool{true, false} {
			for _, shell := range []Class{Inside, Outside, CoincSame, CoincOpp} {
				if keepRegion(op, opA, shell, Outside) {
					t.Errorf("kept a side outside the face (%v, %v, %v)", op, opA, shell)
				}
			}
		}
	}

	tests := []struct {
		op    Op
		opA   bool
		shell Class
		want  bool
	}{
		// Union, operand A: keep what is outside B and not on a face.
		{Union, true, Outside, true},
		{Union, true, Inside, false},
		{Union, true, CoincSame, false},
		{Union, true, CoincOpp, false},
		// Union, operand B: additionally keep one representative of
		// duplicated faces.
		{Union, false, Outside, true},
		{Union, false, Inside, false},
		{Union, false, CoincSame, true},
		{Union, false, CoincOpp, false},
		// Difference, operand A: same as union.
		{Difference, true, Outside, true},
		{Difference, true, Inside, false},
		{Difference, true, CoincSame, false},
		{Difference, true, CoincOpp, false},
		// Difference, operand B: keep what is inside A (B arrives
		// inverted), dedup coincident faces.
		{Difference, false, Inside, true},
		{Difference, false, Outside, false},
		{Difference, false, CoincSame, true},
		{Difference, false, CoincOpp, false},
	}
	for _, tc := range tests {
		if got := keepRegion(tc.op, tc.opA, tc.shell, Inside); got != tc.want {
			t.Errorf("keepRegion(%v, opA=%v, %v, inside) = %v, want %v",
				tc.op, tc.opA, tc.shell, got, tc.want)
		}
	}
}

func TestKeepEdgeAntiSymmetry(t *testing.T) {
	classes := []Class{Inside, Outside, CoincSame, CoincOpp}
	origs := []Class{Inside, Outside}
	for _, op := range []Op{Union, Difference} {
		for _, opA := range []bool{true, false} {
			for _, ls := range classes {
				for _, rs := range classes {
					for _, lo := range origs {
						for _, ro := range origs {
							if ls == rs && lo == ro {
								continue
							}
							if keepEdge(op, opA, ls, rs, lo, ro) &&
								keepEdge(op, opA, rs, ls, ro, lo) {
								t.Errorf("keepEdge symmetric for (%v, %v, %v/%v, %v/%v)",
									op, opA, ls, rs, lo, ro)
							}
						}
					}
				}
			}
		}
	}
}

func TestTagByClassifiedEdge(t *testing.T) {
	type pair struct{ in, out Class }
	tests := []struct {
		c    UVClass
		want pair
	}{
		{UVInside, pair{Inside, Inside}},
		{UVOutside, pair{Outside, Outside}},
		{UVEdgeParallel, pair{Inside, Outside}},
		{UVEdgeAntiparallel, pair{Outside, Inside}},
		{UVEdgeOther, pair{Outside, Outside}},
	}
	for _, tc := range tests {
		in, out := tagByClassifiedEdge(tc.c)
		if in != tc.want.in || out != tc.want.out {
			t.Errorf("tagByClassifiedEdge(%v) = (%v, %v), want (%v, %v)",
				tc.c, in, out, tc.want.in, tc.want.out)
		}
	}
}

// trimmedSurfaces counts the result surfaces that kept any trim.
func trimmedSurfaces(s *Shell) int {
	n := 0
	for _, srf := range s.Surfaces {
		if len(srf.Trim) > 0 {
			n++
		}
	}
	return n
}

// requireClosedTrims checks that every non-empty surface's trim edges
// assemble into closed loops.
func requireClosedTrims(t *testing.T, s *Shell) {
	t.Helper()
	for _, srf := range s.Surfaces {
		if len(srf.Trim) == 0 {
			continue
		}
		var el EdgeList
		srf.MakeEdgesInto(s, &el, AsUV, nil)
		require.NotEmpty(t, el.L, "surface %d has trims but no edges", srf.H)
		_, ok := el.AssemblePolygon()
		require.True(t, ok, "surface %d: trim edges do not close", srf.H)
	}
}

// requireHandleBijection checks that the operands' surfaces and curves
// each map to exactly one result entity, and that the result's curves
// reference result surfaces.
func requireHandleBijection(t *testing.T, r, a, b *Shell) {
	t.Helper()
	seenS := map[SurfaceID]bool{}
	seenC := map[CurveID]bool{}
	for _, ab := range []*Shell{a, b} {
		for _, srf := range ab.Surfaces {
			require.NotZero(t, srf.NewH)
			require.False(t, seenS[srf.NewH], "surface handle reused")
			seenS[srf.NewH] = true
			r.Surface(srf.NewH)
		}
		for _, c := range ab.Curves {
			require.NotZero(t, c.NewH)
			require.False(t, seenC[c.NewH], "curve handle reused")
			seenC[c.NewH] = true
			r.Curve(c.NewH)
		}
	}
	for _, c := range r.Curves {
		r.Surface(c.SurfA)
		r.Surface(c.SurfB)
	}
}

func TestUnionDisjoint(t *testing.T) {
	a := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	b := NewBoxShell(r3.Vec{X: 3}, r3.Vec{X: 4, Y: 1, Z: 1})

	var r Shell
	r.MakeFromUnionOf(a, b)

	assert.False(t, r.BooleanFailed)
	assert.Len(t, r.Surfaces, 12)
	assert.Equal(t, 12, trimmedSurfaces(&r))
	assert.Len(t, r.Curves, 24)
	requireClosedTrims(t, &r)
	requireHandleBijection(t, &r, a, b)
}

func TestDifferenceDisjoint(t *testing.T) {
	a := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	b := NewBoxShell(r3.Vec{X: 3}, r3.Vec{X: 4, Y: 1, Z: 1})

	var r Shell
	r.MakeFromDifferenceOf(a, b)

	// A minus something far away is A; B's faces survive as empty
	// surfaces only.
	assert.False(t, r.BooleanFailed)
	assert.Equal(t, 6, trimmedSurfaces(&r))
	requireClosedTrims(t, &r)
	requireHandleBijection(t, &r, a, b)
}

func TestDifferenceNested(t *testing.T) {
	a := NewBoxShell(r3.Vec{}, r3.Vec{X: 3, Y: 3, Z: 3})
	b := NewBoxShell(r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{X: 2, Y: 2, Z: 2})

	var r Shell
	r.MakeFromDifferenceOf(a, b)

	assert.False(t, r.BooleanFailed)
	assert.Equal(t, 12, trimmedSurfaces(&r))
	requireClosedTrims(t, &r)
	requireHandleBijection(t, &r, a, b)

	// The cavity walls are inverted: the wall at z = 1 bounds result
	// material below it, so its normal points up.
	found := false
	for _, srf := range r.Surfaces {
		if len(srf.Trim) == 0 {
			continue
		}
		p0, n, ok := srf.plane()
		if !ok {
			continue
		}
		onPlane := r3.Dot(n, r3.Sub(r3.Vec{X: 1.5, Y: 1.5, Z: 1}, p0))
		if n.Z > 0.99 && onPlane < LengthEps && onPlane > -LengthEps {
			uv := srf.ClosestPointTo(r3.Vec{X: 1.5, Y: 1.5, Z: 1})
			if r3.Norm(r3.Sub(srf.PointAt(uv.X, uv.Y), r3.Vec{X: 1.5, Y: 1.5, Z: 1})) < LengthEps {
				found = true
			}
		}
	}
	assert.True(t, found, "no upward-facing cavity wall at z=1")
}

func TestUnionOverlapping(t *testing.T) {
	a := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	b := NewBoxShell(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, r3.Vec{X: 1.5, Y: 1.5, Z: 1.5})

	var r Shell
	r.MakeFromUnionOf(a, b)

	assert.False(t, r.BooleanFailed)
	assert.Equal(t, 12, trimmedSurfaces(&r))
	requireClosedTrims(t, &r)
	requireHandleBijection(t, &r, a, b)

	inter := 0
	for _, c := range r.Curves {
		if c.Source == SourceIntersection {
			inter++
		}
	}
	assert.Equal(t, 6, inter, "overlapping boxes meet along six face pairs")
}

func TestUnionCoincidentSameFace(t *testing.T) {
	// B sits inside A sharing A's bottom face: the duplicated face is
	// kept exactly once, from B.
	a := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	b := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 0.5})

	var r Shell
	r.MakeFromUnionOf(a, b)

	assert.False(t, r.BooleanFailed)
	// A's top, A's four upper side halves, B's four lower side
	// halves, and the shared bottom face once.
	assert.Equal(t, 10, trimmedSurfaces(&r))
	requireClosedTrims(t, &r)

	// The bottom face survives exactly once, and from operand B.
	bottoms := 0
	bottomFromB := false
	for i, srf := range r.Surfaces {
		if len(srf.Trim) == 0 {
			continue
		}
		_, n, ok := srf.plane()
		if ok && n.Z < -0.99 {
			bottoms++
			bottomFromB = i >= 6
		}
	}
	assert.Equal(t, 1, bottoms)
	assert.True(t, bottomFromB)
}

func TestDifferenceCoincidentSameFace(t *testing.T) {
	// Subtracting the lower half leaves the upper half; material
	// adjacent to the shared face goes with B.
	a := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	b := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 0.5})

	var r Shell
	r.MakeFromDifferenceOf(a, b)

	assert.False(t, r.BooleanFailed)
	// A's top, A's four upper side halves, and B's inverted z=0.5
	// face as the new bottom.
	assert.Equal(t, 6, trimmedSurfaces(&r))
	requireClosedTrims(t, &r)

	bottoms := 0
	for _, srf := range r.Surfaces {
		if len(srf.Trim) == 0 {
			continue
		}
		p0, n, ok := srf.plane()
		if ok && n.Z < -0.99 && p0.Z > 0.49 && p0.Z < 0.51 {
			bottoms++
		}
	}
	assert.Equal(t, 1, bottoms, "want one downward face at z=0.5")
}

func TestUnionCoincidentOppositeFace(t *testing.T) {
	// Side-by-side boxes sharing the x=1 face with opposed normals:
	// both copies of the shared face vanish from the union.
	a := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	b := NewBoxShell(r3.Vec{X: 1}, r3.Vec{X: 2, Y: 1, Z: 1})

	var r Shell
	r.MakeFromUnionOf(a, b)

	assert.False(t, r.BooleanFailed)
	assert.Equal(t, 10, trimmedSurfaces(&r))
	requireClosedTrims(t, &r)

	for _, srf := range r.Surfaces {
		if len(srf.Trim) == 0 {
			continue
		}
		p0, _, ok := srf.plane()
		require.True(t, ok)
		// No surviving face lies in the shared plane x=1.
		du := r3.Sub(srf.Ctrl[1][0], srf.Ctrl[0][0])
		dv := r3.Sub(srf.Ctrl[0][1], srf.Ctrl[0][0])
		if du.Y == 0 && du.Z == 0 {
			continue
		}
		if dv.Y == 0 && dv.Z == 0 {
			continue
		}
		if du.X == 0 && dv.X == 0 && p0.X > 0.99 && p0.X < 1.01 {
			t.Error("shared face survived the union")
		}
	}
}

func TestAssembly(t *testing.T) {
	a := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	b := NewBoxShell(r3.Vec{X: 0.5}, r3.Vec{X: 1.5, Y: 1, Z: 1})

	var r Shell
	r.MakeFromAssemblyOf(a, b)

	assert.False(t, r.BooleanFailed)
	assert.Len(t, r.Surfaces, 12)
	assert.Len(t, r.Curves, 24)
	requireClosedTrims(t, &r)
	requireHandleBijection(t, &r, a, b)

	// Sources are recorded per operand.
	na, nb := 0, 0
	for _, c := range r.Curves {
		switch c.Source {
		case SourceA:
			na++
		case SourceB:
			nb++
		}
	}
	assert.Equal(t, 12, na)
	assert.Equal(t, 12, nb)
}

func TestBooleanCleansOperands(t *testing.T) {
	a := NewBoxShell(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	b := NewBoxShell(r3.Vec{X: 3}, r3.Vec{X: 4, Y: 1, Z: 1})

	var r Shell
	r.MakeFromUnionOf(a, b)

	for _, s := range []*Shell{a, b} {
		for _, srf := range s.Surfaces {
			assert.Nil(t, srf.bsp)
			assert.Empty(t, srf.edges.L)
		}
		assert.Nil(t, s.faceIndex)
	}
}
