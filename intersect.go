package brep

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// IntersectAgainst appends to into the intersection curves between
// this surface (in shellA) and b (in shellB): the portions of the
// geometric intersection that lie inside both trim polygons, split
// against both shells so that no piecewise linear segment crosses a
// surface of either. Supported for plane pairs; other pairs log a
// diagnostic and produce nothing.
func (srf *Surface) IntersectAgainst(b *Surface, shellA, shellB, into *Shell) {
	pa, na, okA := srf.plane()
	pb, nb, okB := b.plane()
	if !okA || !okB {
		Logger().Debug("intersection: unsupported surface pair",
			"surfA", uint32(srf.H), "surfB", uint32(b.H))
		return
	}

	dir := r3.Cross(na, nb)
	if r3.Norm(dir) < 1e-9 {
		// Parallel or coincident planes: no curve. Coincident faces
		// are handled by the coincidence classification instead.
		return
	}
	dir = r3.Unit(dir)
	p0, ok := pointOnTwoPlanes(pa, na, pb, nb, dir)
	if !ok {
		return
	}

	// Bound the line by the two surfaces' control boxes.
	tmin, tmax := veryPositive, -veryPositive
	for _, s := range []*Surface{srf, b} {
		lo, hi := s.boundingBox()
		for _, c := range []r3.Vec{lo, hi} {
			t := r3.Dot(r3.Sub(c, p0), dir)
			tmin = math.Min(tmin, t)
			tmax = math.Max(tmax, t)
		}
	}
	tmin -= 1
	tmax += 1

	// Break the line wherever it passes a trim edge of either
	// surface, then keep the intervals whose midpoint is inside (or
	// on) both trim polygons.
	ts := []float64{tmin, tmax}
	for _, s := range []*Surface{srf, b} {
		for _, se := range s.edges.L {
			if t, ok := lineSegmentApproach(p0, dir, se.A, se.B); ok {
				ts = append(ts, t)
			}
		}
	}
	slices.Sort(ts)

	for i := 1; i < len(ts); i++ {
		t0, t1 := ts[i-1], ts[i]
		if t1-t0 < LengthEps {
			continue
		}
		mid := r3.Add(p0, r3.Scale((t0+t1)/2, dir))
		if !srf.containsInTrim(mid) || !b.containsInTrim(mid) {
			continue
		}
		start := r3.Add(p0, r3.Scale(t0, dir))
		finish := r3.Add(p0, r3.Scale(t1, dir))

		sc := &Curve{
			Exact: &BezCurve{
				Deg:    1,
				Ctrl:   [4]r3.Vec{start, finish},
				Weight: [4]float64{1, 1},
			},
			Pts: []CurvePoint{
				{P: start, Vertex: true},
				{P: finish, Vertex: true},
			},
		}
		scn := sc.makeCopySplitAgainst(shellA, shellB, srf, b, into.chordTol())
		scn.Source = SourceIntersection
		scn.SurfA = srf.H
		scn.SurfB = b.H
		into.AddCurve(scn)
	}
}

func (srf *Surface) containsInTrim(p r3.Vec) bool {
	if srf.bsp == nil {
		return false
	}
	uv := srf.ClosestPointTo(p)
	if r3.Norm(r3.Sub(srf.PointAt(uv.X, uv.Y), p)) > LengthEps {
		return false
	}
	return srf.bsp.ClassifyPoint(uv, projectXY(r3.Vec{})) != UVOutside
}

// pointOnTwoPlanes solves for a point on both planes, selecting the
// one nearest the midpoint of the two plane reference points along the
// intersection direction.
func pointOnTwoPlanes(pa, na, pb, nb, dir r3.Vec) (r3.Vec, bool) {
	mid := r3.Scale(0.5, r3.Add(pa, pb))
	A := mat.NewDense(3, 3, []float64{
		na.X, na.Y, na.Z,
		nb.X, nb.Y, nb.Z,
		dir.X, dir.Y, dir.Z,
	})
	rhs := mat.NewVecDense(3, []float64{
		r3.Dot(na, pa),
		r3.Dot(nb, pb),
		r3.Dot(dir, mid),
	})
	var x mat.VecDense
	if err := x.SolveVec(A, rhs); err != nil {
		Logger().Debug("intersection: degenerate plane pair")
		return r3.Vec{}, false
	}
	return r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}, true
}

// lineSegmentApproach returns the line parameter at which the line
// (p0, dir) passes within LengthEps of the segment (ea, eb), if it
// does. Parallel segments never report.
func lineSegmentApproach(p0, dir, ea, eb r3.Vec) (float64, bool) {
	v := r3.Sub(eb, ea)
	w0 := r3.Sub(p0, ea)
	b := r3.Dot(dir, v)
	c := r3.Dot(v, v)
	du := r3.Dot(dir, w0)
	e := r3.Dot(v, w0)
	denom := b*b - c
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	t := (b*du - e) / denom
	if t < 0 || t > 1 {
		return 0, false
	}
	s := t*b - du
	lpt := r3.Add(p0, r3.Scale(s, dir))
	spt := r3.Add(ea, r3.Scale(t, v))
	if r3.Norm(r3.Sub(lpt, spt)) > LengthEps {
		return 0, false
	}
	return s, true
}
