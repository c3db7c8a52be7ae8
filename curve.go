package brep

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
	"honnef.co/go/curve"
)

// CurveSource records which operand a result curve came from.
type CurveSource int

const (
	SourceA CurveSource = iota
	SourceB
	SourceIntersection
)

// CurvePoint is one sample of a curve's piecewise linear form. Vertex
// marks points that must survive retessellation: endpoints and split
// points.
type CurvePoint struct {
	P      r3.Vec
	Vertex bool
}

// BezCurve is an exact rational Bézier curve of degree up to three.
type BezCurve struct {
	Deg    int
	Ctrl   [4]r3.Vec
	Weight [4]float64
}

// PointAt evaluates the curve at parameter t.
func (bc *BezCurve) PointAt(t float64) r3.Vec {
	var num r3.Vec
	var den float64
	for i := 0; i <= bc.Deg; i++ {
		w := bc.Weight[i] * bernstein(i, bc.Deg, t)
		num = r3.Add(num, r3.Scale(w, bc.Ctrl[i]))
		den += w
	}
	return r3.Scale(1/den, num)
}

// ClosestPointTo returns the parameter of the point on the curve
// closest to p. Not required to converge; the best sample is refined by
// a few Newton steps on the tangency condition.
func (bc *BezCurve) ClosestPointTo(p r3.Vec) float64 {
	if bc.Deg == 1 {
		d := r3.Sub(bc.Ctrl[1], bc.Ctrl[0])
		return divProjected(r3.Sub(p, bc.Ctrl[0]), d)
	}
	best, bestD := 0.0, veryPositive
	const n = 20
	for i := 0; i <= n; i++ {
		t := float64(i) / n
		d := r3.Norm2(r3.Sub(bc.PointAt(t), p))
		if d < bestD {
			bestD = d
			best = t
		}
	}
	t := best
	const h = 1e-6
	for iter := 0; iter < 15; iter++ {
		d := r3.Scale(1/(2*h), r3.Sub(bc.PointAt(t+h), bc.PointAt(t-h)))
		r := r3.Sub(bc.PointAt(t), p)
		f := r3.Dot(r, d)
		df := r3.Dot(d, d)
		if df < 1e-18 {
			break
		}
		step := f / df
		t -= step
		if step*step < 1e-24 {
			break
		}
	}
	return t
}

// Curve is a trim curve: it bounds exactly two surfaces, referenced by
// SurfA and SurfB. For curves with Source A or B both handles resolve
// in the owning operand shell; for intersection curves SurfA resolves
// in operand A and SurfB in operand B, until the orchestrator rewrites
// both to result handles.
type Curve struct {
	H      CurveID
	Source CurveSource
	SurfA  SurfaceID
	SurfB  SurfaceID
	Exact  *BezCurve
	Pts    []CurvePoint

	// NewH records the curve's handle in the result shell while a
	// Boolean or assembly is rewriting references.
	NewH CurveID
}

// GetSurfaceA resolves SurfA against the operand shell that currently
// owns it.
func (c *Curve) GetSurfaceA(sha, shb *Shell) *Surface {
	if c.Source == SourceB {
		return shb.Surface(c.SurfA)
	}
	return sha.Surface(c.SurfA)
}

// GetSurfaceB resolves SurfB against the operand shell that currently
// owns it.
func (c *Curve) GetSurfaceB(sha, shb *Shell) *Surface {
	if c.Source == SourceA {
		return sha.Surface(c.SurfB)
	}
	return shb.Surface(c.SurfB)
}

// TransformedCopy returns a deep copy of the curve translated by t.
func (c *Curve) TransformedCopy(t r3.Vec) *Curve {
	cn := &Curve{
		Source: c.Source,
		SurfA:  c.SurfA,
		SurfB:  c.SurfB,
	}
	if c.Exact != nil {
		e := *c.Exact
		for i := 0; i <= e.Deg; i++ {
			e.Ctrl[i] = r3.Add(e.Ctrl[i], t)
		}
		cn.Exact = &e
	}
	cn.Pts = make([]CurvePoint, len(c.Pts))
	for i, cp := range c.Pts {
		cp.P = r3.Add(cp.P, t)
		cn.Pts[i] = cp
	}
	return cn
}

// RemoveShortSegments drops interior piecewise linear points that fall
// within LengthEps of the previously kept point. The first and last
// points are never removed; a vertex point displaces a plain sample it
// coincides with.
func (c *Curve) RemoveShortSegments(srfA, srfB *Surface) {
	_ = srfA
	_ = srfB
	if len(c.Pts) <= 2 {
		return
	}
	kept := []CurvePoint{c.Pts[0]}
	for _, p := range c.Pts[1 : len(c.Pts)-1] {
		last := &kept[len(kept)-1]
		if eqPoint(p.P, last.P) {
			if p.Vertex && !last.Vertex && len(kept) > 1 {
				*last = p
			}
			continue
		}
		kept = append(kept, p)
	}
	lastPt := c.Pts[len(c.Pts)-1]
	if n := len(kept); n > 1 && eqPoint(lastPt.P, kept[n-1].P) {
		kept = kept[:n-1]
	}
	c.Pts = append(kept, lastPt)
}

// makeCopySplitAgainst returns a copy of the curve whose piecewise
// linear form is subdivided at every intersection with a surface of the
// opposing shells. Split points are refined to lie simultaneously on
// srfA, srfB, and the intersecting surface. The curve's own bounding
// surfaces never produce splits; they are hit trivially at the
// endpoints and would make the refinement singular.
func (c *Curve) makeCopySplitAgainst(agnstA, agnstB *Shell, srfA, srfB *Surface, tol float64) *Curve {
	if len(c.Pts) == 0 {
		panic("cannot split an empty curve")
	}
	ret := &Curve{
		Source: c.Source,
		SurfA:  c.SurfA,
		SurfB:  c.SurfB,
		Exact:  c.Exact,
	}

	prev := c.Pts[0]
	ret.Pts = append(ret.Pts, prev)

	for _, p := range c.Pts[1:] {
		var il []Inter
		if agnstA != nil {
			agnstA.AllPointsIntersecting(prev.P, p.P, &il, true, false, true)
		}
		if agnstB != nil {
			agnstB.AllPointsIntersecting(prev.P, p.P, &il, true, false, true)
		}

		if len(il) > 0 {
			kept := il[:0]
			for _, pi := range il {
				if pi.Srf == srfA || pi.Srf == srfB {
					continue
				}

				puv := pi.Srf.ClosestPointTo(pi.P)

				// Split if the intersection lies within the surface's
				// trim polygon, or within the chord tolerance of it;
				// slop covers points close to the trim when the
				// piecewise linear form is coarse, and splitting
				// unnecessarily is harmless.
				cl := UVOutside
				if pi.Srf.bsp != nil {
					cl = pi.Srf.bsp.ClassifyPoint(puv, curve.Point{})
				}
				if cl == UVOutside {
					d := veryPositive
					if pi.Srf.bsp != nil {
						d = pi.Srf.bsp.MinimumDistanceToEdge(puv)
					}
					if d > tol {
						continue
					}
				}

				u, v := puv.X, puv.Y
				pi.Srf.PointOnSurfaces(srfA, srfB, &u, &v)
				pi.P = pi.Srf.PointAt(u, v)
				kept = append(kept, pi)
			}

			// Sort along the chord only after refining, in case
			// refinement makes two points switch places.
			lineStart := prev.P
			lineDir := r3.Sub(p.P, prev.P)
			slices.SortStableFunc(kept, func(a, b Inter) int {
				ta := divProjected(r3.Sub(a.P, lineStart), lineDir)
				tb := divProjected(r3.Sub(b.P, lineStart), lineDir)
				switch {
				case ta < tb:
					return -1
				case ta > tb:
					return 1
				default:
					return 0
				}
			})

			// An on-edge intersection generates the same split point
			// for both surfaces; don't create zero-length edges.
			emitted := r3.Vec{X: veryPositive}
			for _, pi := range kept {
				if !eqPoint(emitted, pi.P) {
					ret.Pts = append(ret.Pts, CurvePoint{P: pi.P, Vertex: true})
				}
				emitted = pi.P
			}
		}

		ret.Pts = append(ret.Pts, p)
		prev = p
	}
	return ret
}
