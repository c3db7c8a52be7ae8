package brep

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"honnef.co/go/curve"
)

// TrimBy is one trim record of a surface: a reference to a bounding
// curve plus the 3D start and finish points of the trimmed run along
// it. Start and Finish are always identical to two of the curve's
// piecewise linear samples.
type TrimBy struct {
	Curve     CurveID
	Start     r3.Vec
	Finish    r3.Vec
	Backwards bool
}

// Surface is a trimmed rational Bézier patch of degree up to three in
// each direction.
type Surface struct {
	H          SurfaceID
	Degm, Degn int
	Ctrl       [4][4]r3.Vec
	Weight     [4][4]float64
	Trim       []TrimBy

	// NewH records the surface's handle in the result shell while a
	// Boolean or assembly is rewriting references.
	NewH SurfaceID

	bsp   *BspUV
	edges EdgeList
}

// newPlaneSurface returns the degree 1×1 patch
// origin + u·du + v·dv, u,v ∈ [0,1], with normal du×dv.
func newPlaneSurface(origin, du, dv r3.Vec) *Surface {
	s := &Surface{Degm: 1, Degn: 1}
	s.Ctrl[0][0] = origin
	s.Ctrl[1][0] = r3.Add(origin, du)
	s.Ctrl[0][1] = r3.Add(origin, dv)
	s.Ctrl[1][1] = r3.Add(origin, r3.Add(du, dv))
	s.Weight[0][0] = 1
	s.Weight[1][0] = 1
	s.Weight[0][1] = 1
	s.Weight[1][1] = 1
	return s
}

var binomial = [4][4]float64{
	{1, 0, 0, 0},
	{1, 1, 0, 0},
	{1, 2, 1, 0},
	{1, 3, 3, 1},
}

func bernstein(i, deg int, t float64) float64 {
	r := binomial[deg][i]
	for k := 0; k < i; k++ {
		r *= t
	}
	for k := 0; k < deg-i; k++ {
		r *= 1 - t
	}
	return r
}

func bernsteinDeriv(i, deg int, t float64) float64 {
	var r float64
	if i > 0 {
		r += float64(i) * binomial[deg][i] * math.Pow(t, float64(i-1)) * math.Pow(1-t, float64(deg-i))
	}
	if deg-i > 0 {
		r -= float64(deg-i) * binomial[deg][i] * math.Pow(t, float64(i)) * math.Pow(1-t, float64(deg-i-1))
	}
	return r
}

// numDen evaluates the homogeneous numerator and denominator at (u, v).
func (s *Surface) numDen(u, v float64) (r3.Vec, float64) {
	var num r3.Vec
	var den float64
	for i := 0; i <= s.Degm; i++ {
		bu := bernstein(i, s.Degm, u)
		for j := 0; j <= s.Degn; j++ {
			w := s.Weight[i][j] * bu * bernstein(j, s.Degn, v)
			num = r3.Add(num, r3.Scale(w, s.Ctrl[i][j]))
			den += w
		}
	}
	return num, den
}

// PointAt evaluates the surface at (u, v). The domain extends beyond
// [0,1]² by polynomial continuation.
func (s *Surface) PointAt(u, v float64) r3.Vec {
	num, den := s.numDen(u, v)
	return r3.Scale(1/den, num)
}

// TangentsAt returns the partial derivatives ∂S/∂u and ∂S/∂v at (u, v).
func (s *Surface) TangentsAt(u, v float64) (tu, tv r3.Vec) {
	num, den := s.numDen(u, v)

	var numU, numV r3.Vec
	var denU, denV float64
	for i := 0; i <= s.Degm; i++ {
		bu := bernstein(i, s.Degm, u)
		bdu := bernsteinDeriv(i, s.Degm, u)
		for j := 0; j <= s.Degn; j++ {
			bv := bernstein(j, s.Degn, v)
			bdv := bernsteinDeriv(j, s.Degn, v)
			w := s.Weight[i][j]
			numU = r3.Add(numU, r3.Scale(w*bdu*bv, s.Ctrl[i][j]))
			denU += w * bdu * bv
			numV = r3.Add(numV, r3.Scale(w*bu*bdv, s.Ctrl[i][j]))
			denV += w * bu * bdv
		}
	}
	tu = r3.Scale(1/(den*den), r3.Sub(r3.Scale(den, numU), r3.Scale(denU, num)))
	tv = r3.Scale(1/(den*den), r3.Sub(r3.Scale(den, numV), r3.Scale(denV, num)))
	return tu, tv
}

// NormalAt returns the unit surface normal at (u, v).
func (s *Surface) NormalAt(u, v float64) r3.Vec {
	tu, tv := s.TangentsAt(u, v)
	return r3.Unit(r3.Cross(tu, tv))
}

// ClosestPointTo returns the UV coordinates of the point on the
// (untrimmed) surface closest to p. It is not required to converge for
// pathological inputs; the best iterate is returned.
func (s *Surface) ClosestPointTo(p r3.Vec) curve.Point {
	// Seed from a coarse grid, then Gauss-Newton.
	bestU, bestV := 0.5, 0.5
	bestD := veryPositive
	for i := 0; i <= 2; i++ {
		for j := 0; j <= 2; j++ {
			u, v := float64(i)/2, float64(j)/2
			d := r3.Norm2(r3.Sub(s.PointAt(u, v), p))
			if d < bestD {
				bestD = d
				bestU, bestV = u, v
			}
		}
	}
	u, v := bestU, bestV
	for iter := 0; iter < 25; iter++ {
		r := r3.Sub(s.PointAt(u, v), p)
		tu, tv := s.TangentsAt(u, v)
		a := r3.Dot(tu, tu)
		b := r3.Dot(tu, tv)
		c := r3.Dot(tv, tv)
		f := -r3.Dot(r, tu)
		g := -r3.Dot(r, tv)
		det := a*c - b*b
		if math.Abs(det) < 1e-18 {
			break
		}
		du := (f*c - g*b) / det
		dv := (a*g - b*f) / det
		u += du
		v += dv
		if du*du+dv*dv < 1e-24 {
			break
		}
	}
	return curve.Pt(u, v)
}

// PointOnSurfaces refines (u, v) so that the corresponding 3D point
// lies simultaneously on this surface and on s1 and s2: Newton
// iteration on the three local tangent planes. Best effort; a singular
// configuration leaves the last iterate in place.
func (s *Surface) PointOnSurfaces(s1, s2 *Surface, u, v *float64) {
	p := s.PointAt(*u, *v)
	srfs := [3]*Surface{s, s1, s2}
	for iter := 0; iter < 20; iter++ {
		var rows [9]float64
		var rhs [3]float64
		for k, srf := range srfs {
			uv := srf.ClosestPointTo(p)
			cp := srf.PointAt(uv.X, uv.Y)
			n := srf.NormalAt(uv.X, uv.Y)
			rows[3*k] = n.X
			rows[3*k+1] = n.Y
			rows[3*k+2] = n.Z
			rhs[k] = r3.Dot(n, cp)
		}
		A := mat.NewDense(3, 3, rows[:])
		b := mat.NewVecDense(3, rhs[:])
		var x mat.VecDense
		if err := x.SolveVec(A, b); err != nil {
			Logger().Debug("three-surface refinement: singular system")
			break
		}
		next := r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
		step := r3.Norm(r3.Sub(next, p))
		p = next
		if step < LengthEps/2 {
			break
		}
	}
	uv := s.ClosestPointTo(p)
	*u, *v = uv.X, uv.Y
}

// ClosestPointOnThisAndSurface returns a point near p lying on the
// curve of intersection of this surface and other, by alternating
// closest-point projections.
func (s *Surface) ClosestPointOnThisAndSurface(other *Surface, p r3.Vec) r3.Vec {
	for iter := 0; iter < 15; iter++ {
		uva := s.ClosestPointTo(p)
		pa := s.PointAt(uva.X, uva.Y)
		uvb := other.ClosestPointTo(pa)
		pb := other.PointAt(uvb.X, uvb.Y)
		if r3.Norm(r3.Sub(pb, p)) < LengthEps/2 {
			return pb
		}
		p = pb
	}
	return p
}

// Reverse flips the surface normal by reversing the control net along
// u, and reverses every trim record (Start and Finish swap, Backwards
// toggles) so that the trim loops still keep the face material on
// their positive side.
func (s *Surface) Reverse() {
	for i := 0; i < (s.Degm+1)/2; i++ {
		oi := s.Degm - i
		for j := 0; j <= s.Degn; j++ {
			s.Ctrl[i][j], s.Ctrl[oi][j] = s.Ctrl[oi][j], s.Ctrl[i][j]
			s.Weight[i][j], s.Weight[oi][j] = s.Weight[oi][j], s.Weight[i][j]
		}
	}
	for i := range s.Trim {
		stb := &s.Trim[i]
		stb.Backwards = !stb.Backwards
		stb.Start, stb.Finish = stb.Finish, stb.Start
	}
}

func (s *Surface) boundingBox() (lo, hi r3.Vec) {
	lo = r3.Vec{X: veryPositive, Y: veryPositive, Z: veryPositive}
	hi = r3.Scale(-1, lo)
	for i := 0; i <= s.Degm; i++ {
		for j := 0; j <= s.Degn; j++ {
			c := s.Ctrl[i][j]
			lo.X = math.Min(lo.X, c.X)
			lo.Y = math.Min(lo.Y, c.Y)
			lo.Z = math.Min(lo.Z, c.Z)
			hi.X = math.Max(hi.X, c.X)
			hi.Y = math.Max(hi.Y, c.Y)
			hi.Z = math.Max(hi.Z, c.Z)
		}
	}
	return lo, hi
}

// plane reports whether the patch is an affine plane, returning a point
// on it and its unit normal.
func (s *Surface) plane() (p0, n r3.Vec, ok bool) {
	if s.Degm != 1 || s.Degn != 1 {
		return r3.Vec{}, r3.Vec{}, false
	}
	for i := 0; i <= 1; i++ {
		for j := 0; j <= 1; j++ {
			if math.Abs(s.Weight[i][j]-1) > 1e-12 {
				return r3.Vec{}, r3.Vec{}, false
			}
		}
	}
	du := r3.Sub(s.Ctrl[1][0], s.Ctrl[0][0])
	dv := r3.Sub(s.Ctrl[0][1], s.Ctrl[0][0])
	cr := r3.Cross(du, dv)
	if r3.Norm(cr) < 1e-12 {
		return r3.Vec{}, r3.Vec{}, false
	}
	n = r3.Unit(cr)
	if math.Abs(r3.Dot(r3.Sub(s.Ctrl[1][1], s.Ctrl[0][0]), n)) > LengthEps {
		return r3.Vec{}, r3.Vec{}, false
	}
	return s.Ctrl[0][0], n, true
}

// MakeAs selects the coordinate space MakeEdgesInto emits in.
type MakeAs int

const (
	AsXYZ MakeAs = iota
	AsUV
)

// MakeEdgesInto walks the surface's trim records and appends one edge
// per piecewise linear curve segment to el, either in 3D or projected
// into this surface's UV (stored as (u, v, 0)). Curve handles resolve
// in shell; when useCurvesFrom is non-nil, each curve is replaced by
// its split copy there via NewH. The edges' AuxA carries the resolved
// curve handle and AuxB the trim's direction flag.
func (s *Surface) MakeEdgesInto(shell *Shell, el *EdgeList, space MakeAs, useCurvesFrom *Shell) {
	for _, stb := range s.Trim {
		c := shell.Curve(stb.Curve)
		if useCurvesFrom != nil {
			c = useCurvesFrom.Curve(c.NewH)
		}

		i0, i1 := -1, -1
		if stb.Backwards {
			i0 = lastIndexOfPoint(c.Pts, stb.Start)
			i1 = firstIndexOfPoint(c.Pts, stb.Finish)
		} else {
			i0 = firstIndexOfPoint(c.Pts, stb.Start)
			i1 = lastIndexOfPoint(c.Pts, stb.Finish)
		}
		if i0 < 0 || i1 < 0 || i0 == i1 {
			Logger().Warn("trim endpoints not found on curve",
				"surface", uint32(s.H), "curve", uint32(c.H))
			continue
		}

		step := 1
		if i0 > i1 {
			step = -1
		}
		bk := 0
		if stb.Backwards {
			bk = 1
		}
		prev := c.Pts[i0].P
		for i := i0 + step; ; i += step {
			cur := c.Pts[i].P
			if space == AsUV {
				pa := s.ClosestPointTo(prev)
				pb := s.ClosestPointTo(cur)
				el.AddEdge(uvVec(pa), uvVec(pb), int(c.H), bk)
			} else {
				el.AddEdge(prev, cur, int(c.H), bk)
			}
			prev = cur
			if i == i1 {
				break
			}
		}
	}
}

func firstIndexOfPoint(pts []CurvePoint, p r3.Vec) int {
	for i := range pts {
		if eqPoint(pts[i].P, p) {
			return i
		}
	}
	return -1
}

func lastIndexOfPoint(pts []CurvePoint, p r3.Vec) int {
	for i := len(pts) - 1; i >= 0; i-- {
		if eqPoint(pts[i].P, p) {
			return i
		}
	}
	return -1
}

// TransformedCopy returns a deep copy of the surface translated by t.
// Scratch state is not copied.
func (s *Surface) TransformedCopy(t r3.Vec) *Surface {
	sn := &Surface{
		Degm:   s.Degm,
		Degn:   s.Degn,
		Weight: s.Weight,
	}
	for i := 0; i <= s.Degm; i++ {
		for j := 0; j <= s.Degn; j++ {
			sn.Ctrl[i][j] = r3.Add(s.Ctrl[i][j], t)
		}
	}
	sn.Trim = make([]TrimBy, len(s.Trim))
	for i, stb := range s.Trim {
		stb.Start = r3.Add(stb.Start, t)
		stb.Finish = r3.Add(stb.Finish, t)
		sn.Trim[i] = stb
	}
	return sn
}

func (s *Shell) makeClassifyingBsps(useCurvesFrom *Shell) {
	for _, srf := range s.Surfaces {
		srf.makeClassifyingBsp(s, useCurvesFrom)
	}
	s.buildFaceIndex()
}

func (srf *Surface) makeClassifyingBsp(shell, useCurvesFrom *Shell) {
	var el EdgeList
	srf.MakeEdgesInto(shell, &el, AsUV, useCurvesFrom)
	srf.bsp = BspUVFrom(&el, srf)

	srf.edges = EdgeList{}
	srf.MakeEdgesInto(shell, &srf.edges, AsXYZ, useCurvesFrom)
}

func uvVec(p curve.Point) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y}
}

func projectXY(v r3.Vec) curve.Point {
	return curve.Pt(v.X, v.Y)
}
