package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"honnef.co/go/curve"
)

// Inter is a transient intersection record: a 3D point plus the
// surface that generated it.
type Inter struct {
	P   r3.Vec
	Srf *Surface
}

// AllPointsIntersecting appends to il every intersection of the
// segment (or infinite line) through a and b with a surface of the
// shell. With trimmed set, only intersections inside the surfaces'
// trim polygons are reported. inclTangent is accepted for contract
// compatibility; tangent grazes of a plane never produce discrete
// points here.
func (s *Shell) AllPointsIntersecting(a, b r3.Vec, il *[]Inter, asSegment, trimmed, inclTangent bool) {
	_ = inclTangent
	for _, srf := range s.surfacesNear(a, b) {
		for _, p := range srf.intersectLine(a, b, asSegment) {
			if trimmed {
				uv := srf.ClosestPointTo(p)
				cl := UVOutside
				if srf.bsp != nil {
					cl = srf.bsp.ClassifyPoint(uv, curve.Point{})
				}
				if cl == UVOutside {
					continue
				}
			}
			*il = append(*il, Inter{P: p, Srf: srf})
		}
	}
}

// intersectLine intersects the segment (or line) a..b with the
// untrimmed surface. Exact for planes; other degrees are unsupported
// and produce nothing.
func (srf *Surface) intersectLine(a, b r3.Vec, asSegment bool) []r3.Vec {
	p0, n, ok := srf.plane()
	if !ok {
		Logger().Debug("segment intersection: unsupported surface degree",
			"surface", uint32(srf.H), "degm", srf.Degm, "degn", srf.Degn)
		return nil
	}
	d := r3.Sub(b, a)
	denom := r3.Dot(n, d)
	if math.Abs(denom) < 1e-12 {
		// Parallel, possibly coincident; no discrete intersection.
		return nil
	}
	t := r3.Dot(n, r3.Sub(p0, a)) / denom
	if asSegment {
		slop := LengthEps / math.Max(r3.Norm(d), LengthEps)
		if t < -slop || t > 1+slop {
			return nil
		}
	}
	return []r3.Vec{r3.Add(a, r3.Scale(t, d))}
}

// ClassifyEdge classifies both sides of a lifted surface edge against
// the shell. p is the edge midpoint in 3D; enin and enout are the
// in-plane probe displacements toward the two sides, and surfn the
// querying surface's normal at p. ea and eb, the edge endpoints, are
// accepted for contract compatibility.
func (s *Shell) ClassifyEdge(ea, eb, p, enin, enout, surfn r3.Vec) (indir, outdir Class) {
	_, _ = ea, eb
	indir = s.classifyProbe(r3.Add(p, enin), surfn)
	outdir = s.classifyProbe(r3.Add(p, enout), surfn)
	return indir, outdir
}

// classifyProbe classifies the displaced probe point q. A probe that
// lands on a trimmed face of the shell is coincident, with the verdict
// split by the alignment of surfn against the face normal; otherwise
// the point is classified by ray parity.
func (s *Shell) classifyProbe(q, surfn r3.Vec) Class {
	bestD := veryPositive
	var bestSrf *Surface
	var bestUV curve.Point
	for _, srf := range s.surfacesNear(q, q) {
		uv := srf.ClosestPointTo(q)
		d := r3.Norm(r3.Sub(srf.PointAt(uv.X, uv.Y), q))
		if d > LengthEps {
			continue
		}
		cl := UVOutside
		if srf.bsp != nil {
			cl = srf.bsp.ClassifyPoint(uv, curve.Point{})
		}
		if cl == UVOutside {
			continue
		}
		if d < bestD {
			bestD = d
			bestSrf = srf
			bestUV = uv
		}
	}
	if bestSrf != nil {
		if r3.Dot(surfn, bestSrf.NormalAt(bestUV.X, bestUV.Y)) > 0 {
			return CoincSame
		}
		return CoincOpp
	}
	if s.classifyPointInside(q) {
		return Inside
	}
	return Outside
}

// rayDirs are the ray-casting probe directions, scrambled so that the
// first retry already escapes axis-aligned degeneracies.
var rayDirs = []r3.Vec{
	{X: 0.2912, Y: 0.7643, Z: 0.5753},
	{X: -0.6412, Y: 0.2877, Z: 0.7113},
	{X: 0.7719, Y: -0.5524, Z: 0.3147},
	{X: 0.1331, Y: 0.4979, Z: -0.8569},
	{X: -0.3268, Y: -0.7542, Z: -0.5697},
	{X: 0.9016, Y: 0.2313, Z: 0.3651},
	{X: -0.1799, Y: 0.8372, Z: -0.5166},
	{X: 0.5521, Y: -0.1822, Z: 0.8136},
}

// classifyPointInside decides whether q is inside the shell by casting
// a ray and counting trimmed crossings. A cast that hits near a trim
// boundary, or that runs inside a face's plane, is degenerate and is
// retried in another direction.
func (s *Shell) classifyPointInside(q r3.Vec) bool {
	for _, d := range rayDirs {
		n, ok := s.countRayCrossings(q, d)
		if ok {
			return n%2 == 1
		}
	}
	Logger().Warn("point classification: all ray directions degenerate")
	return false
}

func (s *Shell) countRayCrossings(q, d r3.Vec) (int, bool) {
	count := 0
	for _, srf := range s.Surfaces {
		p0, n, ok := srf.plane()
		if !ok {
			Logger().Debug("ray classification: unsupported surface degree",
				"surface", uint32(srf.H))
			continue
		}
		denom := r3.Dot(n, d)
		if math.Abs(denom) < 1e-9 {
			if math.Abs(r3.Dot(n, r3.Sub(q, p0))) < LengthEps {
				// Ray runs within this face's plane; can't count
				// crossings reliably.
				return 0, false
			}
			continue
		}
		t := r3.Dot(n, r3.Sub(p0, q)) / denom
		if t < LengthEps {
			continue
		}
		hit := r3.Add(q, r3.Scale(t, d))
		uv := srf.ClosestPointTo(hit)
		if srf.bsp == nil {
			continue
		}
		switch srf.bsp.ClassifyPoint(uv, curve.Point{}) {
		case UVInside:
			count++
		case UVOutside:
			// No crossing, but a hit close to the trim boundary is
			// numerically untrustworthy.
			if srf.bsp.MinimumDistanceToEdge(uv) < 10*LengthEps {
				return 0, false
			}
		default:
			return 0, false
		}
	}
	return count, true
}
