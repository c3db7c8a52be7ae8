package brep

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// LengthEps is the short-length epsilon: two points closer than
	// this in 3D (or in tangent-scaled UV) are considered identical.
	LengthEps = 1e-6

	// DefaultChordTol is the chord tolerance used when a shell does
	// not specify one.
	DefaultChordTol = 0.01

	veryPositive = 1e10
)

// Class describes a point or region relative to a shell.
type Class int

const (
	Inside Class = iota
	Outside
	// CoincSame and CoincOpp mean the query lies on a face of the
	// shell, with the query normal aligned or opposed to the face
	// normal.
	CoincSame
	CoincOpp
)

func (c Class) String() string {
	switch c {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	case CoincSame:
		return "coinc-same"
	case CoincOpp:
		return "coinc-opp"
	default:
		return "invalid"
	}
}

// Op selects the Boolean operation.
type Op int

const (
	Union Op = iota
	Difference
)

// SurfaceID and CurveID are opaque handles. Zero is "no handle";
// shells assign ascending handles starting at one.
type (
	SurfaceID uint32
	CurveID   uint32
)

// Shell is a closed two-manifold boundary: a set of trimmed surfaces
// and the curves shared between pairs of them.
//
// After a successful Boolean, every curve has exactly two referencing
// surfaces and every surface's trim edges form closed loops.
type Shell struct {
	Surfaces []*Surface
	Curves   []*Curve

	// BooleanFailed is set when some surface's final edge set could
	// not be assembled into closed loops. It is a soft flag; the rest
	// of the result is still filled in.
	BooleanFailed bool

	// ChordTol is the maximum allowed 3D deviation between a curve
	// and its piecewise linear form. Zero means DefaultChordTol.
	ChordTol float64

	// NakedEdges receives diagnostic edges for surfaces whose trim
	// loops failed to close.
	NakedEdges EdgeList

	nextSurface SurfaceID
	nextCurve   CurveID
	faceIndex   *rtreego.Rtree
}

func (s *Shell) chordTol() float64 {
	if s.ChordTol > 0 {
		return s.ChordTol
	}
	return DefaultChordTol
}

// AddSurface assigns srf a fresh handle in s and appends it.
func (s *Shell) AddSurface(srf *Surface) SurfaceID {
	s.nextSurface++
	srf.H = s.nextSurface
	s.Surfaces = append(s.Surfaces, srf)
	return srf.H
}

// AddCurve assigns c a fresh handle in s and appends it.
func (s *Shell) AddCurve(c *Curve) CurveID {
	s.nextCurve++
	c.H = s.nextCurve
	s.Curves = append(s.Curves, c)
	return c.H
}

// Surface returns the surface with handle h, or panics if h does not
// resolve. Handles are never dangling in a well-formed shell.
func (s *Shell) Surface(h SurfaceID) *Surface {
	for _, srf := range s.Surfaces {
		if srf.H == h {
			return srf
		}
	}
	panic("unresolved surface handle")
}

// Curve returns the curve with handle h, or panics if h does not
// resolve.
func (s *Shell) Curve(h CurveID) *Curve {
	for _, c := range s.Curves {
		if c.H == h {
			return c
		}
	}
	panic("unresolved curve handle")
}

// IsEmpty reports whether the shell has no surfaces.
func (s *Shell) IsEmpty() bool {
	return len(s.Surfaces) == 0
}

// CleanupAfterBoolean clears the scratch state (classifying BSPs, XYZ
// edge caches, the face index) that a Boolean operation leaves on its
// operand shells. The orchestrator calls it on the return path; callers
// that keep operands alive across operations need nothing further.
func (s *Shell) CleanupAfterBoolean() {
	for _, srf := range s.Surfaces {
		srf.edges = EdgeList{}
		srf.bsp = nil
	}
	s.faceIndex = nil
}

type faceEntry struct {
	srf    *Surface
	bounds rtreego.Rect
}

func (f *faceEntry) Bounds() rtreego.Rect {
	return f.bounds
}

func (s *Shell) buildFaceIndex() {
	tree := rtreego.NewTree(3, 2, 8)
	pad := s.chordTol() + LengthEps
	for _, srf := range s.Surfaces {
		lo, hi := srf.boundingBox()
		r, err := rtreego.NewRect(
			rtreego.Point{lo.X - pad, lo.Y - pad, lo.Z - pad},
			[]float64{hi.X - lo.X + 2*pad, hi.Y - lo.Y + 2*pad, hi.Z - lo.Z + 2*pad})
		if err != nil {
			Logger().Warn("face index: degenerate bounding box", "surface", uint32(srf.H), "err", err)
			s.faceIndex = nil
			return
		}
		tree.Insert(&faceEntry{srf: srf, bounds: r})
	}
	s.faceIndex = tree
}

// surfacesNear returns the surfaces whose padded bounding boxes
// intersect the box of the segment [a, b], or all surfaces if no index
// has been built.
func (s *Shell) surfacesNear(a, b r3.Vec) []*Surface {
	if s.faceIndex == nil {
		return s.Surfaces
	}
	lo := r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
	hi := r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
	const pad = LengthEps
	r, err := rtreego.NewRect(
		rtreego.Point{lo.X - pad, lo.Y - pad, lo.Z - pad},
		[]float64{hi.X - lo.X + 2*pad, hi.Y - lo.Y + 2*pad, hi.Z - lo.Z + 2*pad})
	if err != nil {
		return s.Surfaces
	}
	hits := s.faceIndex.SearchIntersect(r)
	srfs := make([]*Surface, 0, len(hits))
	for _, h := range hits {
		srfs = append(srfs, h.(*faceEntry).srf)
	}
	return srfs
}

// NewBoxShell builds the shell of the axis-aligned box [min, max]: six
// planar faces with outward normals and twelve line curves, each shared
// by exactly two faces.
func NewBoxShell(min, max r3.Vec) *Shell {
	s := &Shell{}

	// Corners are selected component-wise so that shared corners are
	// bit-identical across faces.
	corner := func(ix, iy, iz int) r3.Vec {
		c := min
		if ix != 0 {
			c.X = max.X
		}
		if iy != 0 {
			c.Y = max.Y
		}
		if iz != 0 {
			c.Z = max.Z
		}
		return c
	}

	// Corner indices (origin, u-corner, v-corner, far corner), chosen
	// so du×dv is the outward normal of each face.
	faces := [][4][3]int{
		{{1, 0, 0}, {1, 1, 0}, {1, 0, 1}, {1, 1, 1}}, // +X
		{{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1}}, // -X
		{{0, 1, 0}, {0, 1, 1}, {1, 1, 0}, {1, 1, 1}}, // +Y
		{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, {1, 0, 1}}, // -Y
		{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}}, // +Z
		{{0, 0, 0}, {0, 1, 0}, {1, 0, 0}, {1, 1, 0}}, // -Z
	}

	type cornerPair struct{ a, b r3.Vec }
	curveFor := make(map[[6]float64]*Curve)
	key := func(p, q r3.Vec) [6]float64 {
		// Unordered pair key.
		if p.X < q.X || (p.X == q.X && (p.Y < q.Y || (p.Y == q.Y && p.Z < q.Z))) {
			return [6]float64{p.X, p.Y, p.Z, q.X, q.Y, q.Z}
		}
		return [6]float64{q.X, q.Y, q.Z, p.X, p.Y, p.Z}
	}

	for _, f := range faces {
		c00 := corner(f[0][0], f[0][1], f[0][2])
		c10 := corner(f[1][0], f[1][1], f[1][2])
		c01 := corner(f[2][0], f[2][1], f[2][2])
		c11 := corner(f[3][0], f[3][1], f[3][2])

		srf := &Surface{Degm: 1, Degn: 1}
		srf.Ctrl[0][0] = c00
		srf.Ctrl[1][0] = c10
		srf.Ctrl[0][1] = c01
		srf.Ctrl[1][1] = c11
		srf.Weight[0][0] = 1
		srf.Weight[1][0] = 1
		srf.Weight[0][1] = 1
		srf.Weight[1][1] = 1
		s.AddSurface(srf)

		// Material to the right of travel: walk the loop so the face
		// interior lies on the positive side of each edge.
		loop := []cornerPair{{c00, c01}, {c01, c11}, {c11, c10}, {c10, c00}}

		for _, e := range loop {
			c, ok := curveFor[key(e.a, e.b)]
			if !ok {
				c = &Curve{
					Exact: &BezCurve{
						Deg:    1,
						Ctrl:   [4]r3.Vec{e.a, e.b},
						Weight: [4]float64{1, 1},
					},
					Pts: []CurvePoint{
						{P: e.a, Vertex: true},
						{P: e.b, Vertex: true},
					},
				}
				s.AddCurve(c)
				c.SurfA = srf.H
				curveFor[key(e.a, e.b)] = c
			} else {
				c.SurfB = srf.H
			}
			srf.Trim = append(srf.Trim, TrimBy{
				Curve:     c.H,
				Start:     e.a,
				Finish:    e.b,
				Backwards: !eqPoint(c.Pts[0].P, e.a),
			})
		}
	}
	return s
}

func eqPoint(a, b r3.Vec) bool {
	return r3.Norm2(r3.Sub(a, b)) < LengthEps*LengthEps
}

// withMagnitude returns v rescaled to magnitude m, or the zero vector
// if v is degenerate.
func withMagnitude(v r3.Vec, m float64) r3.Vec {
	n := r3.Norm(v)
	if n < 1e-12 {
		return r3.Vec{}
	}
	return r3.Scale(m/n, v)
}

// divProjected returns the parameter of v projected onto dir.
func divProjected(v, dir r3.Vec) float64 {
	return r3.Dot(v, dir) / r3.Dot(dir, dir)
}
