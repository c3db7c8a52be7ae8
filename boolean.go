package brep

import (
	"gonum.org/v1/gonum/spatial/r3"
	"honnef.co/go/curve"
)

// MakeFromUnionOf fills s with the regular union of a and b.
func (s *Shell) MakeFromUnionOf(a, b *Shell) {
	s.makeFromBoolean(a, b, Union)
}

// MakeFromDifferenceOf fills s with the regular difference a − b.
func (s *Shell) MakeFromDifferenceOf(a, b *Shell) {
	s.makeFromBoolean(a, b, Difference)
}

func (s *Shell) makeFromBoolean(a, b *Shell, op Op) {
	s.BooleanFailed = false

	a.makeClassifyingBsps(nil)
	b.makeClassifyingBsps(nil)

	// Copy over all the original curves, splitting them so that a
	// piecewise linear segment never crosses a surface from the other
	// shell.
	a.copyCurvesSplitAgainst(true, b, s)
	b.copyCurvesSplitAgainst(false, a, s)

	// Generate the intersection curves for each surface in a against
	// every surface in b; that is all of the intersection curves.
	a.makeIntersectionCurvesAgainst(b, s)

	for _, sc := range s.Curves {
		sc.RemoveShortSegments(sc.GetSurfaceA(a, b), sc.GetSurfaceB(a, b))
	}

	// Remake the classifying BSPs against the split (and
	// short-segment-removed) curves.
	a.CleanupAfterBoolean()
	b.CleanupAfterBoolean()
	a.makeClassifyingBsps(s)
	b.makeClassifyingBsps(s)

	// Trim and copy the surfaces.
	a.copySurfacesTrimAgainst(a, b, s, op)
	b.copySurfacesTrimAgainst(a, b, s, op)

	// The surfaces' new handles are now known, so the curves can be
	// rewritten to refer to surfaces by their handles in the result.
	s.rewriteSurfaceHandlesForCurves(a, b)

	a.CleanupAfterBoolean()
	b.CleanupAfterBoolean()
}

// MakeFromAssemblyOf fills s with the surfaces and curves of both a
// and b, rewriting all handles but looking for no intersections. If
// the operands interfere the result is self-intersecting; this is for
// assembly, since it is much faster than merging as union.
func (s *Shell) MakeFromAssemblyOf(a, b *Shell) {
	s.BooleanFailed = false

	// Copy over all the curves, noting which shell each came from and
	// assigning new handles. The surface references are wrong now and
	// can't be fixed until the surfaces have handles of their own.
	for i, ab := range [2]*Shell{a, b} {
		for _, c := range ab.Curves {
			cn := c.TransformedCopy(r3.Vec{})
			if i == 0 {
				cn.Source = SourceA
			} else {
				cn.Source = SourceB
			}
			c.NewH = s.AddCurve(cn)
		}
	}

	// Likewise the surfaces, rewriting their trims' curve handles as
	// they go.
	for _, ab := range [2]*Shell{a, b} {
		for _, srf := range ab.Surfaces {
			sn := srf.TransformedCopy(r3.Vec{})
			for ti := range sn.Trim {
				sn.Trim[ti].Curve = ab.Curve(sn.Trim[ti].Curve).NewH
			}
			srf.NewH = s.AddSurface(sn)
		}
	}

	s.rewriteSurfaceHandlesForCurves(a, b)
}

func (s *Shell) copyCurvesSplitAgainst(opA bool, agnst, into *Shell) {
	for _, sc := range s.Curves {
		scn := sc.makeCopySplitAgainst(agnst, nil,
			s.Surface(sc.SurfA), s.Surface(sc.SurfB), into.chordTol())
		if opA {
			scn.Source = SourceA
		} else {
			scn.Source = SourceB
		}
		// Note the new handle so the trims can be rewritten.
		sc.NewH = into.AddCurve(scn)
	}
}

func (s *Shell) makeIntersectionCurvesAgainst(agnst, into *Shell) {
	for _, sa := range s.Surfaces {
		for _, sb := range agnst.Surfaces {
			sa.IntersectAgainst(sb, s, agnst, into)
		}
	}
}

func (s *Shell) copySurfacesTrimAgainst(sha, shb, into *Shell, op Op) {
	for _, ss := range s.Surfaces {
		ssn := ss.makeCopyTrimAgainst(s, sha, shb, into, op)
		ss.NewH = into.AddSurface(ssn)
	}
}

// rewriteSurfaceHandlesForCurves rewrites every curve's bounding
// surface handles from operand handles to result handles.
func (s *Shell) rewriteSurfaceHandlesForCurves(a, b *Shell) {
	for _, sc := range s.Curves {
		sc.SurfA = sc.GetSurfaceA(a, b).NewH
		sc.SurfB = sc.GetSurfaceB(a, b).NewH
	}
}

func keepRegion(op Op, opA bool, shell, orig Class) bool {
	inShell := shell == Inside
	inSame := shell == CoincSame
	inOpp := shell == CoincOpp
	inOrig := orig == Inside

	inFace := inSame || inOpp

	// If these are correct then they are independent of inShell
	// whenever inFace is true.
	if !inOrig {
		return false
	}
	switch op {
	case Union:
		if opA {
			return !inShell && !inFace
		}
		return (!inShell && !inFace) || inSame

	case Difference:
		if opA {
			return !inShell && !inFace
		}
		return (inShell && !inFace) || inSame

	default:
		panic("unexpected combine type")
	}
}

func keepEdge(op Op, opA bool, indirShell, outdirShell, indirOrig, outdirOrig Class) bool {
	keepIn := keepRegion(op, opA, indirShell, indirOrig)
	keepOut := keepRegion(op, opA, outdirShell, outdirOrig)

	// If the regions to the left and right of this edge are both kept
	// or both dropped then the edge is not useful and is discarded.
	return keepIn && !keepOut
}

func tagByClassifiedEdge(bspclass UVClass) (indir, outdir Class) {
	switch bspclass {
	case UVInside:
		return Inside, Inside
	case UVOutside:
		return Outside, Outside
	case UVEdgeParallel:
		return Inside, Outside
	case UVEdgeAntiparallel:
		return Outside, Inside
	default:
		Logger().Warn("edge classified as crossing its own trim", "class", bspclass)
		return Outside, Outside
	}
}

// edgeNormalsWithinSurface lifts the UV edge (auv, buv) to 3D and
// computes the probe geometry for shell classification: the midpoint
// snapped back onto its generating curve, the surface normal there,
// and the displacements toward the edge's two sides, in the tangent
// plane with magnitude equal to the chord tolerance. The two
// displacements are not necessarily antiparallel on a curved surface.
func (srf *Surface) edgeNormalsWithinSurface(auv, buv curve.Point, auxA int, shell, sha, shb *Shell) (pt, enin, enout, surfn r3.Vec) {
	muv := auv.Midpoint(buv)
	pt = srf.PointAt(muv.X, muv.Y)

	// If the edge only approximates a curve, refine the midpoint to
	// lie on that curve, or point-on-face tests against the other
	// shell will miss.
	sc := shell.Curve(CurveID(auxA))
	if sc.Exact != nil && sc.Exact.Deg != 1 {
		t := sc.Exact.ClosestPointTo(pt)
		pt = sc.Exact.PointAt(t)
		muv = srf.ClosestPointTo(pt)
	} else if sc.Exact == nil {
		trimmedA := sc.GetSurfaceA(sha, shb)
		trimmedB := sc.GetSurfaceB(sha, shb)
		pt = trimmedA.ClosestPointOnThisAndSurface(trimmedB, pt)
		muv = srf.ClosestPointTo(pt)
	}

	surfn = srf.NormalAt(muv.X, muv.Y)

	// The edge's inner normal in 3D, and from that its inner normal
	// in UV: perpendicular to the edge in 3D, not necessarily in UV.
	ab := r3.Sub(srf.PointAt(auv.X, auv.Y), srf.PointAt(buv.X, buv.Y))
	enxyz := withMagnitude(r3.Cross(ab, surfn), shell.chordTol())
	tu, tv := srf.TangentsAt(muv.X, muv.Y)
	enuv := curve.Vec(r3.Dot(enxyz, tu)/r3.Norm2(tu), r3.Dot(enxyz, tv)/r3.Norm2(tv))

	pin := srf.PointAt(muv.X-enuv.X, muv.Y-enuv.Y)
	pout := srf.PointAt(muv.X+enuv.X, muv.Y+enuv.Y)
	enin = r3.Sub(pin, pt)
	enout = r3.Sub(pout, pt)
	return pt, enin, enout, surfn
}

// makeCopyTrimAgainst returns a copy of the surface trimmed the way op
// requires against the opposing shell. parent is the operand shell
// that owns this surface (and so its original trim curves); sha and
// shb are the two operands and into the result being built.
func (srf *Surface) makeCopyTrimAgainst(parent, sha, shb, into *Shell, op Op) *Surface {
	opA := parent == sha
	agnst := shb
	if !opA {
		agnst = sha
	}

	// The returned surface is identical; only the trims change.
	ret := &Surface{
		Degm:   srf.Degm,
		Degn:   srf.Degn,
		Ctrl:   srf.Ctrl,
		Weight: srf.Weight,
	}
	for _, stb := range srf.Trim {
		stn := stb
		stn.Curve = parent.Curve(stn.Curve).NewH
		ret.Trim = append(ret.Trim, stn)
	}

	if op == Difference && !opA {
		// The second operand of a difference is turned inside out.
		ret.Reverse()
	}

	// Build the original trim polygon; the coordinates may have
	// changed if the normal was just flipped, and the edges come from
	// the split curves, so the shell's own BSP can't be reused.
	var orig EdgeList
	ret.MakeEdgesInto(into, &orig, AsUV, nil)
	ret.Trim = nil
	origBsp := BspUVFrom(&orig, ret)

	// Intersect the other shell against us: edges from every
	// intersection curve bounding this surface and one of agnst's,
	// kept where they lie within that surface's trim polygon.
	var inter EdgeList
	for _, ss := range agnst.Surfaces {
		for _, sc := range into.Curves {
			if sc.Source != SourceIntersection {
				continue
			}
			if opA {
				if sc.SurfA != srf.H || sc.SurfB != ss.H {
					continue
				}
			} else {
				if sc.SurfB != srf.H || sc.SurfA != ss.H {
					continue
				}
			}

			for i := 1; i < len(sc.Pts); i++ {
				a := sc.Pts[i-1].P
				b := sc.Pts[i].P

				auv := ss.ClosestPointTo(a)
				buv := ss.ClosestPointTo(b)
				c := UVOutside
				if ss.bsp != nil {
					c = ss.bsp.ClassifyEdge(auv, buv)
				}
				if c == UVOutside {
					continue
				}

				ta := ret.ClosestPointTo(a)
				tb := ret.ClosestPointTo(b)
				tn := ret.NormalAt(ta.X, ta.Y)
				sn := ss.NormalAt(auv.X, auv.Y)

				// We are subtracting the portion of our surface that
				// lies within the other shell, so the in-plane edge
				// normal points opposite our surface normal.
				bkwds := true
				if r3.Dot(r3.Cross(tn, r3.Sub(b, a)), sn) < 0 {
					bkwds = !bkwds
				}
				if op == Difference && !opA {
					bkwds = !bkwds
				}
				if bkwds {
					inter.AddEdge(uvVec(tb), uvVec(ta), int(sc.H), 1)
				} else {
					inter.AddEdge(uvVec(ta), uvVec(tb), int(sc.H), 0)
				}
			}
		}
	}

	// The choosing points: wherever more than two edges join,
	// different outgoing edges may legitimately get different keep
	// decisions. Two edges joining anywhere else must live or die
	// together, or an open contour appears.
	var choosing PointList
	for _, se := range orig.L {
		choosing.IncrementTagFor(se.A)
		choosing.IncrementTagFor(se.B)
	}
	for _, se := range inter.L {
		choosing.IncrementTagFor(se.A)
		choosing.IncrementTagFor(se.B)
	}
	choosing.keepChoosing()

	// The edges that trim the new surface: a combination of edges
	// from the original and intersecting lists.
	var final EdgeList

	for len(orig.L) > 0 {
		var chain EdgeList
		findChainAvoiding(&orig, &chain, &choosing)

		// Any edge of the chain may be classified; they are all the
		// same.
		se := chain.L[len(chain.L)/2]
		auv := projectXY(se.A)
		buv := projectXY(se.B)

		pt, enin, enout, surfn := ret.edgeNormalsWithinSurface(auv, buv, se.AuxA, into, sha, shb)

		indirOrig, outdirOrig := Inside, Outside
		indirShell, outdirShell := agnst.ClassifyEdge(
			ret.PointAt(auv.X, auv.Y), ret.PointAt(buv.X, buv.Y), pt,
			enin, enout, surfn)

		if keepEdge(op, opA, indirShell, outdirShell, indirOrig, outdirOrig) {
			for _, e := range chain.L {
				final.AddEdge(e.A, e.B, e.AuxA, e.AuxB)
			}
		}
	}

	for len(inter.L) > 0 {
		var chain EdgeList
		findChainAvoiding(&inter, &chain, &choosing)

		se := chain.L[len(chain.L)/2]
		auv := projectXY(se.A)
		buv := projectXY(se.B)

		pt, enin, enout, surfn := ret.edgeNormalsWithinSurface(auv, buv, se.AuxA, into, sha, shb)

		cThis := UVOutside
		if origBsp != nil {
			cThis = origBsp.ClassifyEdge(auv, buv)
		}
		indirOrig, outdirOrig := tagByClassifiedEdge(cThis)

		indirShell, outdirShell := agnst.ClassifyEdge(
			ret.PointAt(auv.X, auv.Y), ret.PointAt(buv.X, buv.Y), pt,
			enin, enout, surfn)

		if keepEdge(op, opA, indirShell, outdirShell, indirOrig, outdirOrig) {
			for _, e := range chain.L {
				final.AddEdge(e.A, e.B, e.AuxA, e.AuxB)
			}
		}
	}

	// Cull extraneous edges: duplicates appear when our surface meets
	// the other shell along an edge so that both surfaces generate a
	// coincident intersection edge.
	final.CullExtraneousEdges()

	// Use the reassembled edges to trim the new surface.
	ret.trimFromEdgeList(&final, true)

	if loops, ok := final.AssemblePolygon(); !ok {
		into.BooleanFailed = true
		Logger().Warn("trim edges failed to close",
			"surface", uint32(srf.H), "choosing", len(choosing.L), "loops", loops)
		debugEdgeList(&final, ret, into)
	}
	return ret
}

// trimFromEdgeList rebuilds the surface's trim list from el: maximal
// runs of connected edges from the same curve in the same direction
// collapse into a single trim record. With asUV set the edges are in
// UV and the trim endpoints are lifted to 3D.
func (srf *Surface) trimFromEdgeList(el *EdgeList, asUV bool) {
	el.clearTags()
	for {
		// Find an edge, any edge; start from there.
		var first *Edge
		for i := range el.L {
			if el.L[i].tag == 0 {
				first = &el.L[i]
				break
			}
		}
		if first == nil {
			break
		}
		first.tag = 1
		stb := TrimBy{
			Curve:     CurveID(first.AuxA),
			Start:     first.A,
			Finish:    first.B,
			Backwards: first.AuxB != 0,
		}

		// Merge adjoining edges from the same curve into one trim.
		for {
			merged := false
			for i := range el.L {
				se := &el.L[i]
				if se.tag != 0 {
					continue
				}
				if se.AuxA != int(stb.Curve) {
					continue
				}
				if (se.AuxB != 0) != stb.Backwards {
					continue
				}
				if eqPoint(se.A, stb.Finish) {
					stb.Finish = se.B
					se.tag = 1
					merged = true
				} else if eqPoint(se.B, stb.Start) {
					stb.Start = se.A
					se.tag = 1
					merged = true
				}
			}
			if !merged {
				break
			}
		}

		if asUV {
			stb.Start = srf.PointAt(stb.Start.X, stb.Start.Y)
			stb.Finish = srf.PointAt(stb.Finish.X, stb.Finish.Y)
		}
		srf.Trim = append(srf.Trim, stb)
	}
}

// debugEdgeList emits the failed edge set as naked edges on the result
// shell, each with a short arrow edge marking its direction.
func debugEdgeList(sel *EdgeList, surf *Surface, into *Shell) {
	Logger().Debug("diagnostic edges", "count", len(sel.L))
	for _, se := range sel.L {
		mid := r3.Scale(0.5, r3.Add(se.A, se.B))
		arrow := r3.Sub(se.B, se.A)
		arrow.X, arrow.Y = -arrow.Y, arrow.X
		arrow = r3.Add(withMagnitude(arrow, 0.01), mid)
		into.NakedEdges.AddEdge(
			surf.PointAt(se.A.X, se.A.Y), surf.PointAt(se.B.X, se.B.Y), 0, 0)
		into.NakedEdges.AddEdge(
			surf.PointAt(mid.X, mid.Y), surf.PointAt(arrow.X, arrow.Y), 0, 0)
	}
}
