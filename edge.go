package brep

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Edge is a scratch edge: two endpoints plus two integer auxiliaries.
// The Boolean pipeline stores the originating curve handle in AuxA and
// the trim direction flag in AuxB. UV edges store (u, v, 0).
type Edge struct {
	A, B r3.Vec
	AuxA int
	AuxB int
	tag  int
}

// EdgeList is a scratch list of edges.
type EdgeList struct {
	L []Edge
}

func (el *EdgeList) AddEdge(a, b r3.Vec, auxA, auxB int) {
	el.L = append(el.L, Edge{A: a, B: b, AuxA: auxA, AuxB: auxB})
}

func (el *EdgeList) Clear() {
	el.L = nil
}

func (el *EdgeList) clearTags() {
	for i := range el.L {
		el.L[i].tag = 0
	}
}

func (el *EdgeList) removeTagged() {
	el.L = slices.DeleteFunc(el.L, func(e Edge) bool {
		return e.tag != 0
	})
}

// CullExtraneousEdges removes duplicate edges (keeping one of each)
// and antiparallel pairs (removing both). Duplicates arise when two
// surfaces intersect coincident along an edge and both generate an
// intersection edge there.
func (el *EdgeList) CullExtraneousEdges() {
	el.clearTags()
	for i := range el.L {
		if el.L[i].tag != 0 {
			continue
		}
		for j := i + 1; j < len(el.L); j++ {
			if el.L[j].tag != 0 {
				continue
			}
			if eqPoint(el.L[i].A, el.L[j].A) && eqPoint(el.L[i].B, el.L[j].B) {
				el.L[j].tag = 1
			} else if eqPoint(el.L[i].A, el.L[j].B) && eqPoint(el.L[i].B, el.L[j].A) {
				el.L[i].tag = 1
				el.L[j].tag = 1
				break
			}
		}
	}
	el.removeTagged()
}

// AssemblePolygon checks that the edges chain into closed loops,
// following edge direction. It returns the number of closed loops found
// and whether every edge was consumed by one.
func (el *EdgeList) AssemblePolygon() (loops int, ok bool) {
	el.clearTags()
	ok = true
	for {
		start := -1
		for i := range el.L {
			if el.L[i].tag == 0 {
				start = i
				break
			}
		}
		if start < 0 {
			return loops, ok
		}
		el.L[start].tag = 1
		first := el.L[start].A
		cur := el.L[start].B
		for !eqPoint(cur, first) {
			found := false
			for i := range el.L {
				if el.L[i].tag != 0 {
					continue
				}
				if eqPoint(el.L[i].A, cur) {
					el.L[i].tag = 1
					cur = el.L[i].B
					found = true
					break
				}
			}
			if !found {
				ok = false
				break
			}
		}
		if eqPoint(cur, first) {
			loops++
		}
	}
}

// findChainAvoiding extracts from src a chain of edges sharing
// endpoints such that no point of avoid occurs in the middle of the
// chain, and deletes the chain's edges from src. src must be nonempty.
func findChainAvoiding(src, dest *EdgeList, avoid *PointList) {
	if len(src.L) == 0 {
		panic("need at least one edge")
	}
	// Start with an arbitrary edge.
	src.clearTags()
	dest.L = append(dest.L, src.L[0])
	src.L[0].tag = 1

	for {
		added := false
		s := dest.L[0].A
		f := dest.L[len(dest.L)-1].B

		// We may attach at the start or finish as long as that point
		// is not one to avoid.
		startOkay := !avoid.ContainsPoint(s)
		finishOkay := !avoid.ContainsPoint(f)

		for i := range src.L {
			se := &src.L[i]
			if se.tag != 0 {
				continue
			}
			if startOkay && eqPoint(s, se.B) {
				dest.L = slices.Insert(dest.L, 0, *se)
				s = se.A
				se.tag = 1
				startOkay = !avoid.ContainsPoint(s)
			} else if finishOkay && eqPoint(f, se.A) {
				dest.L = append(dest.L, *se)
				f = se.B
				se.tag = 1
				finishOkay = !avoid.ContainsPoint(f)
			} else {
				continue
			}
			added = true
		}
		if !added {
			break
		}
	}
	src.removeTagged()
}

// PointList is a scratch list of points with incidence counts.
type PointList struct {
	L []PointTag
}

type PointTag struct {
	P   r3.Vec
	Tag int
}

// IncrementTagFor bumps the incidence count of p, adding it with count
// one if absent.
func (pl *PointList) IncrementTagFor(p r3.Vec) {
	for i := range pl.L {
		if eqPoint(pl.L[i].P, p) {
			pl.L[i].Tag++
			return
		}
	}
	pl.L = append(pl.L, PointTag{P: p, Tag: 1})
}

// ContainsPoint reports whether p is in the list.
func (pl *PointList) ContainsPoint(p r3.Vec) bool {
	for i := range pl.L {
		if eqPoint(pl.L[i].P, p) {
			return true
		}
	}
	return false
}

// keepChoosing drops every point whose incidence count is exactly two.
// Two edges joining at a plain degree-two point must live or die
// together; everywhere else, per-edge keep decisions are legitimate.
func (pl *PointList) keepChoosing() {
	pl.L = slices.DeleteFunc(pl.L, func(pt PointTag) bool {
		return pt.Tag == 2
	})
}
