// Package brep implements regularized Boolean operations on closed
// two-manifold shells whose faces are trimmed rational-polynomial
// surfaces.
//
// A [Shell] is a set of trimmed surfaces plus the curves shared between
// pairs of them. The three top-level operations construct a new shell
// from two operands:
//
//   - [Shell.MakeFromUnionOf]
//   - [Shell.MakeFromDifferenceOf]
//   - [Shell.MakeFromAssemblyOf]
//
// Union and difference run the full pipeline: every trim curve of one
// operand is split where it crosses a surface of the other, exact
// intersection curves are generated for every cross-shell pair of
// planar surfaces, and each surface is re-trimmed by classifying chains of boundary
// edges against the opposing shell. Assembly merges two shells without
// any intersection processing and is much cheaper.
//
// Curve splitting, intersection curves and ray classification are
// computed for planar surfaces only. A non-planar surface produces no
// split points and no intersection curves; it is skipped with a debug
// diagnostic.
//
// Failure to reassemble some surface's trim edges into closed loops is
// reported through the soft [Shell.BooleanFailed] flag together with
// diagnostic edges in [Shell.NakedEdges]; the operation never aborts on
// numerical trouble.
//
// # Geometry representation
//
// Surfaces are rational Bézier patches of degree up to three per
// direction, evaluated over a 2D parameter (UV) domain. Curves carry an
// optional exact rational Bézier form and always carry a piecewise
// linear approximation whose samples are shared with the trim records
// of the two surfaces they bound. Surfaces and curves reference each
// other through opaque integer handles, never pointers.
//
// Classification in a surface's UV domain goes through a 2D binary
// space partition over the trim edges ([BspUV]). Distances in UV are
// scaled by the magnitudes of the surface tangents so that tolerances
// are applied in 3D arc length.
//
// 3D vectors are [gonum.org/v1/gonum/spatial/r3.Vec]; UV coordinates
// are [honnef.co/go/curve.Point].
//
// # Diagnostics
//
// The package logs numerical diagnostics through a package-level
// [log/slog.Logger] that discards everything by default; see
// [SetLogger].
package brep
