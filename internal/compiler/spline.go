package compiler

import (
	"fmt"
	"math"
	"sort"

	"github.com/roach88/morphc/internal/ir"
)

// splineVar is the variable a spline driver binds its source to.
const splineVar = "a"

// SplineCompiler turns control points into a conditional chain, or into a
// single linear term when the points allow it.
type SplineCompiler struct {
	MaxExprLen int
	Precision  int
}

// SplineResult holds exactly one of Driver or Linear.
type SplineResult struct {
	Driver *ir.SplineDriver
	Linear *ir.Term
}

// Compile compiles points (already in runtime units) over src.
func (c SplineCompiler) Compile(target string, src ir.Source, points []ir.Point) (SplineResult, error) {
	pts := sortPoints(points)
	if len(pts) == 0 {
		return SplineResult{Linear: &ir.Term{Source: src, Factor: 0}}, nil
	}

	if f, ok := linearFactor(pts); ok {
		return SplineResult{Linear: &ir.Term{Source: src, Factor: f}}, nil
	}

	d := &ir.SplineDriver{
		Source:    src,
		Var:       splineVar,
		Direction: ir.Ascending,
		Points:    pts,
		Precision: c.Precision,
	}
	chain := append([]ir.Point(nil), pts...)
	if umax := farthest(pts); umax.X < 0 {
		d.Direction = ir.Descending
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}
	}

	segs := []ir.SplineSegment{{Threshold: chain[0].X, Slope: 0, Offset: chain[0].Y}}
	for i := 0; i+1 < len(chain); i++ {
		p, q := chain[i], chain[i+1]
		slope := (q.Y - p.Y) / (q.X - p.X)
		segs = append(segs, ir.SplineSegment{Threshold: q.X, Slope: slope, Offset: p.Y - slope*p.X})
	}
	d.Segments = mergeSegments(segs, c.Precision)
	d.Else = chain[len(chain)-1].Y

	if n := len(d.Render()); n > c.MaxExprLen {
		return SplineResult{}, NewOverflowError(target, 1,
			fmt.Sprintf("spline over %s with %d points renders to %d characters (max %d)", src, len(pts), n, c.MaxExprLen))
	}
	return SplineResult{Driver: d}, nil
}

// sortPoints orders points by x; for duplicate x the last point wins.
func sortPoints(points []ir.Point) []ir.Point {
	pts := append([]ir.Point(nil), points...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
	out := pts[:0]
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1].X == p.X {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// farthest returns the point with the largest |x|.
func farthest(pts []ir.Point) ir.Point {
	best := pts[0]
	for _, p := range pts[1:] {
		if math.Abs(p.X) > math.Abs(best.X) {
			best = p
		}
	}
	return best
}

// linearFactor takes the slope from the point nearest the origin toward its
// neighbour in the direction of the farthest point, and reports whether
// every point lies on that line through the origin.
func linearFactor(pts []ir.Point) (float64, bool) {
	if len(pts) < 2 {
		return 0, false
	}
	pivot := 0
	for i, p := range pts {
		if math.Abs(p.X) < math.Abs(pts[pivot].X) {
			pivot = i
		}
	}
	nb := pivot + 1
	if farthest(pts).X < 0 {
		nb = pivot - 1
	}
	if nb < 0 || nb >= len(pts) {
		nb = 2*pivot - nb
	}
	p, q := pts[pivot], pts[nb]
	f := (q.Y - p.Y) / (q.X - p.X)
	for _, pt := range pts {
		if !nearlyEqual(pt.Y, f*pt.X) {
			return 0, false
		}
	}
	return f, true
}

// mergeSegments drops a segment when the next one continues the same line.
func mergeSegments(segs []ir.SplineSegment, precision int) []ir.SplineSegment {
	out := make([]ir.SplineSegment, 0, len(segs))
	for i, s := range segs {
		if i+1 < len(segs) && sameLine(s, segs[i+1], precision) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sameLine(a, b ir.SplineSegment, precision int) bool {
	return ir.FormatNumber(a.Slope, precision) == ir.FormatNumber(b.Slope, precision) &&
		ir.FormatNumber(a.Offset, precision) == ir.FormatNumber(b.Offset, precision)
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
