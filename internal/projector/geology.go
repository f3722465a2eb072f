package projector

import (
	"context"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/strataview/strataview/internal/geom"
	"github.com/strataview/strataview/internal/layer"
	"github.com/strataview/strataview/internal/profile"
)

// chainEps collapses breakpoints closer than this and drops segments
// shorter than this, in map units.
const chainEps = 1e-9

// Geology intersects outcrop polygons with the section line and labels the
// covered chainage runs with the polygon's name field.
//
// Overlap policy: first match wins in layer feature order. Each feature's
// candidate segments are clipped against the chainage already claimed by
// earlier features, so a later polygon only fills what is still open.
type Geology struct {
	Line      *geom.Polyline
	NameField string
}

// Project returns the labeled segments ordered by start chainage. An empty
// layer yields layer.ErrNoFeatures with an empty result; callers treat that
// as a soft condition.
func (g *Geology) Project(ctx context.Context, lyr layer.Layer, progress ProgressFunc) ([]profile.GeologySegment, error) {
	feats := lyr.Features()
	if len(feats) == 0 {
		return nil, layer.ErrNoFeatures
	}

	var covered []span
	var out []profile.GeologySegment

	for i, f := range feats {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		report(progress, i, len(feats))

		unit, ok := layer.String(f.Attrs, g.NameField)
		if !ok {
			continue
		}
		for _, poly := range polygons(f.Geometry) {
			for _, cand := range g.coveredRuns(poly) {
				for _, s := range subtract(cand, covered) {
					out = append(out, profile.GeologySegment{Start: s.a, End: s.b, Unit: unit})
					covered = insert(covered, s)
				}
			}
		}
	}
	report(progress, len(feats), len(feats))

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// coveredRuns splits the section at every boundary crossing of the polygon
// and keeps the runs whose midpoint lies inside it.
func (g *Geology) coveredRuns(poly orb.Polygon) []span {
	breaks := []float64{0, g.Line.Length()}
	for _, ring := range poly {
		breaks = append(breaks, g.Line.RingIntersections(ring)...)
	}
	sort.Float64s(breaks)

	var runs []span
	for i := 1; i < len(breaks); i++ {
		a, b := breaks[i-1], breaks[i]
		if b-a <= chainEps {
			continue
		}
		mid := g.Line.PointAt((a + b) / 2)
		if !planar.PolygonContains(poly, mid) {
			continue
		}
		// merge with the previous run when a breakpoint did not actually
		// leave the polygon (tangent crossings)
		if n := len(runs); n > 0 && a-runs[n-1].b <= chainEps {
			runs[n-1].b = b
			continue
		}
		runs = append(runs, span{a, b})
	}
	return runs
}

func polygons(g orb.Geometry) []orb.Polygon {
	switch p := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{p}
	case orb.MultiPolygon:
		return p
	default:
		return nil
	}
}

// span is a half-open-ish chainage interval; endpoints within chainEps are
// treated as touching.
type span struct{ a, b float64 }

// subtract removes the covered intervals from s. covered must be sorted and
// non-overlapping.
func subtract(s span, covered []span) []span {
	out := []span{s}
	for _, c := range covered {
		var next []span
		for _, r := range out {
			if c.b <= r.a+chainEps || c.a >= r.b-chainEps {
				next = append(next, r)
				continue
			}
			if c.a > r.a+chainEps {
				next = append(next, span{r.a, c.a})
			}
			if c.b < r.b-chainEps {
				next = append(next, span{c.b, r.b})
			}
		}
		out = next
	}
	return out
}

// insert adds s to the sorted covered list, merging touching neighbours.
func insert(covered []span, s span) []span {
	covered = append(covered, s)
	sort.Slice(covered, func(i, j int) bool { return covered[i].a < covered[j].a })
	merged := covered[:0]
	for _, c := range covered {
		if n := len(merged); n > 0 && c.a <= merged[n-1].b+chainEps {
			if c.b > merged[n-1].b {
				merged[n-1].b = c.b
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}
