// Package geom is the pure geometry kernel for section-space arithmetic:
// chainage along a polyline, point projection, apparent dip and corridor
// membership. All functions are side-effect free; all angles are degrees at
// the API boundary and converted to radians once per call.
package geom

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// ErrDegenerateGeometry is returned for section lines with fewer than two
// vertices or zero total length.
var ErrDegenerateGeometry = errors.New("degenerate section geometry")

// Polyline is a section line with a precomputed cumulative chainage table.
// Immutable after construction.
type Polyline struct {
	pts orb.LineString
	cum []float64
}

// NewPolyline validates and indexes a section line.
func NewPolyline(line orb.LineString) (*Polyline, error) {
	if len(line) < 2 {
		return nil, ErrDegenerateGeometry
	}
	cum := make([]float64, len(line))
	for i := 1; i < len(line); i++ {
		cum[i] = cum[i-1] + dist(line[i-1], line[i])
	}
	if cum[len(cum)-1] <= 0 {
		return nil, ErrDegenerateGeometry
	}
	pts := make(orb.LineString, len(line))
	copy(pts, line)
	return &Polyline{pts: pts, cum: cum}, nil
}

// Length is the total chainage of the line.
func (l *Polyline) Length() float64 { return l.cum[len(l.cum)-1] }

// ProjectPoint finds the nearest point on the polyline and returns its
// chainage plus the signed perpendicular offset (positive left of the line
// in walking direction).
func (l *Polyline) ProjectPoint(p orb.Point) (chainage, offset float64) {
	best := math.MaxFloat64
	for i := 1; i < len(l.pts); i++ {
		a, b := l.pts[i-1], l.pts[i]
		segLen := l.cum[i] - l.cum[i-1]
		if segLen == 0 {
			continue
		}
		t := ((p[0]-a[0])*(b[0]-a[0]) + (p[1]-a[1])*(b[1]-a[1])) / (segLen * segLen)
		t = math.Max(0, math.Min(1, t))
		q := orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
		d := dist(p, q)
		if d < best {
			best = d
			chainage = l.cum[i-1] + t*segLen
			// sign from the cross product of the segment direction and the
			// vector to the query point
			cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
			offset = math.Copysign(d, cross)
			if cross == 0 {
				offset = 0
			}
		}
	}
	return chainage, offset
}

// PointAt is the inverse of chainage: the map-space point at the given
// distance along the line. Chainage is clamped to [0, Length].
func (l *Polyline) PointAt(chainage float64) orb.Point {
	if chainage <= 0 {
		return l.pts[0]
	}
	if chainage >= l.Length() {
		return l.pts[len(l.pts)-1]
	}
	i := l.segmentAt(chainage)
	a, b := l.pts[i-1], l.pts[i]
	t := (chainage - l.cum[i-1]) / (l.cum[i] - l.cum[i-1])
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

// AzimuthAt is the bearing of the segment containing the given chainage,
// degrees clockwise from north in [0, 360).
func (l *Polyline) AzimuthAt(chainage float64) float64 {
	i := l.segmentAt(chainage)
	a, b := l.pts[i-1], l.pts[i]
	az := math.Atan2(b[0]-a[0], b[1]-a[1]) * 180 / math.Pi
	if az < 0 {
		az += 360
	}
	return az
}

// Contains reports whether the point lies within the buffered corridor.
func (l *Polyline) Contains(p orb.Point, buffer float64) bool {
	_, off := l.ProjectPoint(p)
	return math.Abs(off) <= buffer
}

// segmentAt returns the index i such that cum[i-1] <= chainage <= cum[i],
// skipping zero-length segments.
func (l *Polyline) segmentAt(chainage float64) int {
	for i := 1; i < len(l.cum); i++ {
		if chainage <= l.cum[i] && l.cum[i] > l.cum[i-1] {
			return i
		}
	}
	return len(l.cum) - 1
}

// ApparentDip is the dip of a plane as seen in a vertical section of the
// given azimuth: atan(tan(dip) * sin(azimuth - strike)), all degrees,
// clamped to [0, 90]. The section shows the true dip only when it is
// perpendicular to strike and a flat trace when parallel to it.
func ApparentDip(trueDip, strike, sectionAzimuth float64) float64 {
	if trueDip <= 0 {
		return 0
	}
	if trueDip >= 90 {
		return 90
	}
	rad := math.Pi / 180
	a := math.Atan(math.Tan(trueDip*rad)*math.Sin((sectionAzimuth-strike)*rad)) / rad
	a = math.Abs(a)
	if a > 90 {
		a = 90
	}
	return a
}

// SegmentIntersection intersects segments a1-a2 and b1-b2 and returns the
// parameter t in [0,1] along a1-a2. Collinear overlaps report no
// intersection; callers that care about grazing contacts handle them via
// midpoint containment instead.
func SegmentIntersection(a1, a2, b1, b2 orb.Point) (t float64, ok bool) {
	rx, ry := a2[0]-a1[0], a2[1]-a1[1]
	sx, sy := b2[0]-b1[0], b2[1]-b1[1]
	den := rx*sy - ry*sx
	if den == 0 {
		return 0, false
	}
	qx, qy := b1[0]-a1[0], b1[1]-a1[1]
	t = (qx*sy - qy*sx) / den
	u := (qx*ry - qy*rx) / den
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// RingIntersections returns the chainages at which the polyline crosses the
// ring's edges, unsorted and possibly with duplicates at shared vertices.
func (l *Polyline) RingIntersections(ring orb.Ring) []float64 {
	var out []float64
	for i := 1; i < len(l.pts); i++ {
		a, b := l.pts[i-1], l.pts[i]
		segLen := l.cum[i] - l.cum[i-1]
		if segLen == 0 {
			continue
		}
		for j := 1; j < len(ring); j++ {
			if t, ok := SegmentIntersection(a, b, ring[j-1], ring[j]); ok {
				out = append(out, l.cum[i-1]+t*segLen)
			}
		}
	}
	return out
}

func dist(a, b orb.Point) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}
