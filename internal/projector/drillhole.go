package projector

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/strataview/strataview/internal/geom"
	"github.com/strataview/strataview/internal/layer"
	"github.com/strataview/strataview/internal/profile"
)

// Drillhole desurveys collar + survey layers into 3D hole traces and
// projects every trace vertex onto the section. Stations are interpolated
// with the straight-segment (tangent) method: each station's azimuth and
// inclination hold until the next station. Inclination is degrees below
// horizontal, positive down.
type Drillhole struct {
	Line *geom.Polyline
	Opts profile.DrillholeOptions
}

// DrillholeDiag counts soft data errors encountered while walking the
// survey and interval tables.
type DrillholeDiag struct {
	SkippedSurveyRows int
	SkippedIntervals  int
	Notes             []string
}

type station struct {
	depth, azimuth, inclination float64
}

// Project returns one trace per hole that has at least one vertex within
// the corridor, ordered by hole id. Holes entirely outside the buffer are
// omitted; holes without survey rows are skipped with a note.
func (d *Drillhole) Project(ctx context.Context, collars, survey, intervals layer.Layer, progress ProgressFunc) ([]profile.DrillholeTrace, DrillholeDiag, error) {
	var diag DrillholeDiag

	feats := collars.Features()
	if len(feats) == 0 {
		return nil, diag, layer.ErrNoFeatures
	}

	stations := d.stationsByHole(survey, &diag)
	tags := d.intervalsByHole(intervals, &diag)

	var out []profile.DrillholeTrace
	for i, f := range feats {
		if err := cancelled(ctx); err != nil {
			return nil, diag, err
		}
		report(progress, i, len(feats))

		holeID, ok := layer.String(f.Attrs, d.Opts.HoleIDField)
		if !ok {
			diag.Notes = append(diag.Notes, "collar without hole id skipped")
			continue
		}
		collar, ok := f.Geometry.(orb.Point)
		if !ok {
			diag.Notes = append(diag.Notes, fmt.Sprintf("hole %s: collar has no point geometry", holeID))
			continue
		}
		elev := 0.0
		if d.Opts.ElevationField != "" {
			if v, ok := layer.Float(f.Attrs, d.Opts.ElevationField); ok {
				elev = v
			}
		}
		st := stations[holeID]
		if len(st) == 0 {
			diag.Notes = append(diag.Notes, fmt.Sprintf("hole %s: no survey stations", holeID))
			continue
		}

		trace := d.projectTrace(holeID, collar, elev, st)
		if len(trace.Points) == 0 {
			continue
		}
		trace.Intervals = tags[holeID]
		out = append(out, trace)
	}
	report(progress, len(feats), len(feats))

	sort.Slice(out, func(i, j int) bool { return out[i].HoleID < out[j].HoleID })
	return out, diag, nil
}

// projectTrace desurveys one hole and keeps the in-corridor vertices.
func (d *Drillhole) projectTrace(holeID string, collar orb.Point, collarElev float64, st []station) profile.DrillholeTrace {
	x, y, z := collar[0], collar[1], collarElev
	depth := 0.0

	keep := func(px, py, pz, pd float64) (profile.TracePoint, bool) {
		chainage, offset := d.Line.ProjectPoint(orb.Point{px, py})
		if math.Abs(offset) > d.Opts.Buffer {
			return profile.TracePoint{}, false
		}
		return profile.TracePoint{Chainage: chainage, Elevation: pz, Depth: pd}, true
	}

	trace := profile.DrillholeTrace{HoleID: holeID}
	if p, ok := keep(x, y, z, 0); ok {
		trace.Points = append(trace.Points, p)
	}

	// each segment follows the attitude of its upper station; the collar
	// segment borrows the first station's attitude
	for k, s := range st {
		delta := s.depth - depth
		if delta <= 0 {
			continue
		}
		att := st[0]
		if k > 0 {
			att = st[k-1]
		}
		dx, dy, dz := direction(att)
		x += dx * delta
		y += dy * delta
		z += dz * delta
		depth = s.depth
		if p, ok := keep(x, y, z, depth); ok {
			trace.Points = append(trace.Points, p)
		}
	}
	return trace
}

// direction converts a station attitude to a unit vector (east, north, up).
func direction(s station) (dx, dy, dz float64) {
	rad := math.Pi / 180
	horiz := math.Cos(s.inclination * rad)
	return math.Sin(s.azimuth*rad) * horiz,
		math.Cos(s.azimuth*rad) * horiz,
		-math.Sin(s.inclination * rad)
}

func (d *Drillhole) stationsByHole(survey layer.Layer, diag *DrillholeDiag) map[string][]station {
	out := map[string][]station{}
	if survey == nil {
		return out
	}
	for _, f := range survey.Features() {
		holeID, okID := layer.String(f.Attrs, d.Opts.HoleIDField)
		depth, okD := layer.Float(f.Attrs, d.Opts.DepthField)
		az, okA := layer.Float(f.Attrs, d.Opts.AzimuthField)
		incl, okI := layer.Float(f.Attrs, d.Opts.InclinationField)
		if !okID || !okD || !okA || !okI || depth < 0 {
			diag.SkippedSurveyRows++
			continue
		}
		out[holeID] = append(out[holeID], station{depth: depth, azimuth: az, inclination: incl})
	}
	for id := range out {
		st := out[id]
		sort.Slice(st, func(i, j int) bool { return st[i].depth < st[j].depth })
		out[id] = st
	}
	return out
}

func (d *Drillhole) intervalsByHole(intervals layer.Layer, diag *DrillholeDiag) map[string][]profile.Interval {
	out := map[string][]profile.Interval{}
	if intervals == nil {
		return out
	}
	for _, f := range intervals.Features() {
		holeID, okID := layer.String(f.Attrs, d.Opts.HoleIDField)
		from, okF := layer.Float(f.Attrs, d.Opts.FromField)
		to, okT := layer.Float(f.Attrs, d.Opts.ToField)
		if !okID || !okF || !okT || to < from {
			diag.SkippedIntervals++
			continue
		}
		lith, _ := layer.String(f.Attrs, d.Opts.LithologyField)
		out[holeID] = append(out[holeID], profile.Interval{From: from, To: to, Lithology: lith})
	}
	for id := range out {
		iv := out[id]
		sort.Slice(iv, func(i, j int) bool { return iv[i].From < iv[j].From })
		out[id] = iv
	}
	return out
}
