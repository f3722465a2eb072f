// Package raster defines elevation raster access and sampling along a
// section line. Implementations live in subpackages.
package raster

import (
	"errors"
	"fmt"

	"github.com/strataview/strataview/internal/geom"
	"github.com/strataview/strataview/internal/profile"
)

// ErrInvalidRaster marks an unusable raster handle (bad band, broken file).
var ErrInvalidRaster = errors.New("invalid raster")

// Source is the raster access collaborator. Bands are 1-based. Sample
// returns ok=false for nodata cells and points outside the extent.
type Source interface {
	Sample(x, y float64, band int) (float64, bool)
	Resolution() float64
	Bands() int
}

// SampleAlong walks the section at the given chainage step and samples the
// raster at every stop, the last vertex included. Nodata and out-of-extent
// stops are omitted, so chainage gaps in the output are meaningful. A step
// of zero defaults to one raster cell width.
func SampleAlong(src Source, band int, line *geom.Polyline, step float64) ([]profile.TopoPoint, error) {
	if band < 1 || band > src.Bands() {
		return nil, fmt.Errorf("%w: band %d of %d", ErrInvalidRaster, band, src.Bands())
	}
	if step <= 0 {
		step = src.Resolution()
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: non-positive cell width", ErrInvalidRaster)
	}

	total := line.Length()
	out := make([]profile.TopoPoint, 0, int(total/step)+2)
	for ch := 0.0; ch < total; ch += step {
		appendSample(src, band, line, ch, &out)
	}
	appendSample(src, band, line, total, &out)
	return out, nil
}

func appendSample(src Source, band int, line *geom.Polyline, ch float64, out *[]profile.TopoPoint) {
	p := line.PointAt(ch)
	if v, ok := src.Sample(p[0], p[1], band); ok {
		*out = append(*out, profile.TopoPoint{Chainage: ch, Elevation: v})
	}
}
