package projector

import (
	"context"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/strataview/strataview/internal/geom"
	"github.com/strataview/strataview/internal/layer"
	"github.com/strataview/strataview/internal/profile"
)

// Structure projects dip/strike measurement points that fall within the
// section corridor, converting true dip to the apparent dip seen on the
// section at each point's chainage.
type Structure struct {
	Line        *geom.Polyline
	DipField    string
	StrikeField string
	Buffer      float64
}

// Project returns the in-corridor measurements ordered by chainage and the
// number of features skipped for unparsable dip or strike values. An empty
// layer yields layer.ErrNoFeatures (soft).
func (s *Structure) Project(ctx context.Context, lyr layer.Layer, progress ProgressFunc) ([]profile.StructureProjection, int, error) {
	feats := lyr.Features()
	if len(feats) == 0 {
		return nil, 0, layer.ErrNoFeatures
	}

	var out []profile.StructureProjection
	skipped := 0
	for i, f := range feats {
		if err := cancelled(ctx); err != nil {
			return nil, skipped, err
		}
		report(progress, i, len(feats))

		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		chainage, offset := s.Line.ProjectPoint(pt)
		if math.Abs(offset) > s.Buffer {
			// outside the corridor, dropped silently
			continue
		}
		dip, okDip := layer.Float(f.Attrs, s.DipField)
		strike, okStrike := layer.Float(f.Attrs, s.StrikeField)
		if !okDip || !okStrike {
			skipped++
			continue
		}
		out = append(out, profile.StructureProjection{
			Chainage:    chainage,
			TrueDip:     dip,
			Strike:      strike,
			ApparentDip: geom.ApparentDip(dip, strike, s.Line.AzimuthAt(chainage)),
			Offset:      offset,
		})
	}
	report(progress, len(feats), len(feats))

	sort.Slice(out, func(i, j int) bool { return out[i].Chainage < out[j].Chainage })
	return out, skipped, nil
}
