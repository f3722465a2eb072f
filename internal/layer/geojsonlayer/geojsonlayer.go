// Package geojsonlayer loads vector layers from GeoJSON feature collections.
// Tabular drillhole records (survey stations, intervals) are carried as
// features with null geometry.
package geojsonlayer

import (
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/strataview/strataview/internal/layer"
	"github.com/strataview/strataview/internal/layer/memlayer"
)

// Load reads a FeatureCollection from disk. Feature order in the file is
// preserved; the geology projector's overlap policy depends on it.
func Load(path string) (layer.Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layer: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%s: parse feature collection: %w", path, err)
	}

	l := memlayer.New()
	for _, f := range fc.Features {
		l.Append(layer.Feature{
			Geometry: f.Geometry,
			Attrs:    map[string]any(f.Properties),
		})
	}
	return l, nil
}
