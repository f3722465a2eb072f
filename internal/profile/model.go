// Package profile defines the section-space data model shared by the
// projectors, the cache and the orchestrator.
package profile

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
)

// RasterRef and LayerRef name datasets registered with the engine host.
// The engine never opens files itself; refs are resolved by the caller.
type (
	RasterRef string
	LayerRef  string
)

// GeologyOptions selects the outcrop polygon layer and the attribute that
// labels each unit.
type GeologyOptions struct {
	Layer     LayerRef `json:"layer"`
	NameField string   `json:"name_field"`
}

// StructureOptions selects the structural measurement point layer.
type StructureOptions struct {
	Layer        LayerRef `json:"layer"`
	DipField     string   `json:"dip_field"`
	StrikeField  string   `json:"strike_field"`
	Buffer       float64  `json:"buffer"`
	DipLineScale float64  `json:"dip_line_scale"`
}

// DrillholeOptions selects the collar, survey and interval layers plus the
// attribute fields that tie them together.
type DrillholeOptions struct {
	Collars   LayerRef `json:"collars"`
	Survey    LayerRef `json:"survey"`
	Intervals LayerRef `json:"intervals"`

	HoleIDField      string `json:"hole_id_field"`
	ElevationField   string `json:"elevation_field"`
	DepthField       string `json:"depth_field"`
	AzimuthField     string `json:"azimuth_field"`
	InclinationField string `json:"inclination_field"`
	FromField        string `json:"from_field"`
	ToField          string `json:"to_field"`
	LithologyField   string `json:"lithology_field"`

	Buffer float64 `json:"buffer"`
}

// Configuration captures every input that affects a computed profile. Two
// configurations with equal fields produce the same fingerprint and hit the
// same cache entry. The zero value is not valid; see Validate.
type Configuration struct {
	Raster RasterRef `json:"raster"`
	Band   int       `json:"band"`
	// Step is the sampling interval along the section in map units.
	// Zero means one raster cell width.
	Step float64 `json:"step"`

	HorizontalScale      float64 `json:"horizontal_scale"`
	VerticalExaggeration float64 `json:"vertical_exaggeration"`

	Line orb.LineString `json:"line"`

	Geology    *GeologyOptions   `json:"geology,omitempty"`
	Structure  *StructureOptions `json:"structure,omitempty"`
	Drillholes *DrillholeOptions `json:"drillholes,omitempty"`

	// MaxPreviewPoints caps the rendered point count. Zero means Auto:
	// derive the target from ViewportWidthPx.
	MaxPreviewPoints int  `json:"max_preview_points"`
	AdaptiveSampling bool `json:"adaptive_sampling"`
	ViewportWidthPx  int  `json:"viewport_width_px"`
}

// Validate reports configuration errors before any computation starts.
// These never enter the cache.
func (c *Configuration) Validate() error {
	if c.Raster == "" {
		return errors.New("configuration: raster reference is required")
	}
	if c.Band < 1 {
		return errors.New("configuration: band is 1-based and must be at least 1")
	}
	if len(c.Line) < 2 {
		return errors.New("configuration: section line needs at least 2 vertices")
	}
	if c.Step < 0 {
		return errors.New("configuration: step must not be negative")
	}
	if c.Geology != nil && c.Geology.NameField == "" {
		return errors.New("configuration: geology name field is required")
	}
	if c.Structure != nil {
		if c.Structure.DipField == "" || c.Structure.StrikeField == "" {
			return errors.New("configuration: structure dip and strike fields are required")
		}
		if c.Structure.Buffer <= 0 {
			return errors.New("configuration: structure buffer must be positive")
		}
	}
	if d := c.Drillholes; d != nil {
		if d.Collars == "" || d.Survey == "" {
			return errors.New("configuration: drillhole collar and survey layers are required")
		}
		if d.HoleIDField == "" {
			return errors.New("configuration: drillhole hole id field is required")
		}
		if d.Buffer <= 0 {
			return errors.New("configuration: drillhole buffer must be positive")
		}
	}
	return nil
}

// TopoPoint is one elevation sample in section space.
type TopoPoint struct {
	Chainage  float64 `json:"chainage"`
	Elevation float64 `json:"elevation"`
}

// GeologySegment is a run of chainage covered by one outcrop unit.
type GeologySegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Unit  string  `json:"unit"`
}

// StructureProjection is a dip/strike measurement projected onto the section.
type StructureProjection struct {
	Chainage    float64 `json:"chainage"`
	TrueDip     float64 `json:"true_dip"`
	Strike      float64 `json:"strike"`
	ApparentDip float64 `json:"apparent_dip"`
	Offset      float64 `json:"offset"`
}

// TracePoint is one drillhole trace vertex in section space. Depth is the
// downhole distance from the collar.
type TracePoint struct {
	Chainage  float64 `json:"chainage"`
	Elevation float64 `json:"elevation"`
	Depth     float64 `json:"depth"`
}

// Interval is a downhole attribute range carried through for the renderer.
type Interval struct {
	From      float64 `json:"from"`
	To        float64 `json:"to"`
	Lithology string  `json:"lithology"`
}

// DrillholeTrace is one hole's projected path plus its interval tags.
type DrillholeTrace struct {
	HoleID    string       `json:"hole_id"`
	Points    []TracePoint `json:"points"`
	Intervals []Interval   `json:"intervals,omitempty"`
}

// Range is the section-space bounding box of a result.
type Range struct {
	ChainageMin  float64 `json:"chainage_min"`
	ChainageMax  float64 `json:"chainage_max"`
	ElevationMin float64 `json:"elevation_min"`
	ElevationMax float64 `json:"elevation_max"`
}

// Stats records per-stage timings and soft-error counts for one computation.
type Stats struct {
	TopoDuration      time.Duration `json:"topo_duration_ns"`
	GeologyDuration   time.Duration `json:"geology_duration_ns"`
	StructureDuration time.Duration `json:"structure_duration_ns"`
	DrillholeDuration time.Duration `json:"drillhole_duration_ns"`
	TotalDuration     time.Duration `json:"total_duration_ns"`

	TopoPoints      int `json:"topo_points"`
	GeologySegments int `json:"geology_segments"`
	StructurePoints int `json:"structure_points"`
	DrillholeTraces int `json:"drillhole_traces"`

	SkippedStructures int `json:"skipped_structures"`
	SkippedSurveyRows int `json:"skipped_survey_rows"`
	SkippedIntervals  int `json:"skipped_intervals"`

	Diagnostics []string `json:"diagnostics,omitempty"`
}

// Result is a fully computed profile. It is immutable once published: the
// cache and every reader share the same pointer, so nothing downstream may
// mutate the slices.
type Result struct {
	Topo       []TopoPoint           `json:"topo"`
	Geology    []GeologySegment      `json:"geology"`
	Structures []StructureProjection `json:"structures"`
	Drillholes []DrillholeTrace      `json:"drillholes"`
	Stats      Stats                 `json:"stats"`
	Range      Range                 `json:"range"`
}
