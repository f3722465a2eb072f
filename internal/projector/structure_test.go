package projector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/strataview/strataview/internal/layer"
	"github.com/strataview/strataview/internal/layer/memlayer"
)

func measurement(x, y float64, dip, strike any) layer.Feature {
	return layer.Feature{
		Geometry: orb.Point{x, y},
		Attrs:    map[string]any{"dip": dip, "strike": strike},
	}
}

func TestStructure_ProjectsInBufferPoints(t *testing.T) {
	s := &Structure{
		// eastward section, azimuth 90
		Line:        sectionLine(t, orb.LineString{{0, 0}, {10, 0}}),
		DipField:    "dip",
		StrikeField: "strike",
		Buffer:      5,
	}
	lyr := memlayer.New(measurement(5, 3, 45.0, 0.0))
	out, skipped, err := s.Project(context.Background(), lyr, nil)
	if err != nil || skipped != 0 {
		t.Fatalf("err=%v skipped=%d", err, skipped)
	}
	if len(out) != 1 {
		t.Fatalf("got %d projections, want 1", len(out))
	}
	p := out[0]
	if math.Abs(p.Chainage-5) > 1e-9 || math.Abs(p.Offset-3) > 1e-9 {
		t.Fatalf("chainage=%v offset=%v, want 5 and 3", p.Chainage, p.Offset)
	}
	// north-striking plane seen on an east-west section shows its true dip
	if math.Abs(p.ApparentDip-45) > 1e-6 {
		t.Fatalf("apparent dip %v, want 45", p.ApparentDip)
	}
}

func TestStructure_SectionParallelToStrikeFlattensDip(t *testing.T) {
	s := &Structure{
		// northward section, azimuth 0
		Line:        sectionLine(t, orb.LineString{{0, 0}, {0, 10}}),
		DipField:    "dip",
		StrikeField: "strike",
		Buffer:      5,
	}
	lyr := memlayer.New(measurement(1, 5, 45.0, 0.0))
	out, _, err := s.Project(context.Background(), lyr, nil)
	if err != nil || len(out) != 1 {
		t.Fatalf("err=%v n=%d", err, len(out))
	}
	if math.Abs(out[0].ApparentDip) > 1e-6 {
		t.Fatalf("apparent dip %v, want 0 on a strike-parallel section", out[0].ApparentDip)
	}
}

func TestStructure_OutsideBufferDroppedSilently(t *testing.T) {
	s := &Structure{
		Line:        sectionLine(t, orb.LineString{{0, 0}, {10, 0}}),
		DipField:    "dip",
		StrikeField: "strike",
		Buffer:      2,
	}
	lyr := memlayer.New(
		measurement(5, 3, 45.0, 0.0),  // offset 3 > buffer 2
		measurement(5, -1, 30.0, 90.0), // offset 1, kept
	)
	out, skipped, err := s.Project(context.Background(), lyr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 {
		t.Fatalf("out-of-buffer drops are silent, not skips: skipped=%d", skipped)
	}
	if len(out) != 1 || math.Abs(out[0].TrueDip-30) > 1e-9 {
		t.Fatalf("got %+v, want only the in-buffer point", out)
	}
}

func TestStructure_NonNumericAttributesCountedNotFatal(t *testing.T) {
	s := &Structure{
		Line:        sectionLine(t, orb.LineString{{0, 0}, {10, 0}}),
		DipField:    "dip",
		StrikeField: "strike",
		Buffer:      5,
	}
	lyr := memlayer.New(
		measurement(2, 0, "steep", 0.0),
		measurement(4, 0, 45.0, nil),
		measurement(6, 0, 45.0, 90.0),
	)
	out, skipped, err := s.Project(context.Background(), lyr, nil)
	if err != nil {
		t.Fatalf("soft data errors must not fail the projector: %v", err)
	}
	if skipped != 2 {
		t.Fatalf("skipped=%d, want 2", skipped)
	}
	if len(out) != 1 {
		t.Fatalf("the parsable feature must survive, got %d", len(out))
	}
}

func TestStructure_OutputOrderedByChainage(t *testing.T) {
	s := &Structure{
		Line:        sectionLine(t, orb.LineString{{0, 0}, {10, 0}}),
		DipField:    "dip",
		StrikeField: "strike",
		Buffer:      5,
	}
	lyr := memlayer.New(
		measurement(8, 0, 10.0, 0.0),
		measurement(2, 0, 20.0, 0.0),
		measurement(5, 0, 30.0, 0.0),
	)
	out, _, err := s.Project(context.Background(), lyr, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(out); i++ {
		if out[i].Chainage < out[i-1].Chainage {
			t.Fatalf("projections not ordered by chainage: %+v", out)
		}
	}
}

func TestStructure_EmptyLayerIsSoftNoFeatures(t *testing.T) {
	s := &Structure{
		Line:        sectionLine(t, orb.LineString{{0, 0}, {10, 0}}),
		DipField:    "dip",
		StrikeField: "strike",
		Buffer:      5,
	}
	if _, _, err := s.Project(context.Background(), memlayer.New(), nil); !errors.Is(err, layer.ErrNoFeatures) {
		t.Fatalf("got %v, want ErrNoFeatures", err)
	}
}
