package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/strataview/strataview/internal/layer"
	"github.com/strataview/strataview/internal/layer/memlayer"
	"github.com/strataview/strataview/internal/profile"
	"github.com/strataview/strataview/internal/raster"
	"github.com/strataview/strataview/internal/raster/memgrid"
)

func testOrchestrator() *Orchestrator {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// flatGrid covers x in [-1,101], y in [-50,50] with elevation 100 + x/10.
func flatGrid() *memgrid.Grid {
	g := memgrid.New(-1, -50, 1, 102, 100)
	g.Fill(func(x, _ float64) float64 { return 100 + x/10 })
	return g
}

func baseConfig() profile.Configuration {
	return profile.Configuration{
		Raster: "dem",
		Band:   1,
		Step:   5,
		Line:   orb.LineString{{0, 0}, {100, 0}},
	}
}

func geologyFeature(name string, minX, maxX float64) layer.Feature {
	ring := orb.Ring{
		{minX, -20}, {maxX, -20}, {maxX, 20}, {minX, 20}, {minX, -20},
	}
	return layer.Feature{
		Geometry: orb.Polygon{ring},
		Attrs:    map[string]any{"unit": name},
	}
}

func structureFeature(x, y, dip, strike float64) layer.Feature {
	return layer.Feature{
		Geometry: orb.Point{x, y},
		Attrs:    map[string]any{"dip": dip, "strike": strike},
	}
}

func fullSources() Sources {
	return Sources{
		Raster:  flatGrid(),
		Geology: memlayer.New(geologyFeature("granite", 0, 60), geologyFeature("schist", 40, 100)),
		Structure: memlayer.New(
			structureFeature(30, 5, 45, 0),
			structureFeature(70, 200, 30, 90), // outside buffer
		),
		Collars: memlayer.New(layer.Feature{
			Geometry: orb.Point{50, 5},
			Attrs:    map[string]any{"hole_id": "H1", "z": 110},
		}),
		Survey: memlayer.New(layer.Feature{
			Attrs: map[string]any{"hole_id": "H1", "depth": 40.0, "azimuth": 0.0, "inclination": 90.0},
		}),
		Intervals: memlayer.New(layer.Feature{
			Attrs: map[string]any{"hole_id": "H1", "from": 0.0, "to": 25.0, "lith": "ore"},
		}),
	}
}

func fullConfig() profile.Configuration {
	cfg := baseConfig()
	cfg.Geology = &profile.GeologyOptions{Layer: "geo", NameField: "unit"}
	cfg.Structure = &profile.StructureOptions{
		Layer: "struct", DipField: "dip", StrikeField: "strike", Buffer: 25,
	}
	cfg.Drillholes = &profile.DrillholeOptions{
		Collars: "collars", Survey: "survey", Intervals: "intervals",
		HoleIDField: "hole_id", ElevationField: "z",
		DepthField: "depth", AzimuthField: "azimuth", InclinationField: "inclination",
		FromField: "from", ToField: "to", LithologyField: "lith",
		Buffer: 25,
	}
	return cfg
}

func TestCompute_AllLayersAssembled(t *testing.T) {
	o := testOrchestrator()
	res, err := o.Compute(context.Background(), fullConfig(), fullSources(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Topo) == 0 {
		t.Fatalf("no topo points")
	}
	if res.Topo[0].Chainage != 0 || res.Topo[len(res.Topo)-1].Chainage != 100 {
		t.Fatalf("topo must span the full section: %+v", res.Topo)
	}
	if len(res.Geology) != 2 {
		t.Fatalf("geology segments %+v, want 2", res.Geology)
	}
	if res.Geology[0].Unit != "granite" || res.Geology[1].Unit != "schist" {
		t.Fatalf("geology %+v, want granite then schist", res.Geology)
	}
	if len(res.Structures) != 1 || math.Abs(res.Structures[0].Chainage-30) > 1e-9 {
		t.Fatalf("structures %+v, want one at chainage 30", res.Structures)
	}
	if len(res.Drillholes) != 1 || res.Drillholes[0].HoleID != "H1" {
		t.Fatalf("drillholes %+v, want H1", res.Drillholes)
	}
	if len(res.Drillholes[0].Intervals) != 1 {
		t.Fatalf("intervals not carried: %+v", res.Drillholes[0])
	}

	st := res.Stats
	if st.TopoPoints != len(res.Topo) || st.GeologySegments != 2 ||
		st.StructurePoints != 1 || st.DrillholeTraces != 1 {
		t.Fatalf("stats counts off: %+v", st)
	}
	if st.TotalDuration < 0 {
		t.Fatalf("negative total duration")
	}

	if res.Range.ChainageMin != 0 || res.Range.ChainageMax != 100 {
		t.Fatalf("chainage range %+v", res.Range)
	}
	// the drillhole toe at elevation 70 is below every topo sample
	if math.Abs(res.Range.ElevationMin-70) > 1e-9 {
		t.Fatalf("elevation min %v, want the drillhole toe at 70", res.Range.ElevationMin)
	}
}

func TestStart_CompletedStateAndTerminalChannels(t *testing.T) {
	o := testOrchestrator()
	j := o.Start(context.Background(), baseConfig(), Sources{Raster: flatGrid()})
	res, err := j.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatalf("completed job must carry a result")
	}
	if j.State() != StateCompleted {
		t.Fatalf("state %v, want completed", j.State())
	}
	// progress channel is closed once the job is terminal
	for range j.Progress() {
	}
}

func TestStart_DegenerateLineFails(t *testing.T) {
	o := testOrchestrator()
	cfg := baseConfig()
	cfg.Line = orb.LineString{{5, 5}}
	j := o.Start(context.Background(), cfg, Sources{Raster: flatGrid()})
	if _, err := j.Wait(context.Background()); err == nil {
		t.Fatalf("degenerate line must fail")
	}
	if j.State() != StateFailed {
		t.Fatalf("state %v, want failed", j.State())
	}
}

func TestStart_TaskErrorFailsFast(t *testing.T) {
	o := testOrchestrator()
	cfg := fullConfig()
	cfg.Band = 2 // the grid is single-band
	j := o.Start(context.Background(), cfg, fullSources())
	res, err := j.Wait(context.Background())
	if !errors.Is(err, raster.ErrInvalidRaster) {
		t.Fatalf("got %v, want the raster error", err)
	}
	if res != nil {
		t.Fatalf("failed job must not expose a partial result")
	}
	if j.State() != StateFailed {
		t.Fatalf("state %v, want failed", j.State())
	}
	if !strings.Contains(err.Error(), "topo") {
		t.Fatalf("error must name the failing stage: %v", err)
	}
}

type gatedLayer struct {
	release <-chan struct{}
	feats   []layer.Feature
}

func (g *gatedLayer) Features() []layer.Feature {
	<-g.release
	return g.feats
}

func TestStart_CallerCancellationWins(t *testing.T) {
	o := testOrchestrator()
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	src := fullSources()
	src.Geology = &gatedLayer{release: release, feats: []layer.Feature{geologyFeature("granite", 0, 60)}}

	j := o.Start(ctx, fullConfig(), src)
	cancel()
	close(release)

	res, err := j.Wait(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if res != nil {
		t.Fatalf("cancelled job must not expose a partial result")
	}
	if j.State() != StateCancelled {
		t.Fatalf("state %v, want cancelled, not failed", j.State())
	}
}

func TestCompute_EmptyOptionalLayerIsSoft(t *testing.T) {
	o := testOrchestrator()
	cfg := baseConfig()
	cfg.Geology = &profile.GeologyOptions{Layer: "geo", NameField: "unit"}
	src := Sources{Raster: flatGrid(), Geology: memlayer.New()}

	res, err := o.Compute(context.Background(), cfg, src, nil)
	if err != nil {
		t.Fatalf("empty optional layer must not be fatal: %v", err)
	}
	if len(res.Geology) != 0 {
		t.Fatalf("geology %+v, want empty", res.Geology)
	}
	if len(res.Stats.Diagnostics) == 0 {
		t.Fatalf("expected a diagnostic for the empty layer")
	}
}

func TestCompute_ProgressIsMonotone(t *testing.T) {
	o := testOrchestrator()
	var reports []Progress
	res, err := o.Compute(context.Background(), fullConfig(), fullSources(), func(p Progress) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || len(reports) == 0 {
		t.Fatalf("expected progress reports")
	}
	last := -1.0
	for _, p := range reports {
		if p.Percent < last {
			t.Fatalf("progress went backwards: %v after %v", p.Percent, last)
		}
		if p.Percent > 100+1e-9 {
			t.Fatalf("progress above 100: %v", p.Percent)
		}
		last = p.Percent
	}
}

func TestCompute_PreviewBudgetApplied(t *testing.T) {
	o := testOrchestrator()
	cfg := baseConfig()
	cfg.Step = 0.05 // ~2000 samples over 100 m
	cfg.MaxPreviewPoints = 100

	res, err := o.Compute(context.Background(), cfg, Sources{Raster: flatGrid()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Topo) > 100 {
		t.Fatalf("%d topo points, want at most the preview budget", len(res.Topo))
	}
	first, last := res.Topo[0], res.Topo[len(res.Topo)-1]
	if first.Chainage != 0 || math.Abs(last.Chainage-100) > 1e-9 {
		t.Fatalf("endpoints must survive reduction: %v .. %v", first.Chainage, last.Chainage)
	}
}

func TestProgressAggregator_RenormalizesDisabledStages(t *testing.T) {
	out := make(chan Progress, 64)
	cfg := baseConfig() // topo only
	agg := newProgressAggregator(DefaultWeights, cfg, out)
	agg.set("topo", 1)
	var final Progress
	for len(out) > 0 {
		final = <-out
	}
	if math.Abs(final.Percent-100) > 1e-9 {
		t.Fatalf("topo-only job at full topo fraction must report 100, got %v", final.Percent)
	}
}
