// Package orchestrator schedules profile computation off the interactive
// caller: it fans the raster sampler and the three layer projectors out as
// concurrent tasks, aggregates weighted progress, and assembles the
// immutable result. A fatal error in any task cancels the siblings; the
// whole request is all-or-nothing.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strataview/strataview/internal/geom"
	"github.com/strataview/strataview/internal/layer"
	"github.com/strataview/strataview/internal/lod"
	"github.com/strataview/strataview/internal/observability"
	"github.com/strataview/strataview/internal/profile"
	"github.com/strataview/strataview/internal/projector"
	"github.com/strataview/strataview/internal/raster"
)

// State is the lifecycle of one computation request.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Progress is one aggregated progress report. Percent is monotone per job.
type Progress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
}

// Weights set the contribution of each stage to the aggregate percentage.
// They are a tuning parameter, not a correctness invariant; stages disabled
// by the configuration are renormalized away.
type Weights struct {
	Topo      float64
	Geology   float64
	Structure float64
	Drillhole float64
}

var DefaultWeights = Weights{Topo: 0.25, Geology: 0.35, Structure: 0.20, Drillhole: 0.20}

// Sources are the resolved data handles for one computation. Optional
// layers are nil when the configuration does not select them.
type Sources struct {
	Raster    raster.Source
	Geology   layer.Layer
	Structure layer.Layer
	Collars   layer.Layer
	Survey    layer.Layer
	Intervals layer.Layer
}

type Orchestrator struct {
	logger  *slog.Logger
	weights Weights
	now     func() time.Time // for tests
}

func New(logger *slog.Logger) *Orchestrator {
	return &Orchestrator{logger: logger, weights: DefaultWeights, now: time.Now}
}

// Job is one in-flight computation. Progress is closed when the job leaves
// the Running state; Wait never returns a partially populated result.
type Job struct {
	state    atomic.Int32
	progress chan Progress
	done     chan struct{}
	result   *profile.Result
	err      error
}

func (j *Job) State() State              { return State(j.state.Load()) }
func (j *Job) Progress() <-chan Progress { return j.progress }

// Wait blocks until the job finishes or the caller's context is done.
func (j *Job) Wait(ctx context.Context) (*profile.Result, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start launches a computation on a worker goroutine and returns
// immediately. The caller's context is the only termination mechanism; the
// engine imposes no timeout of its own.
func (o *Orchestrator) Start(ctx context.Context, cfg profile.Configuration, src Sources) *Job {
	j := &Job{
		progress: make(chan Progress, 16),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(j.done)
		defer close(j.progress)
		j.result, j.err = o.run(ctx, cfg, src, j)
	}()
	return j
}

// Compute is the synchronous form used by the cache's compute callback.
func (o *Orchestrator) Compute(ctx context.Context, cfg profile.Configuration, src Sources, sink func(Progress)) (*profile.Result, error) {
	j := o.Start(ctx, cfg, src)
	if sink != nil {
		for p := range j.progress {
			sink(p)
		}
	}
	return j.Wait(ctx)
}

type stageResult struct {
	topo       []profile.TopoPoint
	geology    []profile.GeologySegment
	structures []profile.StructureProjection
	drillholes []profile.DrillholeTrace

	mu    sync.Mutex
	stats profile.Stats
}

func (r *stageResult) diag(format string, args ...any) {
	r.mu.Lock()
	r.stats.Diagnostics = append(r.stats.Diagnostics, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, cfg profile.Configuration, src Sources, j *Job) (*profile.Result, error) {
	start := o.now()
	j.state.Store(int32(StateRunning))

	line, err := geom.NewPolyline(cfg.Line)
	if err != nil {
		j.state.Store(int32(StateFailed))
		observability.ObserveComputation("failed", 0)
		return nil, err
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	agg := newProgressAggregator(o.weights, cfg, j.progress)
	res := &stageResult{}

	type task struct {
		name string
		fn   func(context.Context) error
	}
	tasks := []task{{name: "topo", fn: func(tctx context.Context) error {
		t0 := o.now()
		agg.set("topo", 0)
		pts, err := raster.SampleAlong(src.Raster, cfg.Band, line, cfg.Step)
		if err != nil {
			return err
		}
		res.topo = pts
		res.mu.Lock()
		res.stats.TopoDuration = o.now().Sub(t0)
		res.mu.Unlock()
		agg.set("topo", 1)
		return nil
	}}}

	if cfg.Geology != nil {
		tasks = append(tasks, task{name: "geology", fn: func(tctx context.Context) error {
			t0 := o.now()
			p := &projector.Geology{Line: line, NameField: cfg.Geology.NameField}
			segs, err := p.Project(tctx, src.Geology, agg.stageFunc("geology"))
			if errors.Is(err, layer.ErrNoFeatures) {
				res.diag("geology layer %s has no features", cfg.Geology.Layer)
				err = nil
			}
			if err != nil {
				return err
			}
			res.geology = segs
			res.mu.Lock()
			res.stats.GeologyDuration = o.now().Sub(t0)
			res.mu.Unlock()
			agg.set("geology", 1)
			return nil
		}})
	}

	if cfg.Structure != nil {
		tasks = append(tasks, task{name: "structure", fn: func(tctx context.Context) error {
			t0 := o.now()
			p := &projector.Structure{
				Line:        line,
				DipField:    cfg.Structure.DipField,
				StrikeField: cfg.Structure.StrikeField,
				Buffer:      cfg.Structure.Buffer,
			}
			pts, skipped, err := p.Project(tctx, src.Structure, agg.stageFunc("structure"))
			if errors.Is(err, layer.ErrNoFeatures) {
				res.diag("structure layer %s has no features", cfg.Structure.Layer)
				err = nil
			}
			if err != nil {
				return err
			}
			res.structures = pts
			res.mu.Lock()
			res.stats.StructureDuration = o.now().Sub(t0)
			res.stats.SkippedStructures = skipped
			res.mu.Unlock()
			agg.set("structure", 1)
			return nil
		}})
	}

	if cfg.Drillholes != nil {
		tasks = append(tasks, task{name: "drillhole", fn: func(tctx context.Context) error {
			t0 := o.now()
			p := &projector.Drillhole{Line: line, Opts: *cfg.Drillholes}
			traces, diag, err := p.Project(tctx, src.Collars, src.Survey, src.Intervals, agg.stageFunc("drillhole"))
			if errors.Is(err, layer.ErrNoFeatures) {
				res.diag("drillhole collar layer %s has no features", cfg.Drillholes.Collars)
				err = nil
			}
			if err != nil {
				return err
			}
			res.drillholes = traces
			res.mu.Lock()
			res.stats.DrillholeDuration = o.now().Sub(t0)
			res.stats.SkippedSurveyRows = diag.SkippedSurveyRows
			res.stats.SkippedIntervals = diag.SkippedIntervals
			res.stats.Diagnostics = append(res.stats.Diagnostics, diag.Notes...)
			res.mu.Unlock()
			agg.set("drillhole", 1)
			return nil
		}})
	}

	errCh := make(chan error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for _, t := range tasks {
		go func(t task) {
			defer wg.Done()
			if err := t.fn(cctx); err != nil {
				// fail fast: the first fatal error cancels the siblings
				errCh <- fmt.Errorf("%s: %w", t.name, err)
				cancel()
			}
		}(t)
	}
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		// caller cancellation outranks task errors; partial results are
		// dropped on the floor
		j.state.Store(int32(StateCancelled))
		observability.ObserveComputation("cancelled", o.now().Sub(start).Seconds())
		o.logger.Info("profile computation cancelled", "elapsed", o.now().Sub(start).String())
		return nil, err
	}
	if err := <-errCh; err != nil {
		j.state.Store(int32(StateFailed))
		observability.ObserveComputation("failed", o.now().Sub(start).Seconds())
		o.logger.Error("profile computation failed", "err", err)
		return nil, err
	}

	result := o.assemble(cfg, line, res, start)
	j.state.Store(int32(StateCompleted))
	observability.ObserveComputation("completed", result.Stats.TotalDuration.Seconds())
	o.logger.Info("profile computed",
		"topo_points", result.Stats.TopoPoints,
		"geology_segments", result.Stats.GeologySegments,
		"structures", result.Stats.StructurePoints,
		"drillholes", result.Stats.DrillholeTraces,
		"dur", result.Stats.TotalDuration.String())
	return result, nil
}

// assemble reduces the topo samples to the preview budget and freezes the
// result. Nothing may mutate it after this returns.
func (o *Orchestrator) assemble(cfg profile.Configuration, line *geom.Polyline, res *stageResult, start time.Time) *profile.Result {
	target := cfg.MaxPreviewPoints
	if target <= 0 {
		target = lod.AutoTarget(cfg.ViewportWidthPx)
	}
	mode := lod.ModeUniform
	if cfg.AdaptiveSampling {
		mode = lod.ModeAdaptive
	}
	topo := lod.Reduce(res.topo, lod.Decision{Mode: mode, Target: target})

	stats := res.stats
	stats.TopoPoints = len(topo)
	stats.GeologySegments = len(res.geology)
	stats.StructurePoints = len(res.structures)
	stats.DrillholeTraces = len(res.drillholes)
	stats.TotalDuration = o.now().Sub(start)

	observability.ObserveStage("topo", stats.TopoDuration.Seconds())
	observability.ObserveStage("geology", stats.GeologyDuration.Seconds())
	observability.ObserveStage("structure", stats.StructureDuration.Seconds())
	observability.ObserveStage("drillhole", stats.DrillholeDuration.Seconds())
	observability.AddSoftErrors(stats.SkippedStructures + stats.SkippedSurveyRows + stats.SkippedIntervals)

	return &profile.Result{
		Topo:       topo,
		Geology:    res.geology,
		Structures: res.structures,
		Drillholes: res.drillholes,
		Stats:      stats,
		Range:      sectionRange(line, topo, res.drillholes),
	}
}

func sectionRange(line *geom.Polyline, topo []profile.TopoPoint, holes []profile.DrillholeTrace) profile.Range {
	r := profile.Range{ChainageMin: 0, ChainageMax: line.Length()}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range topo {
		lo = math.Min(lo, p.Elevation)
		hi = math.Max(hi, p.Elevation)
	}
	for _, h := range holes {
		for _, p := range h.Points {
			lo = math.Min(lo, p.Elevation)
			hi = math.Max(hi, p.Elevation)
		}
	}
	if lo <= hi {
		r.ElevationMin, r.ElevationMax = lo, hi
	}
	return r
}
