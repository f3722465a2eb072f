package orchestrator

import (
	"sync"

	"github.com/strataview/strataview/internal/profile"
	"github.com/strataview/strataview/internal/projector"
)

// progressAggregator combines per-stage fractions into one monotone
// percentage, weighted per stage and renormalized over the stages the
// configuration actually enables. Sends never block: a slow consumer just
// sees fewer intermediate reports.
type progressAggregator struct {
	mu       sync.Mutex
	weights  map[string]float64
	fraction map[string]float64
	last     float64
	out      chan<- Progress
}

func newProgressAggregator(w Weights, cfg profile.Configuration, out chan<- Progress) *progressAggregator {
	weights := map[string]float64{"topo": w.Topo}
	if cfg.Geology != nil {
		weights["geology"] = w.Geology
	}
	if cfg.Structure != nil {
		weights["structure"] = w.Structure
	}
	if cfg.Drillholes != nil {
		weights["drillhole"] = w.Drillhole
	}
	total := 0.0
	for _, v := range weights {
		total += v
	}
	for k := range weights {
		weights[k] /= total
	}
	return &progressAggregator{
		weights:  weights,
		fraction: make(map[string]float64, len(weights)),
		out:      out,
	}
}

// set records a stage fraction in [0,1] and emits the new aggregate.
func (a *progressAggregator) set(stage string, frac float64) {
	a.mu.Lock()
	if frac > a.fraction[stage] {
		a.fraction[stage] = frac
	}
	pct := 0.0
	for k, w := range a.weights {
		pct += w * a.fraction[k] * 100
	}
	if pct < a.last {
		pct = a.last
	}
	a.last = pct
	a.mu.Unlock()

	select {
	case a.out <- Progress{Stage: stage, Percent: pct}:
	default:
	}
}

// stageFunc adapts the aggregator to a projector's per-feature callback.
func (a *progressAggregator) stageFunc(stage string) projector.ProgressFunc {
	return func(done, total int) {
		if total <= 0 {
			return
		}
		a.set(stage, float64(done)/float64(total))
	}
}
