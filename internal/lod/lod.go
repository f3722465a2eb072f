// Package lod reduces dense section samples to an interactive point budget.
// Both modes are deterministic: identical input and decision always yield
// the identical output sequence.
package lod

import (
	"math"
	"sort"

	"github.com/strataview/strataview/internal/profile"
)

type Mode int

const (
	ModeUniform Mode = iota
	ModeAdaptive
)

// Decision is the resolved sampling choice for one render pass.
type Decision struct {
	Mode   Mode
	Target int
}

// curvatureFraction of the elevation range a second difference must exceed
// to be considered a feature worth pinning.
const curvatureFraction = 0.01

// AutoTarget derives a point budget from the viewport width: two retained
// points per pixel, floored so narrow widgets still get a usable curve.
func AutoTarget(viewportPx int) int {
	const floor = 256
	t := 2 * viewportPx
	if t < floor {
		return floor
	}
	return t
}

// Reduce decimates points to at most dec.Target samples. The first and last
// input points are always retained. Inputs already within budget pass
// through unchanged.
func Reduce(points []profile.TopoPoint, dec Decision) []profile.TopoPoint {
	n := len(points)
	if dec.Target <= 0 || n <= dec.Target || n < 3 {
		return points
	}
	switch dec.Mode {
	case ModeAdaptive:
		return pick(points, adaptiveIndexes(points, dec.Target))
	default:
		return pick(points, strideIndexes(n, dec.Target))
	}
}

// strideIndexes selects every Nth index, N = ceil(n/target), then pins the
// last input index in place of the final pick.
func strideIndexes(n, target int) []int {
	stride := (n + target - 1) / target
	idx := make([]int, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		idx = append(idx, i)
	}
	idx[len(idx)-1] = n - 1
	return idx
}

// adaptiveIndexes pins indexes whose local curvature (second difference of
// elevation) exceeds a threshold derived from the data's elevation range,
// then spends the remaining budget uniformly on the flat runs.
func adaptiveIndexes(points []profile.TopoPoint, target int) []int {
	n := len(points)

	lo, hi := points[0].Elevation, points[0].Elevation
	for _, p := range points[1:] {
		lo = math.Min(lo, p.Elevation)
		hi = math.Max(hi, p.Elevation)
	}
	thresh := curvatureFraction * (hi - lo)

	pinned := make(map[int]struct{}, target)
	pinned[0] = struct{}{}
	pinned[n-1] = struct{}{}
	for i := 1; i < n-1; i++ {
		d2 := points[i-1].Elevation - 2*points[i].Elevation + points[i+1].Elevation
		if math.Abs(d2) > thresh {
			pinned[i] = struct{}{}
		}
	}

	if len(pinned) >= target {
		// too many features for the budget: decimate the pinned set itself,
		// endpoints stay
		all := sortedKeys(pinned)
		sub := strideIndexes(len(all), target)
		idx := make([]int, 0, len(sub))
		for _, j := range sub {
			idx = append(idx, all[j])
		}
		if idx[0] != 0 {
			idx[0] = 0
		}
		idx[len(idx)-1] = n - 1
		return idx
	}

	rest := make([]int, 0, n-len(pinned))
	for i := 0; i < n; i++ {
		if _, ok := pinned[i]; !ok {
			rest = append(rest, i)
		}
	}
	budget := target - len(pinned)
	if budget > 0 && len(rest) > 0 {
		stride := (len(rest) + budget - 1) / budget
		for i := 0; i < len(rest); i += stride {
			pinned[rest[i]] = struct{}{}
		}
	}
	return sortedKeys(pinned)
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func pick(points []profile.TopoPoint, idx []int) []profile.TopoPoint {
	out := make([]profile.TopoPoint, len(idx))
	for i, j := range idx {
		out[i] = points[j]
	}
	return out
}
