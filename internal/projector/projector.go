// Package projector turns raw layer features into section-space records.
// Each projector walks its layer feature by feature, checking the context
// between iterations so cancellation is cooperative and never mid-feature.
package projector

import "context"

// ProgressFunc receives per-feature progress. done counts processed
// features, total the features in the layer. May be nil.
type ProgressFunc func(done, total int)

func report(p ProgressFunc, done, total int) {
	if p != nil {
		p(done, total)
	}
}

func cancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
