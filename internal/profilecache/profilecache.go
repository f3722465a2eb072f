// Package profilecache memoizes computed profiles by configuration
// fingerprint. It guarantees at most one concurrent computation per
// fingerprint: later callers for the same configuration wait on the
// in-flight entry instead of recomputing.
package profilecache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/strataview/strataview/internal/observability"
	"github.com/strataview/strataview/internal/profile"
)

// ComputeFunc produces the profile for a configuration on a cache miss.
type ComputeFunc func(ctx context.Context) (*profile.Result, error)

// entry is one Pending computation. Ready results live in the lru; Failed
// entries are dropped so a retry recomputes.
type entry struct {
	done   chan struct{}
	result *profile.Result
	err    error
	gen    uint64
}

type Cache struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uint64]*entry
	ready   *lru.Cache[uint64, *profile.Result]
	gen     uint64

	computations atomic.Int64
}

// New builds a cache bounded to size Ready results.
func New(logger *slog.Logger, size int) (*Cache, error) {
	if size <= 0 {
		size = 64
	}
	ready, err := lru.New[uint64, *profile.Result](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		logger:  logger,
		pending: make(map[uint64]*entry),
		ready:   ready,
	}, nil
}

// GetOrCompute returns the memoized result for the configuration, running
// compute at most once per fingerprint. Configuration errors are reported
// synchronously and never enter the cache; fatal computation errors leave
// no entry behind, so the next identical request retries.
func (c *Cache) GetOrCompute(ctx context.Context, cfg profile.Configuration, compute ComputeFunc) (*profile.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fp := cfg.Fingerprint()

	for {
		c.mu.Lock()
		if res, ok := c.ready.Get(fp); ok {
			c.mu.Unlock()
			observability.IncCacheHit()
			return res, nil
		}
		if e, ok := c.pending[fp]; ok {
			c.mu.Unlock()
			observability.IncCacheWait()
			select {
			case <-e.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if errors.Is(e.err, context.Canceled) && ctx.Err() == nil {
				// the originator bailed out; this caller is still live,
				// take over with a fresh computation
				continue
			}
			return e.result, e.err
		}

		e := &entry{done: make(chan struct{}), gen: c.gen}
		c.pending[fp] = e
		c.mu.Unlock()
		observability.IncCacheMiss()

		c.computations.Add(1)
		res, err := compute(ctx)

		c.mu.Lock()
		if cur, ok := c.pending[fp]; ok && cur == e {
			delete(c.pending, fp)
		}
		e.result, e.err = res, err
		if err == nil && e.gen == c.gen {
			c.ready.Add(fp, res)
		} else if err == nil {
			// cleared while computing: finish, publish nothing
			c.logger.Debug("profile cache cleared mid-computation, result dropped",
				"fingerprint", fp)
		}
		c.mu.Unlock()
		close(e.done)
		return res, err
	}
}

// Peek reports whether a Ready result exists without touching recency.
func (c *Cache) Peek(cfg profile.Configuration) (*profile.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready.Peek(cfg.Fingerprint())
}

// Clear atomically discards every entry. In-flight computations run to
// completion but their results are silently dropped.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := c.ready.Len()
	c.ready.Purge()
	c.pending = make(map[uint64]*entry)
	c.gen++
	c.mu.Unlock()
	c.logger.Info("profile cache cleared", "evicted", n)
}

// Len is the number of Ready results currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready.Len()
}

// Computations counts compute invocations since construction; a test seam
// for the single-flight invariant.
func (c *Cache) Computations() int64 { return c.computations.Load() }
