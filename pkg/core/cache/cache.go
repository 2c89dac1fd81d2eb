// Package cache memoizes score results by dataset fingerprint. The cache is
// the only shared mutable resource in the system: the read-through wrapper
// guarantees at most one computation in flight per fingerprint, and cache
// unavailability always degrades to compute-fresh, never to a failed
// request.
package cache

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"finsight/pkg/core/engine"
	"finsight/pkg/core/score"
)

// ResultCache is the storage contract. Implementations: Memory, Redis, and
// the Postgres result repository in pkg/core/store.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*score.Result, bool, error)
	Set(ctx context.Context, fingerprint string, result *score.Result) error
}

// Scorer is the computation being memoized.
type Scorer interface {
	Score(ctx context.Context, req engine.ScoreRequest) (*score.Result, error)
}

// Memory is an in-process ResultCache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*score.Result
}

// NewMemory builds an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: map[string]*score.Result{}}
}

func (m *Memory) Get(_ context.Context, fingerprint string) (*score.Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.entries[fingerprint]
	return res, ok, nil
}

func (m *Memory) Set(_ context.Context, fingerprint string, result *score.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fingerprint] = result
	return nil
}

// distributedLocker is implemented by backends that can fence computation
// across processes (the Redis cache via redislock).
type distributedLocker interface {
	withLock(ctx context.Context, fingerprint string, fn func() (*score.Result, error)) (*score.Result, error)
}

// CachedScorer wraps a Scorer with read-through memoization. Concurrent
// requests for the same fingerprint share a single in-flight computation.
type CachedScorer struct {
	scorer Scorer
	cache  ResultCache
	log    *logrus.Logger
	group  singleflight.Group
}

// NewCachedScorer wires a scorer to a cache backend.
func NewCachedScorer(scorer Scorer, cache ResultCache, log *logrus.Logger) *CachedScorer {
	if log == nil {
		log = logrus.New()
	}
	return &CachedScorer{scorer: scorer, cache: cache, log: log}
}

// Score returns the cached result for an unchanged dataset without
// recomputation, otherwise computes once and stores. Cache errors are
// logged and absorbed.
func (c *CachedScorer) Score(ctx context.Context, req engine.ScoreRequest) (*score.Result, error) {
	fingerprint := engine.Fingerprint(req)

	if res, ok := c.lookup(ctx, fingerprint); ok {
		return res, nil
	}

	v, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		compute := func() (*score.Result, error) {
			// Re-check after winning the flight: another process may have
			// stored the result while we waited.
			if res, ok := c.lookup(ctx, fingerprint); ok {
				return res, nil
			}
			res, err := c.scorer.Score(ctx, req)
			if err != nil {
				return nil, err
			}
			if err := c.cache.Set(ctx, fingerprint, res); err != nil {
				c.log.WithError(err).WithField("fingerprint", fingerprint).
					Warn("result cache store failed; serving uncached result")
			}
			return res, nil
		}

		if locker, ok := c.cache.(distributedLocker); ok {
			return locker.withLock(ctx, fingerprint, compute)
		}
		return compute()
	})
	if err != nil {
		return nil, err
	}
	return v.(*score.Result), nil
}

func (c *CachedScorer) lookup(ctx context.Context, fingerprint string) (*score.Result, bool) {
	res, ok, err := c.cache.Get(ctx, fingerprint)
	if err != nil {
		c.log.WithError(err).WithField("fingerprint", fingerprint).
			Warn("result cache lookup failed; computing fresh")
		return nil, false
	}
	return res, ok && res != nil
}
