// Package resolver maps type names found in slices to the purls whose
// namespace records mention them.
package resolver

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/StinkyLord/sbom-evinser/internal/logging"
	"github.com/StinkyLord/sbom-evinser/internal/metrics"
	"github.com/StinkyLord/sbom-evinser/internal/model"
	"github.com/StinkyLord/sbom-evinser/internal/store"
)

// Searcher is the part of the namespace store the resolver needs.
type Searcher interface {
	FindBySubstring(ctx context.Context, needle string) ([]*store.Record, error)
}

// Cache memoises raw type string → purls for one run. Entries are only ever
// added.
type Cache struct {
	mu sync.RWMutex
	m  map[string]model.StringSet
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{m: map[string]model.StringSet{}}
}

// Get returns a copy of the purls cached for key.
func (c *Cache) Get(key string) (model.StringSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.m[key]
	if !ok {
		return nil, false
	}
	out := make(model.StringSet, len(set))
	out.Merge(set)
	return out, true
}

// Put records purls under key, keeping anything already cached.
func (c *Cache) Put(key string, purls ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.m[key]
	if !ok {
		set = model.StringSet{}
		c.m[key] = set
	}
	for _, p := range purls {
		set.Add(p)
	}
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Resolver resolves type names through a Searcher with a shared Cache.
type Resolver struct {
	store       Searcher
	cache       *Cache
	log         *logging.Logger
	concurrency int
}

// New creates a Resolver. A nil cache gets a fresh one.
func New(s Searcher, cache *Cache, log *logging.Logger, concurrency int) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	if log == nil {
		log = logging.Nop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{store: s, cache: cache, log: log, concurrency: concurrency}
}

// Cache returns the resolver's cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve returns the purls whose stored data contains typeFullName. The raw
// string is used both as the cache key and as the search needle. Misses are
// cached as well, since records do not change during a run.
func (r *Resolver) Resolve(ctx context.Context, typeFullName string) (model.StringSet, error) {
	if purls, ok := r.cache.Get(typeFullName); ok {
		metrics.CacheHits.Inc()
		return purls, nil
	}

	metrics.StoreLookups.Inc()
	recs, err := r.store.FindBySubstring(ctx, typeFullName)
	if err != nil {
		return nil, err
	}
	purls := make(model.StringSet, len(recs))
	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		purls.Add(rec.Purl)
		names = append(names, rec.Purl)
	}
	r.cache.Put(typeFullName, names...)

	if len(purls) == 0 {
		metrics.Unresolved.Inc()
		r.log.Debugw("unresolved type", "type", typeFullName)
	}
	return purls, nil
}

// ResolveAll resolves every type in types with at most the configured number
// of concurrent store queries and returns the union of the results.
func (r *Resolver) ResolveAll(ctx context.Context, types model.StringSet) (model.StringSet, error) {
	keys := types.Sorted()
	result := model.StringSet{}
	if len(keys) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, t := range keys {
		g.Go(func() error {
			purls, err := r.Resolve(gctx, t)
			if err != nil {
				return err
			}
			mu.Lock()
			result.Merge(purls)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
