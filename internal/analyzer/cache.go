package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/t3up/analyzer/internal/cache"
	"github.com/t3up/analyzer/internal/discovery"
)

// CachingAnalyzer decorates an Analyzer with a TTL-bounded result cache.
// Concurrent analyses of the same key collapse into one computation.
type CachingAnalyzer struct {
	inner Analyzer
	store cache.Store
	ttl   time.Duration
	// ExtraKeyComponents participate in the cache key; analyzers whose
	// output depends on configuration knobs list them here.
	extra map[string]string

	group singleflight.Group
}

// NewCachingAnalyzer wraps inner with caching through store.
func NewCachingAnalyzer(inner Analyzer, store cache.Store, ttl time.Duration, extra map[string]string) *CachingAnalyzer {
	return &CachingAnalyzer{inner: inner, store: store, ttl: ttl, extra: extra}
}

func (c *CachingAnalyzer) Name() string { return c.inner.Name() }

func (c *CachingAnalyzer) Supports(ext *discovery.Extension) bool {
	return c.inner.Supports(ext)
}

// RequiredTools forwards the inner analyzer's tool requirements.
func (c *CachingAnalyzer) RequiredTools() []string {
	if tr, ok := c.inner.(ToolRequirer); ok {
		return tr.RequiredTools()
	}
	return nil
}

// HasRequiredTools forwards the inner analyzer's tool check.
func (c *CachingAnalyzer) HasRequiredTools() bool {
	if tr, ok := c.inner.(ToolRequirer); ok {
		return tr.HasRequiredTools()
	}
	return true
}

// Analyze returns the cached result when present, otherwise computes and
// stores it. Failed results are never cached. A canceled context discards
// the computation without writing a partial entry.
func (c *CachingAnalyzer) Analyze(ctx context.Context, ext *discovery.Extension, actx *Context) (*Result, error) {
	key := c.cacheKey(ext, actx)

	if payload, ok, err := c.store.Get(ctx, cache.TypeAnalysis, key); err == nil && ok {
		var result Result
		if err := json.Unmarshal(payload, &result); err == nil {
			result.FromCache = true
			return &result, nil
		}
		_ = c.store.Delete(ctx, cache.TypeAnalysis, key)
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		result, err := c.inner.Analyze(ctx, ext, actx)
		if err != nil {
			return nil, err
		}
		if result.Successful && ctx.Err() == nil {
			if payload, err := json.Marshal(result); err == nil {
				_ = c.store.Set(ctx, cache.TypeAnalysis, key, payload, c.ttl)
			}
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Result), nil
}

// cacheKey digests every input the result depends on.
func (c *CachingAnalyzer) cacheKey(ext *discovery.Extension, actx *Context) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", c.inner.Name(), ext.Key, ext.Version, actx.Hash())

	keys := make([]string, 0, len(c.extra))
	for k := range c.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, c.extra[k])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
