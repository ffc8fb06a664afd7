package pathres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/t3up/analyzer/internal/cache"
	"github.com/t3up/analyzer/internal/messages"
)

// Resolver executes path resolution requests against a strategy registry,
// fronted by a layered response cache.
type Resolver struct {
	registry *Registry
	store    cache.Store
	now      func() time.Time
}

// NewResolver builds a resolver. store may be nil to disable caching.
func NewResolver(registry *Registry, store cache.Store) *Resolver {
	return &Resolver{registry: registry, store: store, now: time.Now}
}

// Resolve executes a single request.
func (r *Resolver) Resolve(ctx context.Context, req Request) Response {
	resp, _ := r.resolveTracked(ctx, req)
	return resp
}

// ResolveMany executes a batch of sibling requests, reusing the cache across
// them and annotating each response with the batch cache-hit ratio.
func (r *Resolver) ResolveMany(ctx context.Context, reqs []Request) []Response {
	responses := make([]Response, len(reqs))
	hits := 0
	for i, req := range reqs {
		resp, fromCache := r.resolveTracked(ctx, req)
		if fromCache {
			hits++
		}
		responses[i] = resp
	}
	ratio := 0.0
	if len(reqs) > 0 {
		ratio = float64(hits) / float64(len(reqs))
	}
	for i := range responses {
		responses[i] = responses[i].withMeta("cache_hit_ratio", ratio)
	}
	return responses
}

// SupportsPathType reports whether any registered strategy handles pathType.
func (r *Resolver) SupportsPathType(pathType PathType) bool {
	return r.registry.SupportsPathType(pathType)
}

// AvailablePathTypesFor lists the path types resolvable for installType.
func (r *Resolver) AvailablePathTypesFor(installType InstallationType) []PathType {
	return r.registry.AvailablePathTypesFor(installType)
}

func (r *Resolver) resolveTracked(ctx context.Context, req Request) (Response, bool) {
	start := r.now()
	key := CacheKey(req)

	if r.cacheEnabled(req) && !req.Cache.ForceRefresh {
		if payload, ok, err := r.store.Get(ctx, cache.TypePathResolution, key); err == nil && ok {
			var cached Response
			if err := json.Unmarshal(payload, &cached); err == nil {
				cached = cached.withMeta("was_from_cache", true)
				cached.CacheKey = key
				return cached, true
			}
		}
	}

	resp := r.runStrategies(ctx, req)
	resp.CacheKey = key
	resp.ResolutionTime = r.now().Sub(start)
	resp = resp.withMeta("was_from_cache", false)

	if r.cacheEnabled(req) && resp.Status == StatusSuccess {
		if payload, err := json.Marshal(resp); err == nil {
			_ = r.store.Set(ctx, cache.TypePathResolution, key, payload, req.Cache.TTL)
		}
	}
	return resp, false
}

func (r *Resolver) cacheEnabled(req Request) bool {
	return r.store != nil && req.Cache.Enabled
}

// runStrategies invokes matching strategies by descending priority until one
// succeeds. Strategy panics are reported as Error responses and resolution
// continues with the next strategy.
func (r *Resolver) runStrategies(ctx context.Context, req Request) Response {
	strategies := r.registry.candidatesFor(req.PathType, req.InstallationType)
	if len(strategies) == 0 {
		return errorResponse(req.PathType,
			fmt.Sprintf(messages.PathResNoStrategyFmt, req.PathType, req.InstallationType))
	}

	var warnings []string
	var errs []string
	var attempted []string
	for _, strategy := range strategies {
		resp := invokeStrategy(ctx, strategy, req)
		switch resp.Status {
		case StatusSuccess:
			resp.Warnings = append(warnings, resp.Warnings...)
			return resp
		case StatusNotFound:
			if paths, ok := resp.Metadata["attempted_paths"].([]string); ok {
				attempted = append(attempted, paths...)
			}
		case StatusError:
			errs = append(errs, resp.Errors...)
			warnings = append(warnings, fmt.Sprintf(messages.PathResStrategyFailedFmt, strategy.Identifier()))
		}
	}

	if len(errs) > 0 && len(attempted) == 0 {
		resp := errorResponse(req.PathType, "")
		resp.Errors = errs
		resp.Warnings = warnings
		return resp
	}
	resp := notFoundResponse(req.PathType, attempted)
	resp.Warnings = warnings
	resp.Errors = errs
	return resp
}

// invokeStrategy shields the resolver from strategy panics.
func invokeStrategy(ctx context.Context, strategy Strategy, req Request) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = errorResponse(req.PathType,
				fmt.Sprintf(messages.PathResStrategyPanicFmt, strategy.Identifier(), rec))
		}
	}()
	return strategy.Resolve(ctx, req)
}

// CacheKey derives the stable cache key for a request:
// H(pathType || installationType || H(installationPath) || H(pathConfig)).
func CacheKey(req Request) string {
	pathHash := sha256.Sum256([]byte(req.InstallationPath))

	keys := make([]string, 0, len(req.PathConfiguration))
	for k := range req.PathConfiguration {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cfgHasher := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(cfgHasher, "%s=%s;", k, req.PathConfiguration[k])
	}
	if req.ExtensionIdentifier != "" {
		fmt.Fprintf(cfgHasher, "ext=%s;", req.ExtensionIdentifier)
	}
	if req.FollowSymlinks {
		fmt.Fprint(cfgHasher, "symlinks;")
	}

	hasher := sha256.New()
	fmt.Fprintf(hasher, "%s|%s|%x|%x", req.PathType, req.InstallationType, pathHash, cfgHasher.Sum(nil))
	return hex.EncodeToString(hasher.Sum(nil))
}
