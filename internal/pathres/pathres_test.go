package pathres

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/t3up/analyzer/internal/cache"
	"github.com/t3up/analyzer/internal/errcode"
)

func mkdirs(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		if err := os.MkdirAll(filepath.Join(root, rel), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
	}
}

func buildRequest(t *testing.T, b *RequestBuilder) Request {
	t.Helper()
	req, err := b.Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return req
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	registry, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry error: %v", err)
	}
	return NewResolver(registry, cache.NewMemory())
}

func TestBuildValidation(t *testing.T) {
	if _, err := NewRequest(PathWebDir).Build(); !errcode.Is(err, errcode.InvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
	if _, err := NewRequest(PathType("bogus")).InstallationPath("/x").InstallationType(InstallLegacy).Build(); !errcode.Is(err, errcode.InvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST for unknown path type, got %v", err)
	}
	if _, err := NewRequest(PathExtension).InstallationPath("/x").InstallationType(InstallLegacy).Build(); !errcode.Is(err, errcode.InvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST for missing extension id, got %v", err)
	}
}

func TestBuildIncompatiblePair(t *testing.T) {
	_, err := NewRequest(PathVendorDir).
		InstallationPath("/some/site").
		InstallationType(InstallLegacy).
		Build()
	if !errcode.Is(err, errcode.NoCompatibleStrategy) {
		t.Fatalf("expected NO_COMPATIBLE_STRATEGY, got %v", err)
	}
	_, err = NewRequest(PathSystemExtension).
		InstallationPath("/some/site").
		InstallationType(InstallDocker).
		Build()
	if !errcode.Is(err, errcode.NoCompatibleStrategy) {
		t.Fatalf("expected NO_COMPATIBLE_STRATEGY, got %v", err)
	}
}

func TestResolveComposerStandardWebDir(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "public/typo3conf", "vendor")

	resolver := newResolver(t)
	req := buildRequest(t, NewRequest(PathWebDir).
		InstallationPath(root).
		InstallationType(InstallComposerStandard))

	resp := resolver.Resolve(context.Background(), req)
	if resp.Status != StatusSuccess {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.ResolvedPath != filepath.Join(root, "public") {
		t.Fatalf("expected public web dir, got %s", resp.ResolvedPath)
	}
	// Invariant: a Success response names an existing, readable path.
	if _, err := os.Stat(resp.ResolvedPath); err != nil {
		t.Fatalf("resolved path does not exist: %v", err)
	}
}

func TestResolveComposerCustomWebDir(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "web/typo3conf", "vendor")

	resolver := newResolver(t)
	req := buildRequest(t, NewRequest(PathWebDir).
		InstallationPath(root).
		InstallationType(InstallComposerCustom).
		PathConfiguration(map[string]string{"web-dir": "web"}))

	resp := resolver.Resolve(context.Background(), req)
	if resp.Status != StatusSuccess {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.ResolvedPath != filepath.Join(root, "web") {
		t.Fatalf("expected custom web dir, got %s", resp.ResolvedPath)
	}
}

func TestResolveLegacyLayout(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "typo3conf/ext/news", "typo3/sysext")

	resolver := newResolver(t)
	ctx := context.Background()

	conf := resolver.Resolve(ctx, buildRequest(t, NewRequest(PathTypo3ConfDir).
		InstallationPath(root).InstallationType(InstallLegacy)))
	if conf.Status != StatusSuccess || conf.ResolvedPath != filepath.Join(root, "typo3conf") {
		t.Fatalf("typo3conf-dir: %+v", conf)
	}

	ext := resolver.Resolve(ctx, buildRequest(t, NewRequest(PathExtension).
		InstallationPath(root).InstallationType(InstallLegacy).ExtensionIdentifier("news")))
	if ext.Status != StatusSuccess || ext.ResolvedPath != filepath.Join(root, "typo3conf", "ext", "news") {
		t.Fatalf("extension: %+v", ext)
	}
}

func TestResolveNotFoundListsAttempts(t *testing.T) {
	root := t.TempDir()
	resolver := newResolver(t)

	resp := resolver.Resolve(context.Background(), buildRequest(t, NewRequest(PathVendorDir).
		InstallationPath(root).InstallationType(InstallComposerStandard)))
	if resp.Status != StatusNotFound {
		t.Fatalf("expected not-found, got %+v", resp)
	}
	attempted, ok := resp.Metadata["attempted_paths"].([]string)
	if !ok || len(attempted) == 0 {
		t.Fatalf("expected attempted paths in metadata, got %+v", resp.Metadata)
	}
}

func TestResolveCachesSuccess(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "public")
	resolver := newResolver(t)
	ctx := context.Background()
	req := buildRequest(t, NewRequest(PathWebDir).
		InstallationPath(root).InstallationType(InstallComposerStandard))

	first := resolver.Resolve(ctx, req)
	if first.Metadata["was_from_cache"] != false {
		t.Fatalf("first resolution should not come from cache: %+v", first.Metadata)
	}
	second := resolver.Resolve(ctx, req)
	if second.Metadata["was_from_cache"] != true {
		t.Fatalf("second resolution should come from cache: %+v", second.Metadata)
	}
	if second.ResolvedPath != first.ResolvedPath {
		t.Fatalf("cached path differs: %s vs %s", second.ResolvedPath, first.ResolvedPath)
	}
}

func TestResolveForceRefreshBypassesCache(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "public")
	resolver := newResolver(t)
	ctx := context.Background()

	req := buildRequest(t, NewRequest(PathWebDir).
		InstallationPath(root).InstallationType(InstallComposerStandard))
	resolver.Resolve(ctx, req)

	refresh := buildRequest(t, NewRequest(PathWebDir).
		InstallationPath(root).InstallationType(InstallComposerStandard).
		CacheOptions(CacheOptions{Enabled: true, TTL: time.Hour, ForceRefresh: true}))
	resp := resolver.Resolve(ctx, refresh)
	if resp.Metadata["was_from_cache"] != false {
		t.Fatalf("force refresh should bypass cache: %+v", resp.Metadata)
	}
}

func TestResolveManyReportsHitRatio(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "public", "vendor")
	resolver := newResolver(t)
	ctx := context.Background()

	web := buildRequest(t, NewRequest(PathWebDir).
		InstallationPath(root).InstallationType(InstallComposerStandard))
	vendor := buildRequest(t, NewRequest(PathVendorDir).
		InstallationPath(root).InstallationType(InstallComposerStandard))

	resolver.Resolve(ctx, web)

	responses := resolver.ResolveMany(ctx, []Request{web, vendor})
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	ratio, ok := responses[0].Metadata["cache_hit_ratio"].(float64)
	if !ok || ratio != 0.5 {
		t.Fatalf("expected hit ratio 0.5, got %v", responses[0].Metadata["cache_hit_ratio"])
	}
}

func TestCacheKeyStability(t *testing.T) {
	req := Request{
		PathType:          PathWebDir,
		InstallationPath:  "/srv/site",
		InstallationType:  InstallComposerStandard,
		PathConfiguration: map[string]string{"web-dir": "web", "vendor-dir": "vendor"},
	}
	other := req
	other.PathConfiguration = map[string]string{"vendor-dir": "vendor", "web-dir": "web"}
	if CacheKey(req) != CacheKey(other) {
		t.Fatal("cache key must be independent of map iteration order")
	}
	other.PathConfiguration["web-dir"] = "html"
	if CacheKey(req) == CacheKey(other) {
		t.Fatal("cache key must change with configuration")
	}
}

type panickyStrategy struct{}

func (panickyStrategy) Identifier() string                        { return "panicky" }
func (panickyStrategy) Supports(PathType, InstallationType) bool  { return true }
func (panickyStrategy) Priority(PathType, InstallationType) int   { return PriorityPrimary }
func (panickyStrategy) Resolve(context.Context, Request) Response { panic("boom") }

func TestStrategyPanicBecomesErrorAndResolutionContinues(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "public")

	registry := NewRegistry()
	if err := registry.Register(panickyStrategy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(ComposerStrategy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resolver := NewResolver(registry, nil)

	req := buildRequest(t, NewRequest(PathWebDir).
		InstallationPath(root).InstallationType(InstallComposerStandard))
	resp := resolver.Resolve(context.Background(), req)
	if resp.Status != StatusSuccess {
		t.Fatalf("expected fallthrough to composer strategy, got %+v", resp)
	}
}

func TestRegisterConflict(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(ComposerStrategy{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := registry.Register(ComposerStrategy{})
	if !errcode.Is(err, errcode.StrategyConflict) {
		t.Fatalf("expected STRATEGY_CONFLICT, got %v", err)
	}
}

func TestAvailablePathTypesRespectCompatibility(t *testing.T) {
	registry, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	resolver := NewResolver(registry, nil)

	for _, pathType := range resolver.AvailablePathTypesFor(InstallLegacy) {
		if pathType == PathVendorDir || pathType == PathComposerInstalled {
			t.Fatalf("legacy must not offer %s", pathType)
		}
	}
	if !resolver.SupportsPathType(PathWebDir) {
		t.Fatal("web-dir must be supported")
	}
}

func TestProbeSkipsSymlinksUnlessFollowed(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real-public")
	mkdirs(t, root, "real-public")
	link := filepath.Join(root, "public")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	resolver := newResolver(t)
	ctx := context.Background()

	noFollow := buildRequest(t, NewRequest(PathWebDir).
		InstallationPath(root).InstallationType(InstallComposerStandard))
	resp := resolver.Resolve(ctx, noFollow)
	if resp.Status == StatusSuccess && resp.ResolvedPath == link {
		t.Fatalf("symlink resolved without FollowSymlinks: %+v", resp)
	}

	follow := buildRequest(t, NewRequest(PathWebDir).
		InstallationPath(root).InstallationType(InstallComposerStandard).
		FollowSymlinks(true).
		CacheOptions(CacheOptions{Enabled: false}))
	resp = resolver.Resolve(ctx, follow)
	if resp.Status != StatusSuccess || resp.ResolvedPath != link {
		t.Fatalf("expected symlinked web dir with FollowSymlinks, got %+v", resp)
	}
}
