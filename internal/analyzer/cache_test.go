package analyzer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/t3up/analyzer/internal/cache"
	"github.com/t3up/analyzer/internal/discovery"
	"github.com/t3up/analyzer/internal/version"
)

func countingAnalyzer(calls *atomic.Int32, successful bool, delay time.Duration) *fakeAnalyzer {
	return &fakeAnalyzer{
		name: "counted",
		analyze: func(_ context.Context, ext *discovery.Extension, _ *Context) (*Result, error) {
			calls.Add(1)
			if delay > 0 {
				time.Sleep(delay)
			}
			return &Result{
				AnalyzerName: "counted",
				ExtensionKey: ext.Key,
				RiskScore:    3,
				Successful:   successful,
				Metrics:      map[string]any{"probe": true},
			}, nil
		},
	}
}

func TestCachingAnalyzerServesSecondCallFromCache(t *testing.T) {
	var calls atomic.Int32
	caching := NewCachingAnalyzer(countingAnalyzer(&calls, true, 0), cache.NewMemory(), time.Hour, nil)
	ext := &discovery.Extension{Key: "news", Version: version.MustParse("11.0.0")}
	actx := testContext(testInstallation())
	ctx := context.Background()

	first, err := caching.Analyze(ctx, ext, actx)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	if first.FromCache {
		t.Error("first result must be computed")
	}

	second, err := caching.Analyze(ctx, ext, actx)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if !second.FromCache {
		t.Error("second result must come from cache")
	}
	if calls.Load() != 1 {
		t.Errorf("inner invoked %d times, want 1", calls.Load())
	}
	if second.RiskScore != first.RiskScore || second.ExtensionKey != first.ExtensionKey {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}
}

func TestCachingAnalyzerCollapsesConcurrentComputes(t *testing.T) {
	var calls atomic.Int32
	caching := NewCachingAnalyzer(countingAnalyzer(&calls, true, 250*time.Millisecond), cache.NewMemory(), time.Hour, nil)
	ext := &discovery.Extension{Key: "news", Version: version.MustParse("11.0.0")}
	actx := testContext(testInstallation())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := caching.Analyze(context.Background(), ext, actx); err != nil {
				t.Errorf("Analyze: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("inner invoked %d times, want a single shared compute", calls.Load())
	}
}

func TestCachingAnalyzerNeverCachesFailures(t *testing.T) {
	var calls atomic.Int32
	caching := NewCachingAnalyzer(countingAnalyzer(&calls, false, 0), cache.NewMemory(), time.Hour, nil)
	ext := &discovery.Extension{Key: "news", Version: version.MustParse("11.0.0")}
	actx := testContext(testInstallation())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := caching.Analyze(ctx, ext, actx)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if result.FromCache {
			t.Error("failed results must not be served from cache")
		}
	}
	if calls.Load() != 2 {
		t.Errorf("inner invoked %d times, want 2", calls.Load())
	}
}

func TestCachingAnalyzerKeySeparatesExtraComponents(t *testing.T) {
	var calls atomic.Int32
	inner := countingAnalyzer(&calls, true, 0)
	store := cache.NewMemory()
	withSets := NewCachingAnalyzer(inner, store, time.Hour, map[string]string{"sets": "typo3-13"})
	withoutSets := NewCachingAnalyzer(inner, store, time.Hour, nil)
	ext := &discovery.Extension{Key: "news", Version: version.MustParse("11.0.0")}
	actx := testContext(testInstallation())
	ctx := context.Background()

	if _, err := withSets.Analyze(ctx, ext, actx); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := withoutSets.Analyze(ctx, ext, actx); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("inner invoked %d times, want distinct keys to force 2 computes", calls.Load())
	}
}

func TestCachingAnalyzerKeyIncludesVersionPair(t *testing.T) {
	var calls atomic.Int32
	caching := NewCachingAnalyzer(countingAnalyzer(&calls, true, 0), cache.NewMemory(), time.Hour, nil)
	ext := &discovery.Extension{Key: "news", Version: version.MustParse("11.0.0")}
	ctx := context.Background()

	to13 := &Context{CurrentVersion: version.MustParse("12.4.10"), TargetVersion: version.MustParse("13.4.0")}
	to12 := &Context{CurrentVersion: version.MustParse("11.5.0"), TargetVersion: version.MustParse("12.4.0")}
	if _, err := caching.Analyze(ctx, ext, to13); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := caching.Analyze(ctx, ext, to12); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("inner invoked %d times, want 2 for distinct upgrade pairs", calls.Load())
	}
}
