package registry

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/t3up/analyzer/internal/version"
)

func TestTERLookupCompatibleVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extension/news" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"key": "news",
			"versions": [
				{"number": "10.0.2", "typo3_versions": [11]},
				{"number": "11.0.0", "typo3_versions": [11, 12], "current_version": true}
			]
		}`))
	}))
	defer server.Close()

	client := NewTERClient(server.URL, "", nil)
	got, err := client.Lookup(context.Background(), "news", version.MustParse("12.4.10"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !got.Available {
		t.Error("expected availability for core major 12")
	}
	if got.CompatibleVersion != "11.0.0" {
		t.Errorf("compatible version = %q, want 11.0.0", got.CompatibleVersion)
	}
	if len(got.Versions) != 2 {
		t.Errorf("versions = %v", got.Versions)
	}
}

func TestTERLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	got, err := NewTERClient(server.URL, "", nil).Lookup(context.Background(), "gone", version.MustParse("12.4.0"))
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if got.Available {
		t.Error("missing extension reported available")
	}
}

func TestTERLookupRetriesServerErrors(t *testing.T) {
	oldDelay := retryDelay
	retryDelay = time.Millisecond
	defer func() { retryDelay = oldDelay }()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"versions": [{"number": "1.0.0", "typo3_versions": [12]}]}`))
	}))
	defer server.Close()

	got, err := NewTERClient(server.URL, "", nil).Lookup(context.Background(), "news", version.MustParse("12.4.0"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !got.Available {
		t.Error("expected success after retry")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestTERLookupSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"versions": []}`))
	}))
	defer server.Close()

	if _, err := NewTERClient(server.URL, "sekrit", nil).Lookup(context.Background(), "news", version.MustParse("12.4.0")); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
}

func TestPackagistLookupConstraintMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p2/georgringer/news.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"packages": {
				"georgringer/news": [
					{"version": "8.0.0", "require": {"typo3/cms-core": "^11.5"}},
					{"version": "9.0.0", "require": {"typo3/cms-core": "^12.4"}}
				]
			}
		}`))
	}))
	defer server.Close()

	got, err := NewPackagistClient(server.URL, "", nil).Lookup(context.Background(), "georgringer/news", version.MustParse("12.4.10"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !got.Available {
		t.Error("expected a compatible record for target 12.4.10")
	}
	if got.CompatibleVersion != "9.0.0" {
		t.Errorf("compatible version = %q, want 9.0.0", got.CompatibleVersion)
	}
}

func TestPackagistLookupNoCompatibleConstraint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"packages": {
				"vendor/legacy": [
					{"version": "1.0.0", "require": {"typo3/cms-core": "^10.4"}}
				]
			}
		}`))
	}))
	defer server.Close()

	got, err := NewPackagistClient(server.URL, "", nil).Lookup(context.Background(), "vendor/legacy", version.MustParse("12.4.10"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Available {
		t.Error("incompatible constraints must not report availability")
	}
	if len(got.Versions) != 1 {
		t.Errorf("versions = %v", got.Versions)
	}
}

func TestPackagistLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	got, err := NewPackagistClient(server.URL, "", nil).Lookup(context.Background(), "vendor/gone", version.MustParse("12.4.0"))
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if got.Available {
		t.Error("missing package reported available")
	}
}

func githubPayload(pushedAt time.Time) string {
	return `{
		"data": {
			"repository": {
				"isArchived": false,
				"isFork": false,
				"stargazerCount": 1200,
				"pushedAt": "` + pushedAt.UTC().Format(time.RFC3339) + `",
				"url": "https://github.com/georgringer/news",
				"refs": {
					"nodes": [
						{"name": "v9.0.0", "target": {"committedDate": "` + pushedAt.UTC().Format(time.RFC3339) + `"}}
					]
				}
			}
		}
	}`
}

func TestGitHubRepoHealthScore(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	pushed := now.Add(-200 * 24 * time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/graphql" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(githubPayload(pushed)))
	}))
	defer server.Close()

	client := NewGitHubClient(server.URL, "", nil)
	client.now = func() time.Time { return now }

	got, err := client.RepoHealth(context.Background(), "georgringer", "news")
	if err != nil {
		t.Fatalf("RepoHealth: %v", err)
	}
	if !got.Available {
		t.Fatal("expected repository to be available")
	}
	// Only the 90-day-to-one-year staleness penalty applies.
	if math.Abs(got.HealthScore-0.85) > 1e-9 {
		t.Errorf("health score = %v, want 0.85", got.HealthScore)
	}
	if len(got.Tags) != 1 || got.Tags[0].Name != "v9.0.0" {
		t.Errorf("tags = %+v", got.Tags)
	}
	if got.URL != "https://github.com/georgringer/news" {
		t.Errorf("url = %q", got.URL)
	}
}

func TestGitHubArchivedCapsScore(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": {
				"repository": {
					"isArchived": true,
					"stargazerCount": 5000,
					"pushedAt": "` + now.Add(-24*time.Hour).UTC().Format(time.RFC3339) + `",
					"url": "https://github.com/x/y",
					"refs": {"nodes": []}
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewGitHubClient(server.URL, "", nil)
	client.now = func() time.Time { return now }

	got, err := client.RepoHealth(context.Background(), "x", "y")
	if err != nil {
		t.Fatalf("RepoHealth: %v", err)
	}
	if got.HealthScore != 0.2 {
		t.Errorf("archived score = %v, want 0.2", got.HealthScore)
	}
}

func TestGitHubRateLimitExhaustion(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewGitHubClient(server.URL, "", nil)
	var slept []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	got, err := client.RepoHealth(context.Background(), "x", "y")
	if err != nil {
		t.Fatalf("exhausted quota must not be an error, got %v", err)
	}
	if got.Available {
		t.Error("exhausted quota must report unavailable")
	}
	if calls.Load() != 4 {
		t.Errorf("calls = %d, want initial attempt plus 3 retries", calls.Load())
	}
	for i := 1; i < len(slept); i++ {
		if slept[i] < slept[i-1] {
			t.Errorf("backoff not increasing: %v", slept)
		}
	}
}

func TestGitHubMissingRepository(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": {"repository": null},
			"errors": [{"message": "Could not resolve to a Repository with the name 'x/gone'."}]
		}`))
	}))
	defer server.Close()

	got, err := NewGitHubClient(server.URL, "", nil).RepoHealth(context.Background(), "x", "gone")
	if err != nil {
		t.Fatalf("missing repository must not be an error, got %v", err)
	}
	if got.Available {
		t.Error("missing repository reported available")
	}
}

func TestRateLimiterBlocksWhenEmpty(t *testing.T) {
	current := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 10)
	limiter.now = func() time.Time { return current }
	limiter.last = current
	limiter.tokens = 1
	limiter.sleep = func(_ context.Context, d time.Duration) error {
		current = current.Add(d)
		return nil
	}

	ctx := context.Background()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	// Second acquisition must simulate-sleep until a token accrues.
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if limiter.tokens >= 1 {
		t.Errorf("tokens = %v after consuming refill", limiter.tokens)
	}
}

func TestRateLimiterHonorsCancellation(t *testing.T) {
	limiter := NewRateLimiter(0, 0.001)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected context error from canceled Wait")
	}
}
