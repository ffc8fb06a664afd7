package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMemoryGetSetExpiry(t *testing.T) {
	store := NewMemory()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Set(ctx, TypeAnalysis, "k1", []byte(`{"a":1}`), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	payload, ok, err := store.Get(ctx, TypeAnalysis, "k1")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if string(payload) != `{"a":1}` {
		t.Fatalf("unexpected payload %s", payload)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Get(ctx, TypeAnalysis, "k1"); ok {
		t.Fatal("expected expired entry to be a miss")
	}
}

func TestMemoryRejectsUnknownType(t *testing.T) {
	store := NewMemory()
	if err := store.Set(context.Background(), Type("bogus"), "k", nil, time.Minute); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if _, err := store.Clear(context.Background(), Type("bogus")); err == nil {
		t.Fatal("expected clear error for unknown type")
	}
}

func TestDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewDisk(dir)
	ctx := context.Background()

	payload := []byte(`{"risk_score":2.5,"successful":true}`)
	if err := store.Set(ctx, TypeAnalysis, "abc123", payload, time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	entryPath := filepath.Join(dir, "analysis", "abc123.json")
	raw, err := os.ReadFile(entryPath)
	if err != nil {
		t.Fatalf("expected entry file: %v", err)
	}
	var env struct {
		CachedAt   int64           `json:"cached_at"`
		TTLSeconds int64           `json:"ttl_seconds"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("envelope decode: %v", err)
	}
	if env.TTLSeconds != 3600 || env.CachedAt == 0 {
		t.Fatalf("unexpected envelope %+v", env)
	}

	got, ok, err := store.Get(ctx, TypeAnalysis, "abc123")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload changed across round trip: %s", got)
	}
}

func TestDiskExpiredEntryIgnoredAndReaped(t *testing.T) {
	dir := t.TempDir()
	store := NewDisk(dir)
	store.now = func() time.Time { return time.Unix(1000, 0) }
	ctx := context.Background()

	if err := store.Set(ctx, TypeVersion, "v", []byte(`"12.4.10"`), time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	store.now = func() time.Time { return time.Unix(5000, 0) }
	if _, ok, _ := store.Get(ctx, TypeVersion, "v"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if _, err := os.Stat(filepath.Join(dir, "version", "v.json")); !os.IsNotExist(err) {
		t.Fatal("expected expired entry to be reaped")
	}
}

func TestDiskMalformedEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	store := NewDisk(dir)
	path := filepath.Join(dir, "analysis")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(path, "bad.json"), []byte("{torn"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok, err := store.Get(context.Background(), TypeAnalysis, "bad"); ok || err != nil {
		t.Fatalf("expected silent miss, got ok=%v err=%v", ok, err)
	}
}

func TestDiskClearIsolation(t *testing.T) {
	dir := t.TempDir()
	store := NewDisk(dir)
	ctx := context.Background()

	if err := store.Set(ctx, TypeAnalysis, "a", []byte(`1`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, TypeAnalysis, "b", []byte(`2`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, TypePathResolution, "p", []byte(`3`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	report, err := store.Clear(ctx, TypeAnalysis)
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if report.Entries != 2 {
		t.Fatalf("expected 2 cleared entries, got %d", report.Entries)
	}

	stats, err := store.Stats(ctx, TypePathResolution)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("other cache type touched: %+v", stats)
	}
}

func TestDiskStatsDoesNotModify(t *testing.T) {
	dir := t.TempDir()
	store := NewDisk(dir)
	ctx := context.Background()
	if err := store.Set(ctx, TypeAnalysis, "a", []byte(`1`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	before, _ := os.ReadDir(filepath.Join(dir, "analysis"))
	if _, err := store.Stats(ctx, TypeAnalysis); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	after, _ := os.ReadDir(filepath.Join(dir, "analysis"))
	if len(before) != len(after) {
		t.Fatal("Stats modified the cache directory")
	}
}

func TestLayeredPromotesRearHits(t *testing.T) {
	front := NewMemory()
	back := NewDisk(t.TempDir())
	layered := NewLayered(front, back)
	ctx := context.Background()

	if err := back.Set(ctx, TypeAnalysis, "k", []byte(`42`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	payload, ok, err := layered.Get(ctx, TypeAnalysis, "k")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if string(payload) != "42" {
		t.Fatalf("unexpected payload %s", payload)
	}
	if _, ok, _ := front.Get(ctx, TypeAnalysis, "k"); !ok {
		t.Fatal("expected rear hit to be promoted to front store")
	}
}

func TestValidType(t *testing.T) {
	for _, known := range Types() {
		if !ValidType(known) {
			t.Fatalf("expected %s to be valid", known)
		}
	}
	if ValidType(Type("nope")) {
		t.Fatal("expected nope to be invalid")
	}
}
