package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/t3up/analyzer/internal/messages"
)

var (
	osCreateTemp = os.CreateTemp
	osRename     = os.Rename
)

// envelope is the on-disk entry format. Payload stays raw so a round trip
// through the cache cannot reorder or reformat the cached document.
type envelope struct {
	CachedAt   int64           `json:"cached_at"`
	TTLSeconds int64           `json:"ttl_seconds"`
	Payload    json.RawMessage `json:"payload"`
}

// Disk is a Store persisting one JSON file per entry under a root directory,
// with one subdirectory per cache type.
type Disk struct {
	root string
	now  func() time.Time
}

// NewDisk returns a disk store rooted at dir. The directory is created lazily.
func NewDisk(dir string) *Disk {
	return &Disk{root: dir, now: time.Now}
}

// Root returns the configured cache root directory.
func (d *Disk) Root() string {
	return d.root
}

func (d *Disk) entryPath(t Type, key string) string {
	return filepath.Join(d.root, string(t), sanitizeKey(key)+".json")
}

// sanitizeKey keeps cache keys filename-safe. Keys are normally hex digests;
// anything else is defanged rather than rejected.
func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Get reads the entry for key, ignoring expired or malformed files.
func (d *Disk) Get(_ context.Context, t Type, key string) ([]byte, bool, error) {
	path := d.entryPath(t, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf(messages.CacheReadEntryFmt, path, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// A torn or hand-edited entry is treated as a miss and reaped.
		_ = os.Remove(path)
		return nil, false, nil
	}
	if d.now().Unix() > env.CachedAt+env.TTLSeconds {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return env.Payload, true, nil
}

// Set writes the entry atomically: the envelope goes to a temp file in the
// target directory and is renamed into place.
func (d *Disk) Set(_ context.Context, t Type, key string, payload []byte, ttl time.Duration) error {
	if !ValidType(t) {
		return fmt.Errorf(messages.CacheUnknownTypeFmt, t)
	}
	path := d.entryPath(t, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf(messages.CacheCreateDirFmt, err)
	}

	env := envelope{
		CachedAt:   d.now().Unix(),
		TTLSeconds: int64(ttl / time.Second),
		Payload:    json.RawMessage(payload),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf(messages.CacheEncodeEntryFmt, err)
	}

	tmp, err := osCreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf(messages.CacheCreateTempFmt, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf(messages.CacheWriteTempFmt, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf(messages.CacheSyncTempFmt, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf(messages.CacheCloseTempFmt, err)
	}
	if err := osRename(tmpName, path); err != nil {
		return fmt.Errorf(messages.CacheCommitEntryFmt, err)
	}
	committed = true
	return nil
}

// Delete removes the entry for key when present.
func (d *Disk) Delete(_ context.Context, t Type, key string) error {
	err := os.Remove(d.entryPath(t, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf(messages.CacheRemoveEntryFmt, err)
	}
	return nil
}

// Clear removes every entry of type t, reporting counts and sizes.
func (d *Disk) Clear(ctx context.Context, t Type) (ClearReport, error) {
	report, entries, err := d.scan(ctx, t)
	if err != nil {
		return ClearReport{}, err
	}
	for _, path := range entries {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return ClearReport(report), fmt.Errorf(messages.CacheRemoveEntryFmt, err)
		}
	}
	return ClearReport(report), nil
}

// Stats reports entry counts and sizes without modifying the cache.
func (d *Disk) Stats(ctx context.Context, t Type) (StatsReport, error) {
	report, _, err := d.scan(ctx, t)
	return report, err
}

func (d *Disk) scan(_ context.Context, t Type) (StatsReport, []string, error) {
	if !ValidType(t) {
		return StatsReport{}, nil, fmt.Errorf(messages.CacheUnknownTypeFmt, t)
	}
	report := StatsReport{Type: t}
	dir := filepath.Join(d.root, string(t))
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil, nil
		}
		return StatsReport{}, nil, fmt.Errorf(messages.CacheScanDirFmt, dir, err)
	}
	var paths []string
	for _, entry := range dirEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		report.Entries++
		report.Bytes += info.Size()
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return report, paths, nil
}

// Layered reads through a fast front store backed by a durable rear store.
type Layered struct {
	front Store
	back  Store
}

// NewLayered combines front (typically Memory) with back (typically Disk).
func NewLayered(front, back Store) *Layered {
	return &Layered{front: front, back: back}
}

// Get checks the front store first and promotes rear hits forward.
func (l *Layered) Get(ctx context.Context, t Type, key string) ([]byte, bool, error) {
	if payload, ok, err := l.front.Get(ctx, t, key); err != nil || ok {
		return payload, ok, err
	}
	payload, ok, err := l.back.Get(ctx, t, key)
	if err != nil || !ok {
		return nil, false, err
	}
	// Promotion TTL is conservative; the rear entry's own TTL still governs.
	_ = l.front.Set(ctx, t, key, payload, time.Minute)
	return payload, true, nil
}

// Set writes to both layers.
func (l *Layered) Set(ctx context.Context, t Type, key string, payload []byte, ttl time.Duration) error {
	if err := l.back.Set(ctx, t, key, payload, ttl); err != nil {
		return err
	}
	return l.front.Set(ctx, t, key, payload, ttl)
}

// Delete removes the entry from both layers.
func (l *Layered) Delete(ctx context.Context, t Type, key string) error {
	if err := l.front.Delete(ctx, t, key); err != nil {
		return err
	}
	return l.back.Delete(ctx, t, key)
}

// Clear clears both layers, reporting the durable layer's counts.
func (l *Layered) Clear(ctx context.Context, t Type) (ClearReport, error) {
	if _, err := l.front.Clear(ctx, t); err != nil {
		return ClearReport{}, err
	}
	return l.back.Clear(ctx, t)
}

// Stats reports the durable layer's contents.
func (l *Layered) Stats(ctx context.Context, t Type) (StatsReport, error) {
	return l.back.Stats(ctx, t)
}
