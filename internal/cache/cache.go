// Package cache provides the TTL-bounded stores shared by path resolution,
// discovery, and the analyzers: an in-memory map, an on-disk JSON layout,
// and a layered combination of the two.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/t3up/analyzer/internal/messages"
)

// Type names one of the persisted cache families.
type Type string

const (
	TypeAnalysis              Type = "analysis"
	TypePathResolution        Type = "path-resolution"
	TypeVersion               Type = "version"
	TypeExtensionDiscovery    Type = "extension-discovery"
	TypeInstallationDiscovery Type = "installation-discovery"
)

// Types lists every known cache type in stable order.
func Types() []Type {
	return []Type{
		TypeAnalysis,
		TypePathResolution,
		TypeVersion,
		TypeExtensionDiscovery,
		TypeInstallationDiscovery,
	}
}

// ValidType reports whether t names a known cache type.
func ValidType(t Type) bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// Store is the cache contract shared by every subsystem. Implementations
// must treat expired entries as absent on read.
type Store interface {
	Get(ctx context.Context, t Type, key string) ([]byte, bool, error)
	Set(ctx context.Context, t Type, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, t Type, key string) error
	Clear(ctx context.Context, t Type) (ClearReport, error)
	Stats(ctx context.Context, t Type) (StatsReport, error)
}

// ClearReport summarizes a Clear operation.
type ClearReport struct {
	Type    Type  `json:"type"`
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// StatsReport summarizes the live contents of one cache type.
type StatsReport struct {
	Type    Type  `json:"type"`
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is a process-local Store backed by a map.
type Memory struct {
	mu      sync.RWMutex
	entries map[Type]map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[Type]map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the payload for key when present and unexpired.
func (m *Memory) Get(_ context.Context, t Type, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[t][key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries[t], key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.payload, true, nil
}

// Set stores payload under key for ttl.
func (m *Memory) Set(_ context.Context, t Type, key string, payload []byte, ttl time.Duration) error {
	if !ValidType(t) {
		return fmt.Errorf(messages.CacheUnknownTypeFmt, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[t] == nil {
		m.entries[t] = make(map[string]memoryEntry)
	}
	m.entries[t][key] = memoryEntry{payload: payload, expiresAt: m.now().Add(ttl)}
	return nil
}

// Delete removes key from the store.
func (m *Memory) Delete(_ context.Context, t Type, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries[t], key)
	return nil
}

// Clear removes every entry of type t and reports what was removed.
func (m *Memory) Clear(_ context.Context, t Type) (ClearReport, error) {
	if !ValidType(t) {
		return ClearReport{}, fmt.Errorf(messages.CacheUnknownTypeFmt, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	report := ClearReport{Type: t}
	for _, entry := range m.entries[t] {
		report.Entries++
		report.Bytes += int64(len(entry.payload))
	}
	delete(m.entries, t)
	return report, nil
}

// Stats reports the live entry count and payload size for type t.
func (m *Memory) Stats(_ context.Context, t Type) (StatsReport, error) {
	if !ValidType(t) {
		return StatsReport{}, fmt.Errorf(messages.CacheUnknownTypeFmt, t)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	report := StatsReport{Type: t}
	now := m.now()
	for _, entry := range m.entries[t] {
		if now.After(entry.expiresAt) {
			continue
		}
		report.Entries++
		report.Bytes += int64(len(entry.payload))
	}
	return report, nil
}
