package pathres

import (
	"context"
	"sort"

	"github.com/t3up/analyzer/internal/errcode"
	"github.com/t3up/analyzer/internal/messages"
)

// Priority bands for strategy registration. Strategies outside these bands
// are rejected at registration time.
const (
	PriorityFallback = 10
	PriorityLow      = 25
	PriorityMedium   = 50
	PriorityHigh     = 75
	PriorityPrimary  = 100
)

var priorityBands = map[int]bool{
	PriorityFallback: true,
	PriorityLow:      true,
	PriorityMedium:   true,
	PriorityHigh:     true,
	PriorityPrimary:  true,
}

// Strategy resolves one path role within one or more layout families.
type Strategy interface {
	// Identifier names the strategy for diagnostics and conflict detection.
	Identifier() string
	// Supports reports whether the strategy handles the pair at all.
	Supports(pathType PathType, installType InstallationType) bool
	// Priority returns the band for a supported pair.
	Priority(pathType PathType, installType InstallationType) int
	// Resolve probes the filesystem for the requested path.
	Resolve(ctx context.Context, req Request) Response
}

type registration struct {
	strategy Strategy
	order    int
}

// Registry holds the registered strategies in stable order.
type Registry struct {
	registrations []registration
}

// NewRegistry returns an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a strategy. A second strategy with the same identifier
// and an overlapping equal-priority pair is a configuration error.
func (r *Registry) Register(s Strategy) error {
	for _, existing := range r.registrations {
		if existing.strategy.Identifier() != s.Identifier() {
			continue
		}
		for _, pathType := range PathTypes() {
			for _, installType := range installationTypes() {
				if !existing.strategy.Supports(pathType, installType) || !s.Supports(pathType, installType) {
					continue
				}
				if existing.strategy.Priority(pathType, installType) == s.Priority(pathType, installType) {
					return errcode.New(errcode.StrategyConflict,
						messages.PathResStrategyConflictFmt, s.Identifier(), pathType, installType)
				}
			}
		}
	}
	for _, pathType := range PathTypes() {
		for _, installType := range installationTypes() {
			if !s.Supports(pathType, installType) {
				continue
			}
			if !priorityBands[s.Priority(pathType, installType)] {
				return errcode.New(errcode.StrategyConflict,
					messages.PathResInvalidPriorityFmt, s.Identifier(), s.Priority(pathType, installType))
			}
		}
	}
	r.registrations = append(r.registrations, registration{strategy: s, order: len(r.registrations)})
	return nil
}

// candidatesFor returns strategies supporting the pair, ordered by descending
// priority with registration order breaking ties.
func (r *Registry) candidatesFor(pathType PathType, installType InstallationType) []Strategy {
	var matched []registration
	for _, reg := range r.registrations {
		if reg.strategy.Supports(pathType, installType) {
			matched = append(matched, reg)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		pi := matched[i].strategy.Priority(pathType, installType)
		pj := matched[j].strategy.Priority(pathType, installType)
		if pi != pj {
			return pi > pj
		}
		return matched[i].order < matched[j].order
	})
	out := make([]Strategy, len(matched))
	for i, reg := range matched {
		out[i] = reg.strategy
	}
	return out
}

// SupportsPathType reports whether any strategy handles pathType at all.
func (r *Registry) SupportsPathType(pathType PathType) bool {
	for _, reg := range r.registrations {
		for _, installType := range installationTypes() {
			if reg.strategy.Supports(pathType, installType) {
				return true
			}
		}
	}
	return false
}

// AvailablePathTypesFor lists path types resolvable for installType,
// respecting the static compatibility table.
func (r *Registry) AvailablePathTypesFor(installType InstallationType) []PathType {
	var out []PathType
	for _, pathType := range PathTypes() {
		if !Compatible(pathType, installType) {
			continue
		}
		if len(r.candidatesFor(pathType, installType)) > 0 {
			out = append(out, pathType)
		}
	}
	return out
}

func installationTypes() []InstallationType {
	return []InstallationType{
		InstallComposerStandard,
		InstallComposerCustom,
		InstallLegacy,
		InstallDocker,
		InstallCustom,
	}
}
