package analyzer

import (
	"context"
	"fmt"

	"github.com/t3up/analyzer/internal/discovery"
	"github.com/t3up/analyzer/internal/messages"
	"github.com/t3up/analyzer/internal/registry"
)

// AvailabilityAnalyzer checks whether an extension has an upgrade path in
// the extension repository, the composer registry, or its source repository.
type AvailabilityAnalyzer struct {
	TER       *registry.TERClient
	Packagist *registry.PackagistClient
	GitHub    *registry.GitHubClient
	// RepoOf maps a composer name to its (owner, name) repository; nil
	// disables the source-repository lookup.
	RepoOf func(composerName string) (owner, name string, ok bool)
}

func (a *AvailabilityAnalyzer) Name() string { return "availability" }

// Supports accepts everything; system extensions ship with the core and are
// scored trivially inside Analyze.
func (a *AvailabilityAnalyzer) Supports(_ *discovery.Extension) bool { return true }

func (a *AvailabilityAnalyzer) Analyze(ctx context.Context, ext *discovery.Extension, actx *Context) (*Result, error) {
	result := &Result{
		AnalyzerName: a.Name(),
		ExtensionKey: ext.Key,
		Metrics:      map[string]any{},
		Successful:   true,
	}

	if ext.Type == discovery.ExtensionSystem {
		result.Metrics["system_extension"] = true
		result.RiskScore = 1.0
		result.Recommendations = append(result.Recommendations,
			"system extension; upgraded together with the core")
		return result, nil
	}

	ter := registry.TERAvailability{}
	if a.TER != nil {
		looked, err := a.TER.Lookup(ctx, ext.Key, actx.TargetVersion)
		if err != nil {
			return nil, fmt.Errorf(messages.AnalyzerNetworkFmt, err)
		}
		ter = looked
	}

	packagist := registry.PackagistAvailability{}
	if a.Packagist != nil && ext.ComposerName != "" {
		looked, err := a.Packagist.Lookup(ctx, ext.ComposerName, actx.TargetVersion)
		if err != nil {
			return nil, fmt.Errorf(messages.AnalyzerNetworkFmt, err)
		}
		packagist = looked
	}

	health := registry.RepoHealth{}
	if a.GitHub != nil && a.RepoOf != nil {
		if owner, name, ok := a.RepoOf(ext.ComposerName); ok {
			looked, err := a.GitHub.RepoHealth(ctx, owner, name)
			if err != nil {
				return nil, fmt.Errorf(messages.AnalyzerNetworkFmt, err)
			}
			health = looked
		}
	}

	result.Metrics["ter_available"] = ter.Available
	result.Metrics["packagist_available"] = packagist.Available
	result.Metrics["git_available"] = health.Available
	if health.Available {
		result.Metrics["git_repository_health"] = health.HealthScore
	}
	if ter.CompatibleVersion != "" {
		result.Metrics["ter_compatible_version"] = ter.CompatibleVersion
	}
	if packagist.CompatibleVersion != "" {
		result.Metrics["packagist_compatible_version"] = packagist.CompatibleVersion
	}

	result.RiskScore = availabilityRisk(ter.Available, packagist.Available, health)
	result.Recommendations = availabilityRecommendations(ext, ter, packagist, health)
	return result, nil
}

// availabilityRisk scores the upgrade path on the shared [0,10] scale.
//
// Each source contributes to an availability sum a: the extension
// repository weighs 4, the composer registry 3, and the source repository
// 2·health (health defaults to 0.5 when the API reports none). Bands:
// a >= 6 scores 1.5, a >= 3 scores 2.5, a >= 1.5 scores 5.0, else 9.0.
func availabilityRisk(ter, packagist bool, health registry.RepoHealth) float64 {
	a := 0.0
	if ter {
		a += 4
	}
	if packagist {
		a += 3
	}
	if health.Available {
		h := health.HealthScore
		if h == 0 {
			h = 0.5
		}
		a += 2 * h
	}
	switch {
	case a >= 6:
		return 1.5
	case a >= 3:
		return 2.5
	case a >= 1.5:
		return 5.0
	default:
		return 9.0
	}
}

func availabilityRecommendations(ext *discovery.Extension, ter registry.TERAvailability, packagist registry.PackagistAvailability, health registry.RepoHealth) []string {
	var out []string
	switch {
	case packagist.Available:
		out = append(out, fmt.Sprintf("update %s to %s via composer", ext.Key, packagist.CompatibleVersion))
	case ter.Available:
		out = append(out, fmt.Sprintf("a compatible release %s exists in the extension repository", ter.CompatibleVersion))
	case health.Available:
		out = append(out, fmt.Sprintf("no registry release found; check the source repository %s for a compatible tag", health.URL))
	default:
		out = append(out, fmt.Sprintf("no upgrade path found for %s; plan to replace or fork it", ext.Key))
	}
	if health.Available && health.Archived {
		out = append(out, "the source repository is archived; treat it as unmaintained")
	}
	return out
}
