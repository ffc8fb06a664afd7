package discovery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/t3up/analyzer/internal/version"
)

// corePackages are the composer packages whose installed version is the
// installation's core version.
var corePackages = []string{"typo3/cms-core", "typo3/cms", "typo3/minimal"}

// VersionStrategy extracts the installed core version from one evidence
// source. Reliability is a fixed score in [0,1] describing how exact the
// source is: a lock file pins the installed version, a manifest only
// constrains it.
type VersionStrategy interface {
	Name() string
	Reliability() float64
	Extract(ctx context.Context, installPath string) (version.Version, bool)
}

// DefaultVersionStrategies returns the extraction chain in descending
// reliability order.
func DefaultVersionStrategies() []VersionStrategy {
	return []VersionStrategy{
		ComposerLockVersion{},
		ComposerConstraintVersion{},
		SourceFileVersion{},
		LegacySourceVersion{},
	}
}

// extractVersion runs strategies in order and returns the first success
// together with the winning strategy.
func extractVersion(ctx context.Context, strategies []VersionStrategy, installPath string) (version.Version, VersionStrategy, bool) {
	for _, strategy := range strategies {
		if v, ok := strategy.Extract(ctx, installPath); ok {
			return v, strategy, true
		}
	}
	return version.Version{}, nil, false
}

// ComposerLockVersion reads the exact installed core version from
// composer.lock.
type ComposerLockVersion struct{}

func (ComposerLockVersion) Name() string         { return "composer-lock" }
func (ComposerLockVersion) Reliability() float64 { return 1.0 }

func (ComposerLockVersion) Extract(_ context.Context, installPath string) (version.Version, bool) {
	data, err := os.ReadFile(filepath.Join(installPath, "composer.lock"))
	if err != nil {
		return version.Version{}, false
	}
	var lock struct {
		Packages []struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"packages"`
	}
	if err := json.Unmarshal(data, &lock); err != nil {
		return version.Version{}, false
	}
	for _, pkg := range lock.Packages {
		for _, core := range corePackages {
			if pkg.Name == core {
				if v, err := version.Parse(pkg.Version); err == nil {
					return v, true
				}
			}
		}
	}
	return version.Version{}, false
}

// ComposerConstraintVersion derives a lower-bound version from the
// composer.json requirement constraint.
type ComposerConstraintVersion struct{}

func (ComposerConstraintVersion) Name() string         { return "composer-constraint" }
func (ComposerConstraintVersion) Reliability() float64 { return 0.7 }

var constraintNumbers = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

func (ComposerConstraintVersion) Extract(_ context.Context, installPath string) (version.Version, bool) {
	data, err := os.ReadFile(filepath.Join(installPath, "composer.json"))
	if err != nil {
		return version.Version{}, false
	}
	var manifest struct {
		Require map[string]string `json:"require"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return version.Version{}, false
	}
	for _, core := range corePackages {
		constraint, ok := manifest.Require[core]
		if !ok {
			continue
		}
		groups := constraintNumbers.FindStringSubmatch(constraint)
		if groups == nil {
			continue
		}
		v := version.Version{}
		v.Major, _ = strconv.Atoi(groups[1])
		if groups[2] != "" {
			v.Minor, _ = strconv.Atoi(groups[2])
		}
		if groups[3] != "" {
			v.Patch, _ = strconv.Atoi(groups[3])
		}
		return v, true
	}
	return version.Version{}, false
}

// versionConstant matches the VERSION constant in the core's
// Typo3Version class.
var versionConstant = regexp.MustCompile(`VERSION\s*=\s*'(\d+\.\d+\.\d+[^']*)'`)

// SourceFileVersion inspects the installed core sources for the version
// constant.
type SourceFileVersion struct{}

func (SourceFileVersion) Name() string         { return "source-file" }
func (SourceFileVersion) Reliability() float64 { return 0.6 }

func (SourceFileVersion) Extract(_ context.Context, installPath string) (version.Version, bool) {
	candidates := []string{
		filepath.Join(installPath, "vendor", "typo3", "cms-core", "Classes", "Information", "Typo3Version.php"),
		filepath.Join(installPath, "typo3", "sysext", "core", "Classes", "Information", "Typo3Version.php"),
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if groups := versionConstant.FindSubmatch(data); groups != nil {
			if v, err := version.Parse(string(groups[1])); err == nil {
				return v, true
			}
		}
	}
	return version.Version{}, false
}

// LegacySourceVersion falls back to the versioned typo3_src directory name
// used by pre-composer deployments.
type LegacySourceVersion struct{}

func (LegacySourceVersion) Name() string         { return "legacy-source" }
func (LegacySourceVersion) Reliability() float64 { return 0.3 }

var legacySourceName = regexp.MustCompile(`typo3_src-(\d+\.\d+(?:\.\d+)?)`)

func (LegacySourceVersion) Extract(_ context.Context, installPath string) (version.Version, bool) {
	src := filepath.Join(installPath, "typo3_src")
	if target, err := os.Readlink(src); err == nil {
		if groups := legacySourceName.FindStringSubmatch(target); groups != nil {
			if v, err := version.Parse(groups[1]); err == nil {
				return v, true
			}
		}
	}
	entries, err := os.ReadDir(installPath)
	if err != nil {
		return version.Version{}, false
	}
	for _, entry := range entries {
		if groups := legacySourceName.FindStringSubmatch(entry.Name()); groups != nil {
			if v, err := version.Parse(groups[1]); err == nil {
				return v, true
			}
		}
	}
	return version.Version{}, false
}
