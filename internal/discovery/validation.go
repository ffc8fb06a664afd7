package discovery

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/t3up/analyzer/internal/messages"
	"github.com/t3up/analyzer/internal/pathres"
	"github.com/t3up/analyzer/internal/version"
)

// Rule examines a discovered installation and reports issues. Rules never
// block discovery itself; callers decide what Blocking issues mean.
type Rule interface {
	Name() string
	AppliesTo(inst *Installation) bool
	Check(inst *Installation) []ValidationIssue
}

// DefaultRules returns the built-in validation rules.
func DefaultRules() []Rule {
	return []Rule{
		VersionRangeRule{},
		RequiredDirectoriesRule{},
		DatabaseConfigurationRule{},
		PHPConstraintRule{},
	}
}

// Validate runs every applicable rule against the installation. A panicking
// rule contributes a single Error issue named after the rule instead of
// aborting the run.
func Validate(inst *Installation, rules []Rule) []ValidationIssue {
	var issues []ValidationIssue
	for _, rule := range rules {
		if !rule.AppliesTo(inst) {
			continue
		}
		issues = append(issues, checkRule(rule, inst)...)
	}
	return issues
}

func checkRule(rule Rule, inst *Installation) (issues []ValidationIssue) {
	defer func() {
		if r := recover(); r != nil {
			issues = []ValidationIssue{{
				Rule:     rule.Name(),
				Severity: SeverityError,
				Message:  fmt.Sprintf(messages.DiscoveryValidationPanicFmt, rule.Name(), r),
			}}
		}
	}()
	return rule.Check(inst)
}

// Core versions the analyzer understands. Older cores predate the upgrade
// tooling this project targets; newer ones have not been verified.
var (
	minSupportedCore = version.Version{Major: 8}
	maxSupportedCore = version.Version{Major: 13, Minor: 4, Patch: 99}
)

// VersionRangeRule flags installations whose core version is unknown or
// outside the supported range.
type VersionRangeRule struct{}

func (VersionRangeRule) Name() string                   { return "version-range" }
func (VersionRangeRule) AppliesTo(_ *Installation) bool { return true }

func (VersionRangeRule) Check(inst *Installation) []ValidationIssue {
	if inst.Version.IsZero() {
		return []ValidationIssue{{
			Rule:     "version-range",
			Severity: SeverityWarning,
			Message:  messages.DiscoveryVersionUnknown,
			Category: "version",
		}}
	}
	if inst.Version.Less(minSupportedCore) || maxSupportedCore.Less(inst.Version) {
		return []ValidationIssue{{
			Rule:     "version-range",
			Severity: SeverityError,
			Message: fmt.Sprintf(messages.DiscoveryVersionRangeFmt,
				inst.Version, minSupportedCore.MajorOnly(), maxSupportedCore.MajorOnly()),
			Category: "version",
		}}
	}
	return nil
}

// RequiredDirectoriesRule checks the directories each installation mode
// cannot function without.
type RequiredDirectoriesRule struct{}

func (RequiredDirectoriesRule) Name() string                   { return "required-directories" }
func (RequiredDirectoriesRule) AppliesTo(_ *Installation) bool { return true }

func (RequiredDirectoriesRule) Check(inst *Installation) []ValidationIssue {
	var required []string
	switch inst.Mode {
	case pathres.InstallComposerStandard, pathres.InstallComposerCustom:
		webDir := inst.CustomPaths[string(pathres.PathWebDir)]
		if webDir == "" {
			webDir = "public"
		}
		required = []string{"vendor", webDir}
	case pathres.InstallLegacy:
		required = []string{"typo3conf"}
	default:
		return nil
	}

	var issues []ValidationIssue
	for _, dir := range required {
		full := filepath.Join(inst.Path, dir)
		if info, err := os.Stat(full); err != nil || !info.IsDir() {
			issues = append(issues, ValidationIssue{
				Rule:          "required-directories",
				Severity:      SeverityError,
				Message:       fmt.Sprintf(messages.DiscoveryMissingDirFmt, dir),
				Category:      "filesystem",
				AffectedPaths: []string{full},
			})
		}
	}
	return issues
}

// DatabaseConfigurationRule warns when no database connection is visible in
// the parsed configuration.
type DatabaseConfigurationRule struct{}

func (DatabaseConfigurationRule) Name() string { return "database-configuration" }

// AppliesTo requires parsed configuration; without it there is no evidence
// either way.
func (DatabaseConfigurationRule) AppliesTo(inst *Installation) bool {
	return len(inst.Configuration) > 0
}

func (DatabaseConfigurationRule) Check(inst *Installation) []ValidationIssue {
	if inst.Metadata.DatabaseConfigured {
		return nil
	}
	return []ValidationIssue{{
		Rule:     "database-configuration",
		Severity: SeverityWarning,
		Message:  messages.DiscoveryNoDatabaseConfig,
		Category: "configuration",
		Recommendations: []string{
			"check LocalConfiguration.php or config/system/settings.php for a DB.Connections entry",
		},
	}}
}

// PHPConstraintRule verifies the composer PHP constraint is well formed.
type PHPConstraintRule struct{}

func (PHPConstraintRule) Name() string { return "php-constraint" }

func (PHPConstraintRule) AppliesTo(inst *Installation) bool {
	return inst.Metadata.PHPConstraint != ""
}

func (PHPConstraintRule) Check(inst *Installation) []ValidationIssue {
	if _, err := semver.NewConstraint(inst.Metadata.PHPConstraint); err != nil {
		return []ValidationIssue{{
			Rule:     "php-constraint",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf(messages.DiscoveryPHPConstraintBadFmt, inst.Metadata.PHPConstraint),
			Category: "configuration",
			Context:  map[string]any{"constraint": inst.Metadata.PHPConstraint},
		}}
	}
	return nil
}
