// Package discovery detects a TYPO3 installation at a filesystem path,
// extracts its version, validates it, and enumerates the extensions it
// depends on from composer.lock, the package state file, and directory scans.
package discovery

import (
	"fmt"
	"time"

	"github.com/t3up/analyzer/internal/messages"
	"github.com/t3up/analyzer/internal/pathres"
	"github.com/t3up/analyzer/internal/version"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ValidationIssue is one finding from a validation rule.
type ValidationIssue struct {
	Rule            string         `json:"rule"`
	Severity        Severity       `json:"severity"`
	Message         string         `json:"message"`
	Category        string         `json:"category,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	AffectedPaths   []string       `json:"affected_paths,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// Blocking reports whether the issue should stop an upgrade run.
func (i ValidationIssue) Blocking() bool {
	return i.Severity == SeverityError || i.Severity == SeverityCritical
}

// ExtensionType classifies where an extension comes from.
type ExtensionType string

const (
	ExtensionLocal      ExtensionType = "local"
	ExtensionSystem     ExtensionType = "system"
	ExtensionThirdParty ExtensionType = "third-party"
)

// Extension is one discoverable add-on module within an installation.
type Extension struct {
	Key             string          `json:"key"`
	Title           string          `json:"title,omitempty"`
	Version         version.Version `json:"version"`
	Type            ExtensionType   `json:"type"`
	ComposerName    string          `json:"composer_name,omitempty"`
	Path            string          `json:"path,omitempty"`
	Active          bool            `json:"active"`
	EmConfiguration map[string]any  `json:"em_configuration,omitempty"`
}

// Metadata carries evidence gathered during installation detection.
type Metadata struct {
	PHPConstraint      string          `json:"php_constraint,omitempty"`
	DatabaseConfigured bool            `json:"database_configured"`
	Features           map[string]bool `json:"features,omitempty"`
	LastModified       time.Time       `json:"last_modified,omitzero"`
	VersionSource      string          `json:"version_source,omitempty"`
	VersionReliability float64         `json:"version_reliability,omitempty"`
}

// Installation is the discovered top-level unit. It exclusively owns its
// Extensions; after discovery it is consumed read-only.
type Installation struct {
	Path             string                    `json:"path"`
	Version          version.Version           `json:"version"`
	Mode             pathres.InstallationType  `json:"mode"`
	CustomPaths      map[string]string         `json:"custom_paths,omitempty"`
	Metadata         Metadata                  `json:"metadata"`
	Configuration    map[string]map[string]any `json:"configuration,omitempty"`
	ValidationIssues []ValidationIssue         `json:"validation_issues,omitempty"`
	Extensions       []Extension               `json:"extensions,omitempty"`
}

// AddExtension appends ext, enforcing key uniqueness.
func (inst *Installation) AddExtension(ext Extension) error {
	for _, existing := range inst.Extensions {
		if existing.Key == ext.Key {
			return fmt.Errorf(messages.DiscoveryKeyConflictFmt, ext.Key)
		}
	}
	inst.Extensions = append(inst.Extensions, ext)
	return nil
}

// FindExtension returns the extension with the given key, if present.
func (inst *Installation) FindExtension(key string) (*Extension, bool) {
	for i := range inst.Extensions {
		if inst.Extensions[i].Key == key {
			return &inst.Extensions[i], true
		}
	}
	return nil, false
}

// BlockingIssues returns the validation issues that should block a run.
func (inst *Installation) BlockingIssues() []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range inst.ValidationIssues {
		if issue.Blocking() {
			out = append(out, issue)
		}
	}
	return out
}

// AttachConfiguration stores parsed configuration data under key.
func (inst *Installation) AttachConfiguration(key string, data map[string]any) {
	if inst.Configuration == nil {
		inst.Configuration = make(map[string]map[string]any)
	}
	inst.Configuration[key] = data
}
