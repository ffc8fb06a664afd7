package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/t3up/analyzer/internal/confparse"
	"github.com/t3up/analyzer/internal/messages"
	"github.com/t3up/analyzer/internal/pathres"
)

// DetectionStrategy decides whether a path holds an installation of one
// layout family and builds the Installation skeleton when it does.
type DetectionStrategy interface {
	Name() string
	// RequiredIndicators lists files that must exist at the installation
	// root for the strategy to be worth invoking.
	RequiredIndicators() []string
	Priority() int
	// Detect returns nil when the path is not an installation of this
	// family. An error means the strategy could not decide.
	Detect(ctx context.Context, path string) (*Installation, error)
}

// StrategyAttempt records one strategy's outcome for diagnostics.
type StrategyAttempt struct {
	Strategy          string   `json:"strategy"`
	Supported         bool     `json:"supported"`
	MissingIndicators []string `json:"missing_indicators,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// composerManifest is the subset of composer.json the detector reads.
type composerManifest struct {
	Require map[string]string `json:"require"`
	Extra   struct {
		Typo3CMS struct {
			WebDir string `json:"web-dir"`
		} `json:"typo3/cms"`
	} `json:"extra"`
}

// ComposerDetection detects composer-managed installations and classifies
// them as composer-standard or composer-custom based on the configured
// web directory.
type ComposerDetection struct {
	Versions []VersionStrategy
}

func (ComposerDetection) Name() string                 { return "composer" }
func (ComposerDetection) RequiredIndicators() []string { return []string{"composer.json"} }
func (ComposerDetection) Priority() int                { return 100 }

func (d ComposerDetection) Detect(ctx context.Context, path string) (*Installation, error) {
	data, err := os.ReadFile(filepath.Join(path, "composer.json"))
	if err != nil {
		return nil, fmt.Errorf(messages.DiscoveryReadManifestFmt, err)
	}
	var manifest composerManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf(messages.DiscoveryInvalidManifestFmt, err)
	}

	isTypo3 := false
	for _, core := range corePackages {
		if _, ok := manifest.Require[core]; ok {
			isTypo3 = true
			break
		}
	}
	if !isTypo3 {
		return nil, nil
	}

	inst := &Installation{
		Path: path,
		Mode: pathres.InstallComposerStandard,
	}
	if webDir := manifest.Extra.Typo3CMS.WebDir; webDir != "" {
		inst.CustomPaths = map[string]string{string(pathres.PathWebDir): webDir}
		if webDir != "public" {
			inst.Mode = pathres.InstallComposerCustom
		}
	}
	if constraint, ok := manifest.Require["php"]; ok {
		inst.Metadata.PHPConstraint = constraint
	}
	if info, err := os.Stat(filepath.Join(path, "composer.lock")); err == nil {
		inst.Metadata.LastModified = info.ModTime()
	}

	strategies := d.Versions
	if strategies == nil {
		strategies = DefaultVersionStrategies()
	}
	if v, winner, ok := extractVersion(ctx, strategies, path); ok {
		inst.Version = v
		inst.Metadata.VersionSource = winner.Name()
		inst.Metadata.VersionReliability = winner.Reliability()
	}
	return inst, nil
}

// LegacyDetection detects pre-composer installations laid out with the
// web root at the installation root.
type LegacyDetection struct {
	Versions []VersionStrategy
}

func (LegacyDetection) Name() string                 { return "legacy" }
func (LegacyDetection) RequiredIndicators() []string { return []string{"typo3conf"} }
func (LegacyDetection) Priority() int                { return 75 }

func (d LegacyDetection) Detect(ctx context.Context, path string) (*Installation, error) {
	hasSource := false
	for _, marker := range []string{"typo3_src", "typo3", "t3lib"} {
		if _, err := os.Stat(filepath.Join(path, marker)); err == nil {
			hasSource = true
			break
		}
	}
	if !hasSource {
		return nil, nil
	}

	inst := &Installation{Path: path, Mode: pathres.InstallLegacy}
	if info, err := os.Stat(filepath.Join(path, "typo3conf")); err == nil {
		inst.Metadata.LastModified = info.ModTime()
	}

	strategies := d.Versions
	if strategies == nil {
		strategies = DefaultVersionStrategies()
	}
	if v, winner, ok := extractVersion(ctx, strategies, path); ok {
		inst.Version = v
		inst.Metadata.VersionSource = winner.Name()
		inst.Metadata.VersionReliability = winner.Reliability()
	}
	return inst, nil
}

// DockerDetection detects containerized deployments described by a compose
// file naming a TYPO3 service.
type DockerDetection struct {
	Versions []VersionStrategy
	Parser   *confparse.YAMLParser
}

func (DockerDetection) Name() string { return "docker" }

func (DockerDetection) RequiredIndicators() []string {
	return []string{"docker-compose.yml"}
}

func (DockerDetection) Priority() int { return 50 }

func (d DockerDetection) Detect(ctx context.Context, path string) (*Installation, error) {
	parser := d.Parser
	if parser == nil {
		parser = confparse.NewYAMLParser(nil)
	}
	result := parser.Parse(ctx, filepath.Join(path, "docker-compose.yml"))
	if !result.Successful() {
		return nil, fmt.Errorf(messages.DiscoveryComposeParseFmt, result.Errors[0].Message)
	}

	services, _ := result.Data["services"].(map[string]any)
	matched := false
	for name, raw := range services {
		service, _ := raw.(map[string]any)
		image, _ := service["image"].(string)
		if strings.Contains(strings.ToLower(image), "typo3") || strings.Contains(strings.ToLower(name), "typo3") {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil
	}

	inst := &Installation{Path: path, Mode: pathres.InstallDocker}
	strategies := d.Versions
	if strategies == nil {
		strategies = DefaultVersionStrategies()
	}
	// Version evidence usually lives in a mounted project directory.
	roots := []string{path, filepath.Join(path, "html"), filepath.Join(path, "app")}
	for _, root := range roots {
		if v, winner, ok := extractVersion(ctx, strategies, root); ok {
			inst.Version = v
			inst.Metadata.VersionSource = winner.Name()
			inst.Metadata.VersionReliability = winner.Reliability()
			break
		}
	}
	return inst, nil
}

// DefaultDetectionStrategies returns the built-in strategies. The pipeline
// orders them by priority.
func DefaultDetectionStrategies() []DetectionStrategy {
	return []DetectionStrategy{
		ComposerDetection{},
		LegacyDetection{},
		DockerDetection{},
	}
}
