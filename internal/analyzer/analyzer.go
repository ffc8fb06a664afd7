// Package analyzer runs the per-extension analyzers and aggregates their
// risk scores. Analyzers are pure given stable external state; caching is a
// decorator, never baked into an analyzer.
package analyzer

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/t3up/analyzer/internal/discovery"
	"github.com/t3up/analyzer/internal/version"
)

// Analyzer examines one extension in the context of an upgrade.
type Analyzer interface {
	Name() string
	Supports(ext *discovery.Extension) bool
	Analyze(ctx context.Context, ext *discovery.Extension, actx *Context) (*Result, error)
}

// ToolRequirer is implemented by analyzers that wrap external executables.
type ToolRequirer interface {
	RequiredTools() []string
	HasRequiredTools() bool
}

// Context carries the installation-wide inputs shared by every analysis of
// one run.
type Context struct {
	Installation   *discovery.Installation
	CurrentVersion version.Version
	TargetVersion  version.Version
	Options        map[string]string
}

// Hash returns a stable digest of the upgrade version pair. It feeds the
// analysis cache key, so two runs with the same pair share entries.
func (c *Context) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s->%s", c.CurrentVersion, c.TargetVersion)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// RiskLevel bands an aggregate score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Result is the outcome of one (analyzer, extension) pair. It survives a
// JSON round-trip structurally unchanged, which the analysis cache relies on.
type Result struct {
	AnalyzerName    string         `json:"analyzer_name"`
	ExtensionKey    string         `json:"extension_key"`
	Metrics         map[string]any `json:"metrics,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	RiskScore       float64        `json:"risk_score"`
	Successful      bool           `json:"successful"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	FromCache       bool           `json:"from_cache,omitempty"`
}

// RiskLevel bands the result's score: [0,2] low, (2,5] medium, (5,8] high,
// above critical.
func (r *Result) RiskLevel() RiskLevel {
	return LevelForScore(r.RiskScore)
}

// LevelForScore bands an arbitrary score on the shared scale.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score <= 2:
		return RiskLow
	case score <= 5:
		return RiskMedium
	case score <= 8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// failedResult builds the Successful=false result the orchestrator records
// for an analyzer failure.
func failedResult(analyzerName, extensionKey, message string) *Result {
	return &Result{
		AnalyzerName: analyzerName,
		ExtensionKey: extensionKey,
		Successful:   false,
		ErrorMessage: message,
	}
}

// clampScore bounds a risk score to the shared [0,10] scale.
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
