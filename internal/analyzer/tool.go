package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/t3up/analyzer/internal/discovery"
	"github.com/t3up/analyzer/internal/errcode"
	"github.com/t3up/analyzer/internal/messages"
)

// Seams for tests.
var (
	execLookPath       = exec.LookPath
	execCommandContext = exec.CommandContext
)

// DefaultToolTimeout bounds one external tool invocation.
const DefaultToolTimeout = 300 * time.Second

// FindingSeverity grades one transformation finding.
type FindingSeverity string

const (
	FindingCritical   FindingSeverity = "critical"
	FindingWarning    FindingSeverity = "warning"
	FindingInfo       FindingSeverity = "info"
	FindingSuggestion FindingSeverity = "suggestion"
)

// Finding is one applied rule occurrence reported by a transformation tool.
type Finding struct {
	File     string          `json:"file"`
	Line     int             `json:"line"`
	Rule     string          `json:"rule"`
	Message  string          `json:"message"`
	Severity FindingSeverity `json:"severity"`
	Old      string          `json:"old,omitempty"`
	New      string          `json:"new,omitempty"`
}

// toolOutput mirrors the JSON the transformation tools print on stdout.
type toolOutput struct {
	ChangedFiles []struct {
		File           string `json:"file"`
		AppliedRectors []struct {
			Class   string `json:"class"`
			Line    int    `json:"line"`
			Message string `json:"message"`
			Old     string `json:"old"`
			New     string `json:"new"`
		} `json:"applied_rectors"`
	} `json:"changed_files"`
}

// configWriter produces the tool's config file for one analysis and returns
// its path plus a cleanup.
type configWriter func(ext *discovery.Extension, actx *Context) (string, func(), error)

// ToolAnalyzer wraps an external source-transformation tool: it generates a
// config, runs the binary read-only against the extension, and aggregates
// the findings it reports.
type ToolAnalyzer struct {
	name        string
	binary      string
	timeout     time.Duration
	flags       []string
	writeConfig configWriter
}

func (t *ToolAnalyzer) Name() string { return t.name }

// Supports requires a source path to point the tool at.
func (t *ToolAnalyzer) Supports(ext *discovery.Extension) bool {
	return ext.Path != ""
}

func (t *ToolAnalyzer) RequiredTools() []string { return []string{t.binary} }

func (t *ToolAnalyzer) HasRequiredTools() bool {
	if strings.ContainsRune(t.binary, os.PathSeparator) {
		info, err := os.Stat(t.binary)
		return err == nil && !info.IsDir()
	}
	_, err := execLookPath(t.binary)
	return err == nil
}

func (t *ToolAnalyzer) Analyze(ctx context.Context, ext *discovery.Extension, actx *Context) (*Result, error) {
	configPath, cleanup, err := t.writeConfig(ext, actx)
	if err != nil {
		return nil, fmt.Errorf(messages.AnalyzerConfigFmt, t.name, err)
	}
	defer cleanup()

	stdout, err := t.run(ctx, configPath, ext, actx)
	if err != nil {
		return nil, err
	}

	var output toolOutput
	if err := json.Unmarshal(stdout, &output); err != nil {
		return nil, fmt.Errorf(messages.AnalyzerOutputFmt, t.name, err)
	}
	findings := flattenFindings(output)

	result := &Result{
		AnalyzerName: t.name,
		ExtensionKey: ext.Key,
		Successful:   true,
	}
	result.Metrics = t.aggregate(findings, ext)
	result.RiskScore = transformationRisk(result.Metrics)
	if len(findings) > 0 {
		result.Metrics["findings"] = findings
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("apply %s automatically where possible before the manual migration pass", t.name))
	}
	return result, nil
}

// run executes the tool with the invocation contract
// `binary --config <cfg> <target> [flags]`, cwd at the installation root.
func (t *ToolAnalyzer) run(ctx context.Context, configPath string, ext *discovery.Extension, actx *Context) ([]byte, error) {
	timeout := t.timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{"--config", configPath, ext.Path}, t.flags...)
	cmd := execCommandContext(runCtx, t.binary, args...)
	if actx.Installation != nil {
		cmd.Dir = actx.Installation.Path
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errcode.New(errcode.AnalyzerTimeout, messages.AnalyzerTimeoutFmt, t.name, timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, errcode.New(errcode.AnalyzerExitNonzero, messages.AnalyzerExitFmt,
				t.name, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf(messages.AnalyzerStartFmt, t.name, err)
	}
	return stdout.Bytes(), nil
}

func flattenFindings(output toolOutput) []Finding {
	var findings []Finding
	for _, file := range output.ChangedFiles {
		for _, applied := range file.AppliedRectors {
			findings = append(findings, Finding{
				File:     file.File,
				Line:     applied.Line,
				Rule:     applied.Class,
				Message:  applied.Message,
				Severity: classifyRule(applied.Class),
				Old:      applied.Old,
				New:      applied.New,
			})
		}
	}
	return findings
}

// classifyRule grades a finding by its rule class name.
func classifyRule(class string) FindingSeverity {
	lower := strings.ToLower(class)
	switch {
	case strings.Contains(lower, "breaking") || strings.Contains(lower, "removed"):
		return FindingCritical
	case strings.Contains(lower, "deprecat"):
		return FindingWarning
	case strings.Contains(lower, "suggest"):
		return FindingSuggestion
	default:
		return FindingInfo
	}
}

// fixMinutes estimates manual effort per finding.
var fixMinutes = map[FindingSeverity]int{
	FindingCritical:   30,
	FindingWarning:    15,
	FindingInfo:       5,
	FindingSuggestion: 2,
}

const topN = 5

func (t *ToolAnalyzer) aggregate(findings []Finding, ext *discovery.Extension) map[string]any {
	perSeverity := map[string]int{}
	perFile := map[string]int{}
	perRule := map[string]int{}
	minutes := 0
	for _, finding := range findings {
		perSeverity[string(finding.Severity)]++
		perFile[finding.File]++
		perRule[finding.Rule]++
		minutes += fixMinutes[finding.Severity]
	}

	totalFiles := countPHPFiles(ext.Path)
	metrics := map[string]any{
		"total_findings":        len(findings),
		"findings_by_severity":  perSeverity,
		"affected_files":        len(perFile),
		"total_files":           totalFiles,
		"distinct_rules":        len(perRule),
		"top_files":             topCounts(perFile, topN),
		"top_rules":             topCounts(perRule, topN),
		"estimated_fix_minutes": minutes,
		"complexity":            complexityScore(findings, perFile, perRule),
		"has_breaking_changes":  perSeverity[string(FindingCritical)] > 0,
		"has_deprecations":      perSeverity[string(FindingWarning)] > 0,
	}
	return metrics
}

// complexityScore grows with rule diversity and finding density, capped at
// 10 so it composes with the risk formula's (1 + complexity/10) factor.
func complexityScore(findings []Finding, perFile, perRule map[string]int) float64 {
	if len(findings) == 0 {
		return 0
	}
	density := float64(len(findings)) / float64(len(perFile))
	score := 0.5*float64(len(perRule)) + density
	if score > 10 {
		score = 10
	}
	return score
}

type countEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// topCounts returns the n highest counts, ties broken by name for
// deterministic reports.
func topCounts(counts map[string]int, n int) []countEntry {
	entries := make([]countEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, countEntry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// transformationRisk scores aggregated findings:
//
//	base = 1 + 0.8·critical + 0.3·warnings + 2·(affectedFiles/totalFiles)
//	base ·= 1 + complexity/10
//	base += 1.0 if estimated hours > 8, else 0.5 if > 4
//
// clamped to [0,10].
func transformationRisk(metrics map[string]any) float64 {
	perSeverity, _ := metrics["findings_by_severity"].(map[string]int)
	affected, _ := metrics["affected_files"].(int)
	totalFiles, _ := metrics["total_files"].(int)
	minutes, _ := metrics["estimated_fix_minutes"].(int)
	complexity, _ := metrics["complexity"].(float64)

	ratio := 0.0
	if totalFiles > 0 {
		ratio = float64(affected) / float64(totalFiles)
	}
	base := 1 + 0.8*float64(perSeverity[string(FindingCritical)]) +
		0.3*float64(perSeverity[string(FindingWarning)]) + 2*ratio
	base *= 1 + complexity/10

	hours := float64(minutes) / 60
	switch {
	case hours > 8:
		base += 1.0
	case hours > 4:
		base += 0.5
	}
	return clampScore(base)
}

func countPHPFiles(root string) int {
	count := 0
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, ".php") {
			count++
		}
		return nil
	})
	return count
}
