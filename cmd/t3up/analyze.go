package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/t3up/analyzer/internal/analyzer"
	"github.com/t3up/analyzer/internal/cache"
	"github.com/t3up/analyzer/internal/config"
	"github.com/t3up/analyzer/internal/discovery"
	"github.com/t3up/analyzer/internal/messages"
	"github.com/t3up/analyzer/internal/registry"
	"github.com/t3up/analyzer/internal/report"
	"github.com/t3up/analyzer/internal/version"
)

// registryRate bounds outbound registry traffic.
const (
	registryBurst     = 5
	registryPerSecond = 5
)

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var (
		targetFlag  string
		formatFlags []string
		outputFlag  string
		refreshFlag bool
	)
	cmd := &cobra.Command{
		Use:   messages.AnalyzeUse,
		Short: messages.AnalyzeShort,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, args[0], targetFlag, formatFlags, outputFlag, refreshFlag)
		},
	}
	cmd.Flags().StringVar(&targetFlag, "target", "", messages.AnalyzeTargetFlagHelp)
	cmd.Flags().StringSliceVar(&formatFlags, "format", nil, messages.AnalyzeFormatFlagHelp)
	cmd.Flags().StringVar(&outputFlag, "output", "", messages.AnalyzeOutputFlagHelp)
	cmd.Flags().BoolVar(&refreshFlag, "refresh", false, messages.AnalyzeRefreshFlagHelp)
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, path, targetFlag string, formatFlags []string, outputFlag string, refresh bool) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfg, configWarnings, err := root.loadConfig()
	if err != nil {
		return err
	}
	for _, warning := range configWarnings {
		_, _ = fmt.Fprintf(errOut, messages.AnalyzeWarningFmt, warning)
	}

	formats := cfg.Reporting.Formats
	if len(formatFlags) > 0 {
		formats = formatFlags
	}
	for _, format := range formats {
		if _, err := report.NewRenderer(format); err != nil {
			return &usageError{err: err}
		}
	}

	var target version.Version
	if targetFlag != "" {
		parsed, err := version.Parse(targetFlag)
		if err != nil {
			return &usageError{err: fmt.Errorf(messages.AnalyzeInvalidTargetFmt, targetFlag, err)}
		}
		target = parsed
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	pipeline := discovery.NewPipeline(discovery.WithStore(store, cfg.AnalyzerCacheTTL("discovery")))
	res, err := pipeline.Discover(cmd.Context(), path, discovery.Options{
		DiscoverConfiguration: true,
		Validate:              true,
		Extensions:            true,
		ForceRefresh:          refresh,
	})
	if err != nil {
		return err
	}
	inst := res.Installation
	for _, warning := range res.Warnings {
		_, _ = fmt.Fprintf(errOut, messages.AnalyzeWarningFmt, warning)
	}

	current := inst.Version
	if target.IsZero() {
		target = version.Version{Major: current.Major + 1}
	}

	active := 0
	for _, ext := range inst.Extensions {
		if ext.Active {
			active++
		}
	}
	_, _ = fmt.Fprintf(out, messages.AnalyzeDiscoveredFmt, current, inst.Mode, inst.Path)
	_, _ = fmt.Fprintf(out, messages.AnalyzeExtensionsFmt, len(inst.Extensions), active)
	_, _ = fmt.Fprintf(out, messages.AnalyzeUpgradeFmt, current, target)

	if blocking := printValidationIssues(out, inst.ValidationIssues); blocking {
		_, _ = fmt.Fprintln(out, color.RedString(messages.AnalyzeBlockingSummary))
		return &SilentExitError{Code: exitBlocking}
	}

	reg, err := buildAnalyzers(cfg, store)
	if err != nil {
		return err
	}
	actx := &analyzer.Context{
		Installation:   inst,
		CurrentVersion: current,
		TargetVersion:  target,
	}
	results, err := reg.Run(cmd.Context(), inst, actx)
	if err != nil {
		return err
	}

	order := make([]string, 0, len(reg.Analyzers()))
	for _, a := range reg.Analyzers() {
		order = append(order, a.Name())
	}
	rc := report.BuildContext(inst, current, target, results, order)

	outputDir := cfg.Reporting.OutputDir
	if outputFlag != "" {
		outputDir = outputFlag
	}
	written, err := (&report.Writer{OutputDir: outputDir}).Write(rc, formats)
	if err != nil {
		return err
	}

	printSummary(out, rc)
	_, _ = fmt.Fprintf(out, messages.AnalyzeReportsFmt, len(written), outputDir)

	if rc.Totals.FailedAnalyses > 0 {
		_, _ = fmt.Fprintln(out, color.YellowString(
			fmt.Sprintf(messages.AnalyzeFailureCountFmt, rc.Totals.FailedAnalyses, rc.Totals.Analyses)))
		return &SilentExitError{Code: exitFailure}
	}
	_, _ = fmt.Fprintln(out, color.GreenString(messages.AnalyzeCleanSummary))
	return nil
}

// buildStore assembles the cache backing discovery and analysis. With the
// cache disabled, a process-local store still serves the current run.
func buildStore(cfg *config.Config) (cache.Store, error) {
	if !cfg.CacheEnabled() {
		return cache.NewMemory(), nil
	}
	dir, err := cfg.CacheDir()
	if err != nil {
		return nil, err
	}
	return cache.NewLayered(cache.NewMemory(), cache.NewDisk(dir)), nil
}

// buildAnalyzers registers every enabled analyzer, each wrapped in the
// result cache.
func buildAnalyzers(cfg *config.Config, store cache.Store) (*analyzer.Registry, error) {
	limiter := registry.NewRateLimiter(registryBurst, registryPerSecond)
	token := cfg.Git.GitHub.Token
	github := registry.NewGitHubClient("", token, limiter)
	if cfg.Git.TimeoutSeconds > 0 {
		github = github.WithTimeout(cfg.GitTimeout())
	}

	analyzers := []analyzer.Analyzer{
		&analyzer.AvailabilityAnalyzer{
			TER:       registry.NewTERClient("", "", limiter),
			Packagist: registry.NewPackagistClient("", "", limiter),
			GitHub:    github,
			RepoOf:    composerRepo,
		},
		analyzer.NewRectorAnalyzer(cfg.Rector.BinaryPath, cfg.RectorTimeout()),
		analyzer.NewFractorAnalyzer(cfg.Fractor.BinaryPath, cfg.FractorTimeout()),
		analyzer.LOCAnalyzer{},
	}

	reg := analyzer.NewRegistry(cfg.Analysis.Workers)
	for _, a := range analyzers {
		if !cfg.AnalyzerEnabled(a.Name()) {
			continue
		}
		wrapped := analyzer.NewCachingAnalyzer(a, store, cfg.AnalyzerCacheTTL(a.Name()), cfg.AnalyzerOptions(a.Name()))
		if err := reg.Register(wrapped); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// composerRepo assumes the composer vendor/name pair names the source
// repository, which holds for the vast majority of published extensions.
func composerRepo(composerName string) (string, string, bool) {
	parts := strings.SplitN(composerName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// printValidationIssues lists the issues and reports whether any blocks the
// analysis.
func printValidationIssues(out io.Writer, issues []discovery.ValidationIssue) bool {
	blocking := false
	for _, issue := range issues {
		label := color.YellowString("[WARN]")
		if issue.Blocking() {
			label = color.RedString("[FAIL]")
			blocking = true
		}
		_, _ = fmt.Fprintf(out, messages.AnalyzeIssueLineFmt, label, issue.Rule, issue.Message)
	}
	return blocking
}

// printSummary renders the per-extension risk table.
func printSummary(out io.Writer, rc *report.ReportContext) {
	for _, block := range rc.Extensions {
		label := color.GreenString("[OK]")
		switch block.Risk.Level {
		case analyzer.RiskMedium:
			label = color.YellowString("[WARN]")
		case analyzer.RiskHigh, analyzer.RiskCritical:
			label = color.RedString("[FAIL]")
		}
		_, _ = fmt.Fprintf(out, messages.AnalyzeRiskLineFmt, label, block.Extension.Key, block.Risk.Mean, block.Risk.Level)
		for _, result := range block.Results {
			if !result.Successful {
				_, _ = fmt.Fprintf(out, messages.AnalyzeFailedLineFmt, result.AnalyzerName, result.ErrorMessage)
			}
		}
	}
}
