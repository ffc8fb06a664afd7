package messages

// CLI strings.
const (
	// RootUse is the CLI command name.
	RootUse = "t3up"
	// RootShort is the short description for the root command.
	RootShort = "TYPO3 upgrade analyzer"
	// RootLong describes what the tool does on the root help screen.
	RootLong = "Analyzes a TYPO3 installation and reports the upgrade risk of every installed extension."

	// RootConfigFlagHelp describes the --config flag.
	RootConfigFlagHelp = "path to the config file (default ~/.t3up/config.toml)"

	// VersionTemplate renders --version output.
	VersionTemplate = "{{.Version}}\n"
	// VersionCommitFmt formats the commit metadata.
	VersionCommitFmt = "commit %s"
	// VersionBuildFmt formats the build date metadata.
	VersionBuildFmt = "built %s"
	// VersionFullFmt combines the version with its metadata.
	VersionFullFmt = "%s (%s)"
)

// analyze command strings.
const (
	AnalyzeUse   = "analyze <path>"
	AnalyzeShort = "Analyze an installation for upgrade risk"

	AnalyzeTargetFlagHelp  = "target core version (default: next major)"
	AnalyzeFormatFlagHelp  = "report formats to write (html, markdown, json)"
	AnalyzeOutputFlagHelp  = "report output directory"
	AnalyzeRefreshFlagHelp = "bypass cached discovery and analysis results"

	AnalyzeInvalidTargetFmt = "invalid --target version %q: %v"

	AnalyzeDiscoveredFmt   = "Discovered TYPO3 %s (%s) at %s\n"
	AnalyzeExtensionsFmt   = "Extensions: %d (%d active)\n"
	AnalyzeUpgradeFmt      = "Analyzing upgrade %s -> %s\n"
	AnalyzeWarningFmt      = "warning: %s\n"
	AnalyzeIssueLineFmt    = "%s %s: %s\n"
	AnalyzeBlockingSummary = "Blocking validation issues found; fix them before analyzing."

	AnalyzeRiskLineFmt     = "%s %-28s risk %4.1f (%s)\n"
	AnalyzeFailedLineFmt   = "  failed: %s: %s\n"
	AnalyzeReportsFmt      = "Wrote %d report files to %s\n"
	AnalyzeFailureCountFmt = "%d of %d analyses failed"
	AnalyzeCleanSummary    = "All analyses completed."
)

// cache command strings.
const (
	CacheUse        = "cache"
	CacheShort      = "Manage the on-disk result cache"
	CacheClearUse   = "clear"
	CacheClearShort = "Clear cached results"

	CacheTypeFlagHelp   = "cache type to clear (repeatable; default all)"
	CacheDryRunFlagHelp = "show what would be cleared without deleting"
	CacheForceFlagHelp  = "keep clearing past per-type failures"

	CacheInvalidTypeFmt = "unknown cache type %q (valid: %s)\n"
	CacheWouldClearFmt  = "%s: would clear %d entries (%s)\n"
	CacheClearedFmt     = "%s: cleared %d entries (%s)\n"
	CacheClearFailedFmt = "%s: clear failed: %v\n"
	CacheStatsFailedFmt = "%s: stats failed: %v\n"
	CacheNothingToClear = "Cache is empty."
)
