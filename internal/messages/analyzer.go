package messages

// Analyzer orchestration messages.
const (
	AnalyzerToolMissingFmt      = "required tool %q not found in PATH"
	AnalyzerTimeoutFmt          = "%s timed out after %s"
	AnalyzerExitFmt             = "%s exited with %d: %s"
	AnalyzerStartFmt            = "start %s: %v"
	AnalyzerOutputFmt           = "parse %s output: %v"
	AnalyzerConfigFmt           = "write %s config: %v"
	AnalyzerNetworkFmt          = "registry lookup failed: %v"
	AnalyzerCacheDecodeFmt      = "discard cached analysis result: %v"
	AnalyzerNoComposerName      = "extension has no composer name; packagist lookup skipped"
	AnalyzerMissingPathFmt      = "extension %s has no source path"
	AnalyzerDuplicateName       = "analyzer %q registered twice"
	AnalyzerUnknownExtensionFmt = "unknown extension %q"
)
