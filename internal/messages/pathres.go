package messages

// Path resolution messages.
const (
	PathResUnknownPathTypeFmt      = "unknown path type %q"
	PathResMissingInstallationPath = "installation path is required"
	PathResMissingInstallationType = "installation type is required"
	PathResMissingExtensionID      = "extension identifier is required for extension path requests"
	PathResIncompatiblePairFmt     = "path type %q is not resolvable for installation type %q"
	PathResStrategyConflictFmt     = "strategy %q registered twice at equal priority for (%s, %s)"
	PathResInvalidPriorityFmt      = "strategy %q uses priority %d outside the allowed bands"
	PathResNoStrategyFmt           = "no strategy available for path type %q and installation type %q"
	PathResStrategyFailedFmt       = "strategy %q failed; continuing with next strategy"
	PathResStrategyPanicFmt        = "strategy %q panicked: %v"
)
