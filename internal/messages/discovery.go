package messages

// Installation discovery messages.
const (
	DiscoveryNotADirectoryFmt     = "discovery target %s is not a directory"
	DiscoveryNoStrategyFmt        = "no detection strategy supports %s"
	DiscoveryAllFailedFmt         = "all detection strategies failed for %s"
	DiscoveryReadManifestFmt      = "read composer manifest: %v"
	DiscoveryInvalidManifestFmt   = "invalid composer manifest: %v"
	DiscoveryComposeParseFmt      = "parse compose file: %s"
	DiscoveryLockParseFmt         = "parse composer.lock: %v"
	DiscoveryLockVersionFmt       = "package %s has unparseable version %q"
	DiscoveryStateParseFmt        = "parse %s: %s"
	DiscoveryEmConfParseFmt       = "parse %s: %s"
	DiscoveryDuplicateKeyFmt      = "duplicate extension key %q within one source; first record wins"
	DiscoveryKeyConflictFmt       = "duplicate extension key %q"
	DiscoveryConfigResolveFmt     = "resolve configuration directory: %s"
	DiscoveryConfigParseFmt       = "parse configuration file %s: %s"
	DiscoveryValidationPanicFmt   = "validation rule %q panicked: %v"
	DiscoveryVersionUnknown       = "core version could not be determined from any source"
	DiscoveryVersionRangeFmt      = "core version %s is outside the supported range %s to %s"
	DiscoveryMissingDirFmt        = "required directory %s is missing"
	DiscoveryNoDatabaseConfig     = "no database connection is configured"
	DiscoveryPHPConstraintBadFmt  = "php constraint %q could not be evaluated"
	DiscoveryCacheDecodeFmt       = "discard cached discovery result: %v"
	DiscoveryEnumerationFailedFmt = "extension enumeration failed: %v"
)
