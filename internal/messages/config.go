package messages

// Tool configuration messages.
const (
	ConfigReadFileFmt       = "reading config %s: %w"
	ConfigInvalidTOMLFmt    = "parsing config %s: %w"
	ConfigUnknownKeysFmt    = "config %s: ignoring unrecognized keys: %v"
	ConfigInvalidFormatFmt  = "config %s: reporting format %q is not supported"
	ConfigInvalidWorkersFmt = "config %s: analysis.workers must be positive, got %d"
	ConfigInvalidTimeoutFmt = "config %s: %s must be positive, got %d"
	ConfigHomeDirFmt        = "resolving home directory: %w"
	ConfigInvalidEnvFileFmt = "env file %s: %v"
)
