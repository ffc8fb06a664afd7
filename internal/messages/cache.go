package messages

// Cache store messages.
const (
	CacheUnknownTypeFmt = "unknown cache type %q"
	CacheReadEntryFmt   = "read cache entry %s: %v"
	CacheCreateDirFmt   = "create cache directory: %v"
	CacheEncodeEntryFmt = "encode cache entry: %v"
	CacheCreateTempFmt  = "create cache temp file: %v"
	CacheWriteTempFmt   = "write cache temp file: %v"
	CacheSyncTempFmt    = "sync cache temp file: %v"
	CacheCloseTempFmt   = "close cache temp file: %v"
	CacheCommitEntryFmt = "commit cache entry: %v"
	CacheRemoveEntryFmt = "remove cache entry: %v"
	CacheScanDirFmt     = "scan cache directory %s: %v"
)
