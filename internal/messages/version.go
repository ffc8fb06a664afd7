package messages

// Version parsing messages.
const (
	VersionEmpty             = "version string is empty"
	VersionInvalidFmt        = "invalid version %q: expected N.N[.N][-suffix]"
	VersionInvalidSegmentFmt = "invalid version segment %q in %q"
	VersionEmptySuffixFmt    = "invalid version %q: empty suffix"
)
