package messages

// Configuration parser messages.
const (
	ConfParseUnsupportedFmt       = "no parser supports %s"
	ConfParseReadFmt              = "read configuration file: %v"
	ConfParseFileTooLargeFmt      = "file size %d exceeds cap of %d bytes"
	ConfParseNoOpenTag            = "no <?php opening tag found"
	ConfParseUnterminatedComment  = "unterminated block comment"
	ConfParseUnterminatedString   = "unterminated string literal"
	ConfParseUnterminatedArray    = "unterminated array literal"
	ConfParseInterpolationLiteral = "double-quoted string contains $; treated literally, never interpolated"
	ConfParseIgnoredStatementFmt  = "ignored top-level statement starting with %s at line %d"
	ConfParseIgnoredCallFmt       = "ignored call to %s at line %d"
	ConfParseExtraReturnFmt       = "ignored additional top-level return at line %d"
	ConfParseUnknownConstantFmt   = "constant %s at line %d is not in the allowlist; value skipped"
	ConfParseUnsupportedExprFmt   = "unsupported expression %s at line %d; value skipped"
	ConfParseUnsupportedNegation  = "negation of non-numeric value skipped"
	ConfParseNonStringConcat      = "concatenation of non-string values skipped"
	ConfParseUnsupportedKeyFmt    = "unsupported array key %v skipped"
	ConfParseDepthExceededFmt     = "nesting depth exceeds cap of %d"
	ConfParseUnresolvedEnvFmt     = "environment placeholder %s unresolved; substituted empty string"
	ConfParseEmptyDocument        = "document contains no elements"
)
