package messages

// Env file parsing messages.
const (
	EnvfileLineErrorFmt            = "line %d: %w"
	EnvfileReadFailedFmt           = "reading env content: %w"
	EnvfileExpectedKeyValue        = "expected KEY=value"
	EnvfileUnterminatedQuotedValue = "unterminated quoted value"
	EnvfileInvalidQuotedSuffix     = "unexpected content after quoted value"
)
