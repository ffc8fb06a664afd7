package messages

// External registry client messages.
const (
	RegistryCreateRequestErrFmt = "create request: %v"
	RegistryRequestErrFmt       = "%s request failed: %v"
	RegistryStatusErrFmt        = "%s returned %s"
	RegistryDecodeErrFmt        = "decode %s response: %v"
	RegistryGraphQLErrFmt       = "graphql error: %s"
	RegistryRateLimitedFmt      = "%s rate limit exceeded (remaining=%s)"
	RegistryRetryBudget         = "retry budget exhausted"
)
