package registry

import (
	"context"
	"fmt"

	"github.com/t3up/analyzer/internal/version"
)

// DefaultTERBaseURL is the public extension repository API root.
const DefaultTERBaseURL = "https://extensions.typo3.org/api/v1"

// TERAvailability is the outcome of one extension-repository lookup.
type TERAvailability struct {
	Available         bool     `json:"available"`
	Versions          []string `json:"versions,omitempty"`
	CompatibleVersion string   `json:"compatible_version,omitempty"`
}

// TERClient queries the extension repository for published versions of an
// extension key.
type TERClient struct {
	client
}

// NewTERClient builds a client against baseURL (DefaultTERBaseURL when
// empty). token is optional.
func NewTERClient(baseURL, token string, limiter *RateLimiter) *TERClient {
	if baseURL == "" {
		baseURL = DefaultTERBaseURL
	}
	return &TERClient{client{name: "ter", baseURL: baseURL, token: token, limiter: limiter}}
}

type terVersionRecord struct {
	Number         string `json:"number"`
	TYPO3Versions  []int  `json:"typo3_versions"`
	CurrentVersion bool   `json:"current_version"`
}

type terExtensionResponse struct {
	Key      string             `json:"key"`
	Versions []terVersionRecord `json:"versions"`
}

// Lookup returns the published versions for extensionKey and which of them
// supports the target core major. A missing key is not an error.
func (c *TERClient) Lookup(ctx context.Context, extensionKey string, target version.Version) (TERAvailability, error) {
	var payload terExtensionResponse
	found, err := c.getJSON(ctx, fmt.Sprintf("%s/extension/%s", c.baseURL, extensionKey), &payload)
	if err != nil {
		return TERAvailability{}, err
	}
	if !found || len(payload.Versions) == 0 {
		return TERAvailability{}, nil
	}

	out := TERAvailability{}
	for _, record := range payload.Versions {
		out.Versions = append(out.Versions, record.Number)
		for _, major := range record.TYPO3Versions {
			if major == target.Major {
				out.Available = true
				if out.CompatibleVersion == "" || record.CurrentVersion {
					out.CompatibleVersion = record.Number
				}
			}
		}
	}
	return out, nil
}
