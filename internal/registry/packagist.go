package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/t3up/analyzer/internal/version"
)

// DefaultPackagistBaseURL is the public composer metadata API root.
const DefaultPackagistBaseURL = "https://repo.packagist.org"

// PackagistAvailability is the outcome of one composer-registry lookup.
type PackagistAvailability struct {
	Available         bool     `json:"available"`
	Versions          []string `json:"versions,omitempty"`
	CompatibleVersion string   `json:"compatible_version,omitempty"`
}

// PackagistClient queries the composer registry for version records of a
// vendor/name package and checks their core constraints against the upgrade
// target.
type PackagistClient struct {
	client
}

// NewPackagistClient builds a client against baseURL
// (DefaultPackagistBaseURL when empty).
func NewPackagistClient(baseURL, token string, limiter *RateLimiter) *PackagistClient {
	if baseURL == "" {
		baseURL = DefaultPackagistBaseURL
	}
	return &PackagistClient{client{name: "packagist", baseURL: baseURL, token: token, limiter: limiter}}
}

type packagistVersionRecord struct {
	Version string            `json:"version"`
	Require map[string]string `json:"require"`
}

type packagistResponse struct {
	Packages map[string][]packagistVersionRecord `json:"packages"`
}

// coreRequireKeys are the composer package names whose constraint decides
// core compatibility.
var coreRequireKeys = []string{"typo3/cms-core", "typo3/cms"}

// Lookup returns the registry's version records for packageName
// ("vendor/name") and whether any record's core constraint admits target.
// A missing package is not an error.
func (c *PackagistClient) Lookup(ctx context.Context, packageName string, target version.Version) (PackagistAvailability, error) {
	var payload packagistResponse
	found, err := c.getJSON(ctx, fmt.Sprintf("%s/p2/%s.json", c.baseURL, packageName), &payload)
	if err != nil {
		return PackagistAvailability{}, err
	}
	records := payload.Packages[packageName]
	if !found || len(records) == 0 {
		return PackagistAvailability{}, nil
	}

	out := PackagistAvailability{}
	var compatible []string
	for _, record := range records {
		out.Versions = append(out.Versions, record.Version)
		for _, key := range coreRequireKeys {
			constraint, ok := record.Require[key]
			if !ok {
				continue
			}
			if target.MatchesConstraint(constraint) {
				out.Available = true
				compatible = append(compatible, record.Version)
			}
			break
		}
	}
	if len(compatible) > 0 {
		// Prefer the highest parseable compatible version.
		sort.SliceStable(compatible, func(i, j int) bool {
			vi, erri := version.Parse(compatible[i])
			vj, errj := version.Parse(compatible[j])
			if erri != nil || errj != nil {
				return compatible[i] > compatible[j]
			}
			return vj.Less(vi)
		})
		out.CompatibleVersion = compatible[0]
	}
	return out, nil
}
