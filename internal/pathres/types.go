// Package pathres maps abstract path roles (web root, vendor root,
// configuration directory, extension directories) to concrete filesystem
// locations inside a TYPO3 installation. Resolution runs through a
// priority-ordered strategy registry fronted by a layered cache.
package pathres

import (
	"time"

	"github.com/t3up/analyzer/internal/errcode"
	"github.com/t3up/analyzer/internal/messages"
)

// PathType names an abstract path role inside an installation.
type PathType string

const (
	PathWebDir            PathType = "web-dir"
	PathVendorDir         PathType = "vendor-dir"
	PathTypo3ConfDir      PathType = "typo3conf-dir"
	PathExtension         PathType = "extension"
	PathSystemExtension   PathType = "system-extension"
	PathComposerInstalled PathType = "composer-installed"
	PathConfigDir         PathType = "config-dir"
	PathVarDir            PathType = "var-dir"
)

// PathTypes lists every known path type in stable order.
func PathTypes() []PathType {
	return []PathType{
		PathWebDir,
		PathVendorDir,
		PathTypo3ConfDir,
		PathExtension,
		PathSystemExtension,
		PathComposerInstalled,
		PathConfigDir,
		PathVarDir,
	}
}

// InstallationType names a recognized installation layout family.
type InstallationType string

const (
	InstallComposerStandard InstallationType = "composer-standard"
	InstallComposerCustom   InstallationType = "composer-custom"
	InstallLegacy           InstallationType = "legacy"
	InstallDocker           InstallationType = "docker"
	InstallCustom           InstallationType = "custom"
)

// incompatible records the (pathType, installationType) pairs that can never
// resolve: legacy installations have no composer artifacts, and docker
// containers do not expose the legacy sysext layout.
var incompatible = map[PathType][]InstallationType{
	PathVendorDir:         {InstallLegacy},
	PathComposerInstalled: {InstallLegacy},
	PathSystemExtension:   {InstallDocker},
}

// Compatible reports whether pathType is meaningful for installType.
func Compatible(pathType PathType, installType InstallationType) bool {
	for _, blocked := range incompatible[pathType] {
		if blocked == installType {
			return false
		}
	}
	return true
}

// CacheOptions controls response caching for a single request.
type CacheOptions struct {
	Enabled      bool
	TTL          time.Duration
	ForceRefresh bool
}

// Request is an immutable path resolution request. Construct via NewRequest.
type Request struct {
	PathType            PathType
	InstallationPath    string
	InstallationType    InstallationType
	PathConfiguration   map[string]string
	ExtensionIdentifier string
	FollowSymlinks      bool
	Cache               CacheOptions
}

// RequestBuilder accumulates request fields and validates them on Build.
type RequestBuilder struct {
	req Request
}

// NewRequest starts a builder for the given path type.
func NewRequest(pathType PathType) *RequestBuilder {
	return &RequestBuilder{req: Request{
		PathType: pathType,
		Cache:    CacheOptions{Enabled: true, TTL: time.Hour},
	}}
}

// InstallationPath sets the absolute installation root.
func (b *RequestBuilder) InstallationPath(path string) *RequestBuilder {
	b.req.InstallationPath = path
	return b
}

// InstallationType sets the detected layout family.
func (b *RequestBuilder) InstallationType(t InstallationType) *RequestBuilder {
	b.req.InstallationType = t
	return b
}

// PathConfiguration attaches custom relative paths keyed by path role.
func (b *RequestBuilder) PathConfiguration(cfg map[string]string) *RequestBuilder {
	b.req.PathConfiguration = cfg
	return b
}

// ExtensionIdentifier names the extension for extension-scoped requests.
func (b *RequestBuilder) ExtensionIdentifier(key string) *RequestBuilder {
	b.req.ExtensionIdentifier = key
	return b
}

// FollowSymlinks enables symlink traversal during probing.
func (b *RequestBuilder) FollowSymlinks(follow bool) *RequestBuilder {
	b.req.FollowSymlinks = follow
	return b
}

// CacheOptions overrides the default caching behavior.
func (b *RequestBuilder) CacheOptions(opts CacheOptions) *RequestBuilder {
	b.req.Cache = opts
	return b
}

// Build validates the accumulated fields and returns the immutable request.
// Incompatible (pathType, installationType) pairs fail here, before any
// strategy is consulted.
func (b *RequestBuilder) Build() (Request, error) {
	known := false
	for _, t := range PathTypes() {
		if t == b.req.PathType {
			known = true
			break
		}
	}
	if !known {
		return Request{}, errcode.New(errcode.InvalidRequest, messages.PathResUnknownPathTypeFmt, b.req.PathType)
	}
	if b.req.InstallationPath == "" {
		return Request{}, errcode.New(errcode.InvalidRequest, messages.PathResMissingInstallationPath)
	}
	if b.req.InstallationType == "" {
		return Request{}, errcode.New(errcode.InvalidRequest, messages.PathResMissingInstallationType)
	}
	if !Compatible(b.req.PathType, b.req.InstallationType) {
		return Request{}, errcode.New(errcode.NoCompatibleStrategy,
			messages.PathResIncompatiblePairFmt, b.req.PathType, b.req.InstallationType)
	}
	if b.req.PathType == PathExtension && b.req.ExtensionIdentifier == "" {
		return Request{}, errcode.New(errcode.InvalidRequest, messages.PathResMissingExtensionID)
	}
	return b.req, nil
}

// Status classifies a resolution outcome.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not-found"
	StatusError    Status = "error"
	StatusPartial  Status = "partial"
)

// Response is the immutable result of one resolution.
type Response struct {
	Status           Status         `json:"status"`
	PathType         PathType       `json:"path_type"`
	ResolvedPath     string         `json:"resolved_path,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	AlternativePaths []string       `json:"alternative_paths,omitempty"`
	Warnings         []string       `json:"warnings,omitempty"`
	Errors           []string       `json:"errors,omitempty"`
	CacheKey         string         `json:"cache_key,omitempty"`
	ResolutionTime   time.Duration  `json:"resolution_time,omitempty"`
}

// withMeta returns a copy of the response with key set in its metadata.
func (r Response) withMeta(key string, value any) Response {
	meta := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		meta[k] = v
	}
	meta[key] = value
	r.Metadata = meta
	return r
}

// errorResponse builds an Error response carrying message.
func errorResponse(pathType PathType, message string) Response {
	return Response{
		Status:   StatusError,
		PathType: pathType,
		Errors:   []string{message},
	}
}

// notFoundResponse builds a NotFound response recording the attempted paths.
func notFoundResponse(pathType PathType, attempted []string) Response {
	resp := Response{Status: StatusNotFound, PathType: pathType}
	if len(attempted) > 0 {
		resp.Metadata = map[string]any{"attempted_paths": attempted}
	}
	return resp
}
