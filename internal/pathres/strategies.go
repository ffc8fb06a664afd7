package pathres

import (
	"context"
	"os"
	"path/filepath"
)

var osStat = os.Stat
var osLstat = os.Lstat

// probe checks each candidate for existence and readability, in order.
// It returns the existing candidates and the full attempted list.
func probe(candidates []string, followSymlinks bool) (existing []string, attempted []string) {
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		if candidate == "" || seen[candidate] {
			continue
		}
		seen[candidate] = true
		attempted = append(attempted, candidate)

		statFn := osLstat
		if followSymlinks {
			statFn = osStat
		}
		info, err := statFn(candidate)
		if err != nil {
			continue
		}
		if !followSymlinks && info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if !readable(candidate) {
			continue
		}
		existing = append(existing, candidate)
	}
	return existing, attempted
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// resolveCandidates runs the shared probe-and-respond logic for a strategy.
func resolveCandidates(req Request, candidates []string) Response {
	existing, attempted := probe(candidates, req.FollowSymlinks)
	if len(existing) == 0 {
		return notFoundResponse(req.PathType, attempted)
	}
	return Response{
		Status:           StatusSuccess,
		PathType:         req.PathType,
		ResolvedPath:     existing[0],
		AlternativePaths: existing[1:],
	}
}

// customPath returns the configured relative path for role, or fallback.
func customPath(req Request, role PathType, fallback string) string {
	if rel, ok := req.PathConfiguration[string(role)]; ok && rel != "" {
		return rel
	}
	return fallback
}

// ComposerStrategy resolves roles inside composer-managed layouts, honoring
// custom paths from composer.json extra configuration.
type ComposerStrategy struct{}

func (ComposerStrategy) Identifier() string { return "composer-layout" }

func (ComposerStrategy) Supports(pathType PathType, installType InstallationType) bool {
	switch installType {
	case InstallComposerStandard, InstallComposerCustom, InstallCustom:
		return Compatible(pathType, installType)
	default:
		return false
	}
}

func (ComposerStrategy) Priority(_ PathType, installType InstallationType) int {
	if installType == InstallCustom {
		return PriorityMedium
	}
	return PriorityPrimary
}

func (s ComposerStrategy) Resolve(_ context.Context, req Request) Response {
	root := req.InstallationPath
	webRel := customPath(req, PathWebDir, "public")
	vendorRel := customPath(req, PathVendorDir, "vendor")
	web := filepath.Join(root, webRel)
	vendor := filepath.Join(root, vendorRel)

	var candidates []string
	switch req.PathType {
	case PathWebDir:
		candidates = []string{web, filepath.Join(root, "public"), filepath.Join(root, "web"), filepath.Join(root, "htdocs")}
	case PathVendorDir:
		candidates = []string{vendor}
	case PathTypo3ConfDir:
		candidates = []string{filepath.Join(web, "typo3conf")}
	case PathExtension:
		candidates = []string{
			filepath.Join(web, "typo3conf", "ext", req.ExtensionIdentifier),
			filepath.Join(root, "packages", req.ExtensionIdentifier),
		}
	case PathSystemExtension:
		candidates = []string{filepath.Join(vendor, "typo3"), filepath.Join(web, "typo3", "sysext")}
	case PathComposerInstalled:
		candidates = []string{filepath.Join(vendor, "composer", "installed.json")}
	case PathConfigDir:
		candidates = []string{filepath.Join(root, "config"), filepath.Join(web, "typo3conf")}
	case PathVarDir:
		candidates = []string{filepath.Join(root, "var")}
	}
	return resolveCandidates(req, candidates)
}

// LegacyStrategy resolves roles in pre-composer installations where the
// installation root is the web root.
type LegacyStrategy struct{}

func (LegacyStrategy) Identifier() string { return "legacy-layout" }

func (LegacyStrategy) Supports(pathType PathType, installType InstallationType) bool {
	switch installType {
	case InstallLegacy, InstallCustom:
		return Compatible(pathType, installType)
	default:
		return false
	}
}

func (LegacyStrategy) Priority(_ PathType, installType InstallationType) int {
	if installType == InstallCustom {
		return PriorityLow
	}
	return PriorityHigh
}

func (s LegacyStrategy) Resolve(_ context.Context, req Request) Response {
	root := req.InstallationPath

	var candidates []string
	switch req.PathType {
	case PathWebDir:
		candidates = []string{root}
	case PathTypo3ConfDir, PathConfigDir:
		candidates = []string{filepath.Join(root, "typo3conf")}
	case PathExtension:
		candidates = []string{filepath.Join(root, "typo3conf", "ext", req.ExtensionIdentifier)}
	case PathSystemExtension:
		candidates = []string{filepath.Join(root, "typo3", "sysext"), filepath.Join(root, "typo3_src", "typo3", "sysext")}
	case PathVarDir:
		candidates = []string{filepath.Join(root, "typo3temp")}
	case PathVendorDir, PathComposerInstalled:
		// Unreachable: the compatibility table blocks these for legacy.
		return notFoundResponse(req.PathType, nil)
	}
	return resolveCandidates(req, candidates)
}

// dockerRoots are the mount points probed inside container layouts.
var dockerRoots = []string{"html", filepath.Join("var", "www", "html"), "app", "."}

// DockerStrategy resolves roles for containerized installations by probing
// common mount points and applying composer layout rules beneath them.
type DockerStrategy struct{}

func (DockerStrategy) Identifier() string { return "docker-layout" }

func (DockerStrategy) Supports(pathType PathType, installType InstallationType) bool {
	return installType == InstallDocker && Compatible(pathType, installType)
}

func (DockerStrategy) Priority(PathType, InstallationType) int { return PriorityMedium }

func (s DockerStrategy) Resolve(ctx context.Context, req Request) Response {
	var attempted []string
	for _, mount := range dockerRoots {
		inner := req
		inner.InstallationPath = filepath.Join(req.InstallationPath, mount)
		resp := (ComposerStrategy{}).Resolve(ctx, inner)
		if resp.Status == StatusSuccess {
			return resp
		}
		if paths, ok := resp.Metadata["attempted_paths"].([]string); ok {
			attempted = append(attempted, paths...)
		}
	}
	return notFoundResponse(req.PathType, attempted)
}

// FallbackStrategy probes every known location for a role regardless of
// layout family. It runs last and exists so a partially migrated or
// hand-assembled installation still resolves.
type FallbackStrategy struct{}

func (FallbackStrategy) Identifier() string { return "generic-probe" }

func (FallbackStrategy) Supports(pathType PathType, installType InstallationType) bool {
	return Compatible(pathType, installType)
}

func (FallbackStrategy) Priority(PathType, InstallationType) int { return PriorityFallback }

func (s FallbackStrategy) Resolve(_ context.Context, req Request) Response {
	root := req.InstallationPath
	var candidates []string
	switch req.PathType {
	case PathWebDir:
		candidates = []string{
			filepath.Join(root, "public"),
			filepath.Join(root, "web"),
			filepath.Join(root, "htdocs"),
			root,
		}
	case PathVendorDir:
		candidates = []string{filepath.Join(root, "vendor")}
	case PathTypo3ConfDir:
		candidates = []string{
			filepath.Join(root, "public", "typo3conf"),
			filepath.Join(root, "web", "typo3conf"),
			filepath.Join(root, "typo3conf"),
		}
	case PathExtension:
		candidates = []string{
			filepath.Join(root, "public", "typo3conf", "ext", req.ExtensionIdentifier),
			filepath.Join(root, "typo3conf", "ext", req.ExtensionIdentifier),
		}
	case PathSystemExtension:
		candidates = []string{
			filepath.Join(root, "vendor", "typo3"),
			filepath.Join(root, "typo3", "sysext"),
		}
	case PathComposerInstalled:
		candidates = []string{filepath.Join(root, "vendor", "composer", "installed.json")}
	case PathConfigDir:
		candidates = []string{filepath.Join(root, "config"), filepath.Join(root, "typo3conf")}
	case PathVarDir:
		candidates = []string{filepath.Join(root, "var"), filepath.Join(root, "typo3temp")}
	}
	return resolveCandidates(req, candidates)
}

// DefaultRegistry returns a registry with the built-in strategies wired in
// the order the process registers them at startup.
func DefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	for _, s := range []Strategy{ComposerStrategy{}, LegacyStrategy{}, DockerStrategy{}, FallbackStrategy{}} {
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
