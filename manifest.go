package pakstream

import (
	"slices"
	"strings"

	"github.com/meigma/pakstream/pak"
)

// Manifest lists the asset paths of one streaming session in archive
// enumeration order.
type Manifest []string

// Clone returns a copy of m.
func (m Manifest) Clone() Manifest {
	if m == nil {
		return nil
	}
	return slices.Clone(m)
}

// Contains reports whether path is in m.
func (m Manifest) Contains(path string) bool {
	return slices.Contains(m, path)
}

// Normalizer rewrites a mounted file path before it enters the manifest.
// mountPoint is the archive's normalized mount point. Returning "" drops
// the path.
type Normalizer func(mountPoint, path string) string

// IdentityNormalizer keeps mounted paths unchanged.
func IdentityNormalizer(_, path string) string {
	return path
}

// StripMountPoint makes paths relative to the mount point.
func StripMountPoint(mountPoint, path string) string {
	if mountPoint == "" {
		return path
	}
	if rel, ok := strings.CutPrefix(path, mountPoint+"/"); ok {
		return rel
	}
	return path
}

// buildManifest keeps the files whose names end in one of exts (ignoring
// case), normalizes them and drops duplicates, keeping the first. mounted
// holds the mounted path of each manifest entry, index for index, so the
// loader can read it through the mount layer whatever the normalizer did.
func buildManifest(files []string, mountPoint string, exts []string, normalize Normalizer) (manifest Manifest, mounted []string) {
	if normalize == nil {
		normalize = IdentityNormalizer
	}
	mountPoint = pak.NormalizePath(mountPoint)
	if mountPoint == "." {
		mountPoint = ""
	}

	seen := make(map[string]struct{}, len(files))
	manifest = make(Manifest, 0, len(files))
	mounted = make([]string, 0, len(files))
	for _, f := range files {
		if !hasExtension(f, exts) {
			continue
		}
		name := normalize(mountPoint, f)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		manifest = append(manifest, name)
		mounted = append(mounted, f)
	}
	return manifest, mounted
}

func hasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext) {
			return true
		}
	}
	return false
}
