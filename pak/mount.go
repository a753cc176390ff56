package pak

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/meigma/pakstream/pak/internal/file"
)

// NormalizePath converts a user-provided path to fs.ValidPath form.
//
// Leading and trailing slashes are stripped and repeated slashes collapsed;
// an empty path becomes ".". Dot elements are preserved so that fs.ValidPath
// still rejects them.
func NormalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}

// SetMountPoint sets the virtual directory the archive's entries appear
// under. "", "/" and "." mount at the namespace root. Paths containing
// "." or ".." elements are rejected with ErrInvalidMountPoint.
func (p *Pak) SetMountPoint(mountPoint string) error {
	n := NormalizePath(mountPoint)
	if !fs.ValidPath(n) {
		return fmt.Errorf("%w: %q", ErrInvalidMountPoint, mountPoint)
	}
	if n == "." {
		n = ""
	}
	p.mu.Lock()
	p.mountPoint = n
	p.mu.Unlock()
	return nil
}

// MountPoint returns the normalized mount point; "" is the namespace root.
func (p *Pak) MountPoint() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mountPoint
}

// Mounted maps a mounted path to its archive-relative path. It reports
// false when name lies outside the mount point.
func (p *Pak) Mounted(name string) (string, bool) {
	return relativeTo(p.MountPoint(), NormalizePath(name))
}

// FindFiles returns the mounted paths of files under dir, in index order.
//
// dir is a mounted path. When recursive is false only direct children of
// dir are returned. A dir above the mount point (for example "Engine" for
// mount point "Engine/Content") matches every file when recursive.
func (p *Pak) FindFiles(dir string, recursive bool) []string {
	mp := p.MountPoint()
	n := NormalizePath(dir)

	rel, ok := relativeTo(mp, n)
	if !ok {
		if !recursive || !isAncestor(n, mp) {
			return nil
		}
		rel = "."
	}

	prefix := file.DirPrefix(rel)
	var out []string
	for entry := range p.idx.EntriesWithPrefix(prefix) {
		if !recursive && strings.Contains(entry.Path[len(prefix):], "/") {
			continue
		}
		out = append(out, joinMounted(mp, entry.Path))
	}
	return out
}

func relativeTo(mountPoint, name string) (string, bool) {
	switch {
	case mountPoint == "":
		return name, true
	case name == mountPoint:
		return ".", true
	case strings.HasPrefix(name, mountPoint+"/"):
		return name[len(mountPoint)+1:], true
	default:
		return "", false
	}
}

func isAncestor(dir, mountPoint string) bool {
	return dir == "." || strings.HasPrefix(mountPoint, dir+"/")
}

func joinMounted(mountPoint, rel string) string {
	if mountPoint == "" {
		return rel
	}
	return mountPoint + "/" + rel
}

// MountedPath returns rel as it appears under the archive's mount point.
func (p *Pak) MountedPath(rel string) string {
	return joinMounted(p.MountPoint(), rel)
}

// Overlaps reports whether two mount points share any part of the namespace,
// that is one equals or contains the other.
func Overlaps(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
