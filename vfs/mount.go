package vfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/meigma/pakstream/pak"
)

// MountLayer overlays mounted archives on an inner provider.
//
// Lookups consult mounted archives from the highest mount order down, with
// the most recently mounted archive first among equal orders, and fall back
// to the inner provider. Mounted archives are owned by the layer: Unmount
// and UnmountAll close them.
type MountLayer struct {
	logger *slog.Logger

	mu     sync.RWMutex
	inner  Provider
	mounts []*mount
	seq    uint64
}

type mount struct {
	name    string
	archive *pak.Pak
	order   int
	seq     uint64
}

// MountInfo describes a mounted archive.
type MountInfo struct {
	Name       string
	MountPoint string
	Order      int
	Files      int
}

// MountOption configures a MountLayer.
type MountOption func(*MountLayer)

// WithMountLogger sets the logger for a MountLayer.
func WithMountLogger(logger *slog.Logger) MountOption {
	return func(l *MountLayer) {
		l.logger = logger
	}
}

// NewMountLayer returns an uninitialized mount layer.
func NewMountLayer(opts ...MountOption) *MountLayer {
	l := &MountLayer{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MountLayer) log() *slog.Logger {
	if l.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}

// Initialize unmounts everything previously mounted, then points the layer
// at inner, initializing inner with cmdLine. If inner fails to initialize
// the layer is left empty and uninitialized.
func (l *MountLayer) Initialize(ctx context.Context, inner Provider, cmdLine string) error {
	l.mu.Lock()
	old := l.mounts
	l.mounts = nil
	l.inner = nil
	l.mu.Unlock()
	closeMounts(old)

	if inner == nil {
		return fmt.Errorf("%w: no inner provider", ErrProviderUnavailable)
	}
	if err := inner.Initialize(ctx, cmdLine); err != nil {
		return fmt.Errorf("initialize %s provider: %w", inner.Name(), err)
	}

	l.mu.Lock()
	l.inner = inner
	l.mu.Unlock()
	l.log().Debug("mount layer initialized", "provider", inner.Name(), "dropped_mounts", len(old))
	return nil
}

// Name returns the inner provider's name, or "mount" before Initialize.
func (l *MountLayer) Name() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.inner == nil {
		return "mount"
	}
	return l.inner.Name()
}

// Inner returns the provider the layer falls back to.
func (l *MountLayer) Inner() Provider {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inner
}

// Mount adds archive under name at the given order. It fails with
// ErrAlreadyMounted if name is taken or if another archive with the same
// order has an overlapping mount point.
func (l *MountLayer) Mount(name string, archive *pak.Pak, order int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inner == nil {
		return ErrNotInitialized
	}
	mp := archive.MountPoint()
	for _, m := range l.mounts {
		if m.name == name {
			return fmt.Errorf("%w: %s", ErrAlreadyMounted, name)
		}
		if m.order == order && pak.Overlaps(m.archive.MountPoint(), mp) {
			return fmt.Errorf("%w: mount point %q overlaps %q (%s) at order %d",
				ErrAlreadyMounted, mp, m.archive.MountPoint(), m.name, order)
		}
	}

	l.seq++
	l.mounts = append(l.mounts, &mount{name: name, archive: archive, order: order, seq: l.seq})
	slices.SortStableFunc(l.mounts, func(a, b *mount) int {
		if a.order != b.order {
			return b.order - a.order
		}
		return int(b.seq - a.seq) //nolint:gosec // sequence numbers stay far below MaxInt
	})
	l.log().Info("archive mounted", "name", name, "mount_point", mp, "order", order, "files", archive.Len())
	return nil
}

// Unmount removes and closes the archive mounted under name.
func (l *MountLayer) Unmount(name string) error {
	l.mu.Lock()
	i := slices.IndexFunc(l.mounts, func(m *mount) bool { return m.name == name })
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotMounted, name)
	}
	m := l.mounts[i]
	l.mounts = slices.Delete(l.mounts, i, i+1)
	l.mu.Unlock()

	l.log().Info("archive unmounted", "name", name)
	return m.archive.Close()
}

// UnmountAll removes and closes every mounted archive.
func (l *MountLayer) UnmountAll() {
	l.mu.Lock()
	old := l.mounts
	l.mounts = nil
	l.mu.Unlock()
	closeMounts(old)
}

// Mounts lists mounted archives in lookup order.
func (l *MountLayer) Mounts() []MountInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]MountInfo, 0, len(l.mounts))
	for _, m := range l.mounts {
		out = append(out, MountInfo{
			Name:       m.name,
			MountPoint: m.archive.MountPoint(),
			Order:      m.order,
			Files:      m.archive.Len(),
		})
	}
	return out
}

func closeMounts(mounts []*mount) {
	for _, m := range mounts {
		_ = m.archive.Close() //nolint:errcheck // archives are read-only; close errors carry no data loss
	}
}

// snapshot returns the mounts and inner provider for one lookup.
func (l *MountLayer) snapshot() ([]*mount, Provider, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.inner == nil {
		return nil, nil, ErrNotInitialized
	}
	return slices.Clone(l.mounts), l.inner, nil
}

// lookup finds the highest-priority archive holding name as a file.
func lookup(mounts []*mount, name string) (*mount, string, bool) {
	n := pak.NormalizePath(name)
	for _, m := range mounts {
		rel, ok := m.archive.Mounted(n)
		if !ok || rel == "." {
			continue
		}
		if _, ok := m.archive.Entry(rel); ok {
			return m, rel, true
		}
	}
	return nil, "", false
}

// Stat implements FileSystem. Directories inside archives are reported too.
func (l *MountLayer) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	mounts, inner, err := l.snapshot()
	if err != nil {
		return nil, err
	}
	n := pak.NormalizePath(name)
	for _, m := range mounts {
		if rel, ok := m.archive.Mounted(n); ok {
			if info, err := m.archive.Stat(rel); err == nil {
				return info, nil
			}
		}
	}
	return inner.Stat(ctx, name)
}

// Open implements FileSystem. Archive entries are verified as they are read.
func (l *MountLayer) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	mounts, inner, err := l.snapshot()
	if err != nil {
		return nil, err
	}
	if m, rel, ok := lookup(mounts, name); ok {
		return m.archive.Open(rel)
	}
	return inner.Open(ctx, name)
}

// OpenSource implements FileSystem. Archive entries are read into memory.
func (l *MountLayer) OpenSource(ctx context.Context, name string) (ReadSource, error) {
	mounts, inner, err := l.snapshot()
	if err != nil {
		return nil, err
	}
	if m, rel, ok := lookup(mounts, name); ok {
		data, err := m.archive.ReadFile(rel)
		if err != nil {
			return nil, err
		}
		return bytesSource{bytes.NewReader(data)}, nil
	}
	return inner.OpenSource(ctx, name)
}

// FindFiles implements FileSystem. Results from archives come first in
// lookup order, followed by the inner provider's files; a path shadowed by
// a higher-priority source is listed once.
func (l *MountLayer) FindFiles(ctx context.Context, dir string, recursive bool) ([]string, error) {
	mounts, inner, err := l.snapshot()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(paths []string) {
		for _, p := range paths {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, m := range mounts {
		add(m.archive.FindFiles(dir, recursive))
	}
	files, err := inner.FindFiles(ctx, dir, recursive)
	if err != nil && !IsNotExist(err) {
		return nil, err
	}
	add(files)
	return out, nil
}

type bytesSource struct {
	*bytes.Reader
}

func (bytesSource) Close() error { return nil }

var _ FileSystem = (*MountLayer)(nil)
