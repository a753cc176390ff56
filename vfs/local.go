package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/meigma/pakstream/pak"
)

// LocalProvider serves files from a directory on local disk.
//
// All access is confined to the directory with os.Root, so paths cannot
// escape it through ".." elements or symbolic links.
type LocalProvider struct {
	dir    string
	logger *slog.Logger

	mu   sync.RWMutex
	root *os.Root
}

// LocalOption configures a LocalProvider.
type LocalOption func(*LocalProvider)

// WithLocalLogger sets the logger for a LocalProvider.
func WithLocalLogger(logger *slog.Logger) LocalOption {
	return func(p *LocalProvider) {
		p.logger = logger
	}
}

// NewLocalProvider returns a provider rooted at dir. The directory is
// opened by Initialize, where -root=DIR overrides it.
func NewLocalProvider(dir string, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{dir: dir}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LocalProvider) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// Name returns "local".
func (p *LocalProvider) Name() string {
	return "local"
}

// Dir returns the directory the provider is currently rooted at.
func (p *LocalProvider) Dir() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.root != nil {
		return p.root.Name()
	}
	return p.dir
}

// Initialize opens the content directory. A -root=DIR switch in cmdLine
// takes precedence over the directory given to NewLocalProvider.
func (p *LocalProvider) Initialize(_ context.Context, cmdLine string) error {
	cl, err := ParseCommandLine(cmdLine)
	if err != nil {
		return err
	}
	dir := p.dir
	if v := cl.Value("root"); v != "" {
		dir = v
	}
	if dir == "" {
		dir = "."
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	p.mu.Lock()
	old := p.root
	p.root = root
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}
	p.log().Debug("local provider initialized", "dir", dir)
	return nil
}

// Close releases the content directory.
func (p *LocalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.root == nil {
		return nil
	}
	err := p.root.Close()
	p.root = nil
	return err
}

func (p *LocalProvider) current() (*os.Root, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.root == nil {
		return nil, ErrNotInitialized
	}
	return p.root, nil
}

// cleanName converts name to the form os.Root and fs.FS expect.
func cleanName(op, name string) (string, error) {
	n := pak.NormalizePath(name)
	if !fs.ValidPath(n) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return n, nil
}

// Stat implements FileSystem.
func (p *LocalProvider) Stat(_ context.Context, name string) (fs.FileInfo, error) {
	root, err := p.current()
	if err != nil {
		return nil, err
	}
	n, err := cleanName("stat", name)
	if err != nil {
		return nil, err
	}
	return root.Stat(n)
}

// Open implements FileSystem.
func (p *LocalProvider) Open(_ context.Context, name string) (io.ReadCloser, error) {
	root, err := p.current()
	if err != nil {
		return nil, err
	}
	n, err := cleanName("open", name)
	if err != nil {
		return nil, err
	}
	return root.Open(n)
}

// OpenSource implements FileSystem.
func (p *LocalProvider) OpenSource(_ context.Context, name string) (ReadSource, error) {
	root, err := p.current()
	if err != nil {
		return nil, err
	}
	n, err := cleanName("open", name)
	if err != nil {
		return nil, err
	}
	f, err := root.Open(n)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: errors.New("is a directory")}
	}
	return &fileSource{File: f, size: info.Size()}, nil
}

// FindFiles implements FileSystem. A missing dir yields no files.
func (p *LocalProvider) FindFiles(ctx context.Context, dir string, recursive bool) ([]string, error) {
	root, err := p.current()
	if err != nil {
		return nil, err
	}
	start, err := cleanName("readdir", dir)
	if err != nil {
		return nil, err
	}

	var files []string
	err = fs.WalkDir(root.FS(), start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != start && !recursive {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return files, err
}

// fileSource adapts *os.File to ReadSource.
type fileSource struct {
	*os.File
	size int64
}

func (s *fileSource) Size() int64 {
	return s.size
}

var _ Provider = (*LocalProvider)(nil)
