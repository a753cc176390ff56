package vfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// File host routes shared by RemoteProvider and the server package.
const (
	HealthPath = "/healthz"
	FilesPath  = "/files/"
	ListPath   = "/list"
)

// ListResponse is the JSON body returned by the file host's list route.
type ListResponse struct {
	Dir       string   `json:"dir"`
	Recursive bool     `json:"recursive"`
	Files     []string `json:"files"`
}

// RemoteProvider reads files from a pakstream file host over HTTP.
type RemoteProvider struct {
	host   string
	client *http.Client
	logger *slog.Logger

	statGroup singleflight.Group

	mu   sync.RWMutex
	base *url.URL
}

// RemoteOption configures a RemoteProvider.
type RemoteOption func(*RemoteProvider)

// WithRemoteClient sets the HTTP client (default: http.DefaultClient).
func WithRemoteClient(client *http.Client) RemoteOption {
	return func(p *RemoteProvider) {
		p.client = client
	}
}

// WithRemoteLogger sets the logger for a RemoteProvider.
func WithRemoteLogger(logger *slog.Logger) RemoteOption {
	return func(p *RemoteProvider) {
		p.logger = logger
	}
}

// NewRemoteProvider returns a provider for the file host at host
// ("HOST:PORT" or a full http/https URL).
func NewRemoteProvider(host string, opts ...RemoteOption) *RemoteProvider {
	p := &RemoteProvider{host: host}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	return p
}

func (p *RemoteProvider) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// Name returns "remote".
func (p *RemoteProvider) Name() string {
	return "remote"
}

// BaseURL returns the file host URL in use, or "" before Initialize.
func (p *RemoteProvider) BaseURL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.base == nil {
		return ""
	}
	return p.base.String()
}

// Initialize resolves the file host and checks that it is healthy.
// A -FileHostIP=HOST:PORT switch in cmdLine overrides the configured host.
func (p *RemoteProvider) Initialize(ctx context.Context, cmdLine string) error {
	cl, err := ParseCommandLine(cmdLine)
	if err != nil {
		return err
	}
	host := p.host
	if v := cl.Value("FileHostIP"); v != "" {
		host = v
	}
	if host == "" {
		return fmt.Errorf("%w: no file host configured", ErrProviderUnavailable)
	}
	base, err := hostURL(host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	health := base.JoinPath(HealthPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, health.String(), http.NoBody)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %s", ErrProviderUnavailable, resp.Status)
	}

	p.mu.Lock()
	p.base = base
	p.mu.Unlock()
	p.log().Debug("remote provider initialized", "host", base.String())
	return nil
}

func hostURL(host string) (*url.URL, error) {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", host)
	}
	return u, nil
}

func (p *RemoteProvider) fileURL(op, name string) (string, string, error) {
	p.mu.RLock()
	base := p.base
	p.mu.RUnlock()
	if base == nil {
		return "", "", ErrNotInitialized
	}
	n, err := cleanName(op, name)
	if err != nil {
		return "", "", err
	}
	return base.JoinPath(FilesPath, n).String(), n, nil
}

// Stat implements FileSystem with a HEAD request. Concurrent Stat calls
// for the same name share one request. The shared request ignores the
// cancellation of whichever caller started it; each caller stops waiting
// when its own ctx ends.
func (p *RemoteProvider) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	u, n, err := p.fileURL("stat", name)
	if err != nil {
		return nil, err
	}
	reqCtx := context.WithoutCancel(ctx)
	ch := p.statGroup.DoChan(n, func() (any, error) {
		req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, u, http.NoBody)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		drain(resp.Body)
		if err := statusError("stat", name, resp); err != nil {
			return nil, err
		}
		return newRemoteInfo(n, resp), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(fs.FileInfo), nil //nolint:errcheck,forcetypeassert // type is fixed by the closure above
	}
}

// Open implements FileSystem with a GET request.
func (p *RemoteProvider) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	u, _, err := p.fileURL("open", name)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := statusError("open", name, resp); err != nil {
		drain(resp.Body)
		return nil, err
	}
	return resp.Body, nil
}

// OpenSource implements FileSystem with an HTTP range Source.
func (p *RemoteProvider) OpenSource(ctx context.Context, name string) (ReadSource, error) {
	u, _, err := p.fileURL("open", name)
	if err != nil {
		return nil, err
	}
	return NewSource(ctx, u, WithSourceClient(p.client))
}

// FindFiles implements FileSystem using the host's list route.
func (p *RemoteProvider) FindFiles(ctx context.Context, dir string, recursive bool) ([]string, error) {
	p.mu.RLock()
	base := p.base
	p.mu.RUnlock()
	if base == nil {
		return nil, ErrNotInitialized
	}
	n, err := cleanName("readdir", dir)
	if err != nil {
		return nil, err
	}

	u := base.JoinPath(ListPath)
	q := url.Values{}
	q.Set("dir", n)
	q.Set("recursive", strconv.FormatBool(recursive))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp.Body)
	if err := statusError("readdir", dir, resp); err != nil {
		return nil, err
	}

	var list ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	return list.Files, nil
}

func statusError(op, name string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return nil
	case http.StatusNotFound:
		return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	case http.StatusBadRequest:
		return &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	case http.StatusForbidden:
		return &fs.PathError{Op: op, Path: name, Err: fs.ErrPermission}
	default:
		return &fs.PathError{Op: op, Path: name, Err: fmt.Errorf("file host returned %s", resp.Status)}
	}
}

// remoteInfo is file info reported by a HEAD response.
type remoteInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func newRemoteInfo(name string, resp *http.Response) *remoteInfo {
	info := &remoteInfo{name: name, size: resp.ContentLength}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.modTime = t
		}
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		info.name = name[i+1:]
	}
	return info
}

func (i *remoteInfo) Name() string       { return i.name }
func (i *remoteInfo) Size() int64        { return i.size }
func (i *remoteInfo) Mode() fs.FileMode  { return 0o444 }
func (i *remoteInfo) ModTime() time.Time { return i.modTime }
func (i *remoteInfo) IsDir() bool        { return false }
func (i *remoteInfo) Sys() any           { return nil }

var _ Provider = (*RemoteProvider)(nil)
