package vfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
)

// Source reads a remote file with HTTP range requests. It satisfies
// ReadSource and pak.ByteSource, and implements ReadRange so that pak can
// stream a compressed entry in one request.
type Source struct {
	ctx     context.Context
	url     string
	client  *http.Client
	headers http.Header
	size    int64
	etag    string
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithSourceClient sets the HTTP client used for requests.
func WithSourceClient(client *http.Client) SourceOption {
	return func(s *Source) {
		s.client = client
	}
}

// WithSourceHeader sets a header on each request.
func WithSourceHeader(key, value string) SourceOption {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(http.Header)
		}
		s.headers.Set(key, value)
	}
}

// NewSource probes url for its size and range support and returns a Source.
//
// ctx bounds the probe. Later reads use ctx's values without its
// cancellation, since the Source usually outlives the call that opened it.
// Reads send If-Match with the probed ETag so that a file replaced on the
// host fails loudly instead of mixing versions.
func NewSource(ctx context.Context, url string, opts ...SourceOption) (*Source, error) {
	s := &Source{ctx: ctx, url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if err := s.probe(); err != nil {
		return nil, err
	}
	s.ctx = context.WithoutCancel(ctx)
	return s, nil
}

// Size returns the size of the remote file.
func (s *Source) Size() int64 {
	return s.size
}

// Close is a no-op; connections are released after each read.
func (s *Source) Close() error {
	return nil
}

// ReadAt implements io.ReaderAt with a single range request.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), s.size-off)

	body, err := s.rangeBody(off, want)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange returns a reader for [off, off+length). The caller must close it.
func (s *Source) ReadRange(off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("read range %d+%d: negative value", off, length)
	}
	if length == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if off >= s.size {
		return nil, io.EOF
	}
	return s.rangeBody(off, min(length, s.size-off))
}

func (s *Source) rangeBody(off, length int64) (io.ReadCloser, error) {
	req, err := s.newRequest(http.MethodGet)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+length-1))
	if s.etag != "" {
		req.Header.Set("If-Match", s.etag)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		return &drainCloser{Reader: io.LimitReader(resp.Body, length), body: resp.Body}, nil
	case http.StatusRequestedRangeNotSatisfiable:
		drain(resp.Body)
		return nil, io.EOF
	case http.StatusPreconditionFailed:
		drain(resp.Body)
		return nil, fmt.Errorf("%s changed on the host", s.url)
	case http.StatusOK:
		drain(resp.Body)
		return nil, errors.New("range requests not supported")
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("range request failed: %s", resp.Status)
	}
}

// probe records the size and ETag. HEAD is advisory; the bytes=0-0 probe
// is authoritative because it also proves range support.
func (s *Source) probe() error {
	headSize := int64(-1)
	if req, err := s.newRequest(http.MethodHead); err == nil {
		if resp, err := s.client.Do(req); err == nil {
			drain(resp.Body)
			if resp.StatusCode == http.StatusOK {
				headSize = resp.ContentLength
				s.etag = resp.Header.Get("ETag")
			}
		}
	}

	req, err := s.newRequest(http.MethodGet)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		return errors.New("range requests not supported")
	case http.StatusNotFound:
		return &fs.PathError{Op: "open", Path: s.url, Err: fs.ErrNotExist}
	default:
		return fmt.Errorf("range probe failed: %s", resp.Status)
	}

	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	if headSize > 0 && headSize != size {
		return fmt.Errorf("content size mismatch: head=%d range=%d", headSize, size)
	}
	if s.etag == "" {
		s.etag = resp.Header.Get("ETag")
	}
	s.size = size
	return nil
}

func (s *Source) newRequest(method string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(s.ctx, method, s.url, http.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	// Byte offsets must refer to the stored bytes, not a transfer encoding.
	req.Header.Set("Accept-Encoding", "identity")
	return req, nil
}

// drainCloser drains the response body on Close so the connection can be reused.
type drainCloser struct {
	io.Reader
	body io.ReadCloser
}

func (d *drainCloser) Close() error {
	_, _ = io.Copy(io.Discard, d.body) //nolint:errcheck // best-effort drain for connection reuse
	return d.body.Close()
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body) //nolint:errcheck // best-effort drain for connection reuse
	_ = body.Close()
}

// parseContentRange extracts the total size from "bytes start-end/size".
func parseContentRange(value string) (int64, error) {
	value = strings.TrimSpace(value)
	rest, ok := strings.CutPrefix(value, "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
