// Package fetch defines the transport boundary the loader pulls raw
// dataset bytes through, plus the two reference implementations the CLI
// and tests use: a filesystem fetcher and an HTTP fetcher. Retry policy
// lives here, at the transport, never in the loader.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrSourceNotFound is returned when the named source does not exist at
// the transport's backing location.
var ErrSourceNotFound = errors.New("source not found")

// Fetcher supplies the raw bytes of a named dataset source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// FileFetcher reads dataset sources from a root directory. Source names
// are relative paths; anything escaping the root is rejected.
type FileFetcher struct {
	root string
}

var _ Fetcher = (*FileFetcher)(nil)

// NewFileFetcher returns a fetcher rooted at dir.
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{root: dir}
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(_ context.Context, source string) ([]byte, error) {
	cleaned := filepath.Clean(filepath.FromSlash(source))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("source %q escapes the data directory", source)
	}

	data, err := os.ReadFile(filepath.Join(f.root, cleaned))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, source)
		}
		return nil, fmt.Errorf("reading source %q: %w", source, err)
	}
	return data, nil
}

// HTTPFetcher retrieves dataset sources from a base URL. Transient
// failures are retried by the underlying retryable client; callers see
// only the final outcome.
type HTTPFetcher struct {
	baseURL string
	client  *retryablehttp.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// HTTPOpt configures an HTTPFetcher.
type HTTPOpt func(*HTTPFetcher)

// WithRetryMax bounds the number of retries for a single fetch.
func WithRetryMax(n int) HTTPOpt {
	return func(f *HTTPFetcher) {
		f.client.RetryMax = n
	}
}

// WithHTTPClient overrides the underlying http.Client, for tests.
func WithHTTPClient(c *http.Client) HTTPOpt {
	return func(f *HTTPFetcher) {
		f.client.HTTPClient = c
	}
}

// NewHTTPFetcher returns a fetcher for sources served under baseURL.
func NewHTTPFetcher(baseURL string, opts ...HTTPOpt) *HTTPFetcher {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3

	f := &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	endpoint := f.baseURL + "/" + url.PathEscape(source)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for source %q: %w", source, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching source %q: %w", source, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, source)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching source %q: unexpected status %d", source, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response for source %q: %w", source, err)
	}
	return data, nil
}
