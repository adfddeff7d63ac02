// File: internal/infra/fetch/fetcher.go
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"photo-enhance-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher downloads provider output and presigned objects with a hard
// size cap. file:// URLs are read straight from disk, which is what the
// local blob store hands out.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 25 * 1024 * 1024
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "file://") {
		return f.fetchFile(rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, f.maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("object too large (>%d bytes)", f.maxBytes)
	}
	return body, nil
}

func (f *HTTPFetcher) fetchFile(rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse file url: %w", err)
	}
	info, err := os.Stat(u.Path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", u.Path, err)
	}
	if info.Size() > f.maxBytes {
		return nil, fmt.Errorf("object too large (>%d bytes)", f.maxBytes)
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Path, err)
	}
	return data, nil
}
