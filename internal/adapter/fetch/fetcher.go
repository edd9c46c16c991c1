// Package fetch downloads source images over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
)

// DefaultMaxBytes bounds a single source image.
const DefaultMaxBytes = 50 << 20

type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownload, err)
	}
	req.Header.Set("User-Agent", "imgbatch/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownload, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrDownload, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrDownload, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrDownload, url, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty body", domain.ErrDownload, url)
	}
	return data, nil
}

var _ port.ImageFetcher = (*Fetcher)(nil)
