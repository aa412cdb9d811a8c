package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/modda-mods/modda/internal/cache"
	"github.com/modda-mods/modda/internal/manifest"
)

// HTTPFetcher downloads an archive from a plain URL, caching it under a key
// that folds in the final filename so a rename still participates correctly
// in the cache key invariant.
type HTTPFetcher struct {
	Cache  *cache.Cache
	Client *http.Client
}

func (f *HTTPFetcher) Supports(loc manifest.Location) bool {
	_, ok := loc.(manifest.HTTPLocation)
	return ok
}

func (f *HTTPFetcher) Fetch(ctx context.Context, loc manifest.Location, moduleName string) (string, error) {
	h := loc.(manifest.HTTPLocation)

	filename := h.Rename
	if filename == "" {
		filename = filenameFromURL(h.URL)
	}
	key := fmt.Sprintf("http:%s:%s", h.URL, filename)

	if path, ok := f.Cache.Lookup(key); ok {
		return path, nil
	}

	res, err := f.Cache.Reserve(key)
	if err != nil {
		return "", fmt.Errorf("reserving cache slot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		res.Abort()
		return "", fmt.Errorf("building request for %s: %w", h.URL, err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		res.Abort()
		return "", fmt.Errorf("fetching %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Abort()
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, h.URL)
	}

	if err := cache.CopyInto(res, resp.Body); err != nil {
		return "", fmt.Errorf("downloading %s: %w", h.URL, err)
	}

	return res.Path(), nil
}

// filenameFromURL derives a filename from the URL's last path segment,
// percent-decoded, falling back to a hash-derived name when the URL has no
// usable segment (e.g. it ends in "/").
func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return cache.ComputeHashFallback(rawURL)
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" || strings.HasSuffix(u.Path, "/") {
		return cache.ComputeHashFallback(rawURL)
	}
	return base
}
