// Package source implements the three fetchers — HTTP, GitHub, local —
// that resolve a manifest Location into a local archive path, consulting
// the archive cache before touching the network.
package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modda-mods/modda/internal/cache"
	"github.com/modda-mods/modda/internal/config"
	"github.com/modda-mods/modda/internal/manifest"
	"github.com/modda-mods/modda/internal/modderr"
)

// Fetcher resolves a manifest Location to a local archive path, consulting
// cache first and populating it on a cache miss.
type Fetcher interface {
	// Supports reports whether this fetcher handles loc's concrete type.
	Supports(loc manifest.Location) bool
	// Fetch returns the local path of the archive (or, for a Local
	// directory location, the directory itself).
	Fetch(ctx context.Context, loc manifest.Location, moduleName string) (string, error)
}

// Registry dispatches a Location to the Fetcher that supports it.
type Registry struct {
	fetchers []Fetcher
}

// NewRegistry builds the standard HTTP/GitHub/local fetcher set, wired to
// the given cache, configuration and credentials.
func NewRegistry(c *cache.Cache, cfg *config.Config, creds *config.Credentials, client *http.Client) *Registry {
	return &Registry{fetchers: []Fetcher{
		&HTTPFetcher{Cache: c, Client: client},
		&GitHubFetcher{Cache: c, Credentials: creds, Client: client},
		&LocalFetcher{},
	}}
}

// Fetch dispatches loc to the matching registered Fetcher.
func (r *Registry) Fetch(ctx context.Context, loc manifest.Location, moduleName string) (string, error) {
	for _, f := range r.fetchers {
		if f.Supports(loc) {
			path, err := f.Fetch(ctx, loc, moduleName)
			if err != nil {
				return "", modderr.New(modderr.KindFetch, moduleName, err)
			}
			return path, nil
		}
	}
	return "", modderr.New(modderr.KindFetch, moduleName, fmt.Errorf("no fetcher registered for location type %T", loc))
}
