package source

import (
	"context"
	"fmt"
	"net/http"
	neturl "net/url"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/modda-mods/modda/internal/cache"
	"github.com/modda-mods/modda/internal/config"
	"github.com/modda-mods/modda/internal/manifest"
)

// GitHubFetcher resolves release+asset, tag, commit, and branch coordinates
// against the GitHub API and downloads the resulting binary. When a
// Location.Auth credential is configured it authenticates with a personal
// access token; the token value is threaded only into the oauth2 transport
// and never appears in an error or log message.
type GitHubFetcher struct {
	Cache       *cache.Cache
	Credentials *config.Credentials
	Client      *http.Client
}

func (f *GitHubFetcher) Supports(loc manifest.Location) bool {
	_, ok := loc.(manifest.GitHubLocation)
	return ok
}

func (f *GitHubFetcher) Fetch(ctx context.Context, loc manifest.Location, moduleName string) (string, error) {
	g := loc.(manifest.GitHubLocation)

	kind, value, err := g.Coordinate()
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("github:%s/%s:%s:%s", g.GithubUser, g.Repository, kind, value)
	if kind == "release" {
		key += ":" + g.Asset
	}

	if path, ok := f.Cache.Lookup(key); ok {
		return path, nil
	}

	gh, err := f.client(ctx, g)
	if err != nil {
		return "", err
	}

	var downloadURL string
	switch kind {
	case "release":
		downloadURL, err = resolveReleaseAsset(ctx, gh, g.GithubUser, g.Repository, g.Release, g.Asset)
	case "tag", "branch", "commit":
		var archiveURL *neturl.URL
		archiveURL, _, err = gh.Repositories.GetArchiveLink(ctx, g.GithubUser, g.Repository, github.Tarball, &github.RepositoryContentGetOptions{Ref: value}, 1)
		if err == nil {
			downloadURL = archiveURL.String()
		}
	}
	if err != nil {
		return "", fmt.Errorf("resolving archive link for %s: %w", value, err)
	}

	res, err := f.Cache.Reserve(key)
	if err != nil {
		return "", fmt.Errorf("reserving cache slot: %w", err)
	}

	if err := downloadTo(ctx, f.httpClient(ctx, g), downloadURL, res); err != nil {
		return "", fmt.Errorf("downloading github asset: %w", err)
	}

	return res.Path(), nil
}

// client builds a go-github client, authenticated with the manifest's
// referenced PAT when one is set.
func (f *GitHubFetcher) client(ctx context.Context, g manifest.GitHubLocation) (*github.Client, error) {
	return github.NewClient(f.httpClient(ctx, g)), nil
}

// httpClient returns an oauth2-wrapped client when g.Auth names a known
// credential, or the plain shared client otherwise. This mirrors the
// conditional bearer-auth pattern of only attaching credentials to the
// requests that actually need them.
func (f *GitHubFetcher) httpClient(ctx context.Context, g manifest.GitHubLocation) *http.Client {
	base := f.Client
	if base == nil {
		base = http.DefaultClient
	}
	if g.Auth == "" {
		return base
	}

	name, ok := parsePATRef(g.Auth)
	if !ok {
		return base
	}
	token, ok := f.Credentials.Lookup(name)
	if !ok {
		return base
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return oauth2.NewClient(ctx, src)
}

func parsePATRef(auth string) (name string, ok bool) {
	const prefix = "PAT "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return "", false
	}
	return auth[len(prefix):], true
}

func resolveReleaseAsset(ctx context.Context, gh *github.Client, owner, repo, tag, assetName string) (string, error) {
	release, _, err := gh.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return "", fmt.Errorf("resolving release %s: %w", tag, err)
	}
	for _, asset := range release.Assets {
		if asset.GetName() == assetName {
			return asset.GetBrowserDownloadURL(), nil
		}
	}
	return "", fmt.Errorf("release %s has no asset named %s", tag, assetName)
}

func downloadTo(ctx context.Context, client *http.Client, url string, res *cache.Reservation) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Abort()
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		res.Abort()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Abort()
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("github rate limit or forbidden: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d downloading asset", resp.StatusCode)
	}

	return cache.CopyInto(res, resp.Body)
}
