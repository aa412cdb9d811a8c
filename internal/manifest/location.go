package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Location resolves to a local archive (or, for Local, an already-unpacked
// tree). It is a sum type over HTTPLocation, GitHubLocation and
// LocalLocation, dispatched by which shape-specific keys a manifest mapping
// carries — there is no explicit "type" discriminator field in the format.
type Location interface {
	isLocation()
	// Mutators returns the patch/replace operations uniformly attached to
	// any location shape.
	Mutators() (patch *PatchSpec, replace []ReplaceOp)
}

// HTTPLocation fetches an archive from a plain URL.
type HTTPLocation struct {
	URL     string      `yaml:"url"`
	Rename  string      `yaml:"rename,omitempty"`
	Patch   *PatchSpec  `yaml:"patch,omitempty"`
	Replace []ReplaceOp `yaml:"replace,omitempty"`
}

func (HTTPLocation) isLocation() {}
func (h HTTPLocation) Mutators() (*PatchSpec, []ReplaceOp) { return h.Patch, h.Replace }

// GitHubLocation fetches a release asset, or a tag/commit/branch source
// tarball, from GitHub, optionally authenticated with a named credential.
type GitHubLocation struct {
	GithubUser string `yaml:"github_user"`
	Repository string `yaml:"repository"`

	// Exactly one of the following coordinate forms is set.
	Release string `yaml:"release,omitempty"`
	Asset   string `yaml:"asset,omitempty"`
	Tag     string `yaml:"tag,omitempty"`
	Commit  string `yaml:"commit,omitempty"`
	Branch  string `yaml:"branch,omitempty"`

	Auth string `yaml:"auth,omitempty"`

	Patch   *PatchSpec  `yaml:"patch,omitempty"`
	Replace []ReplaceOp `yaml:"replace,omitempty"`
}

func (GitHubLocation) isLocation() {}
func (g GitHubLocation) Mutators() (*PatchSpec, []ReplaceOp) { return g.Patch, g.Replace }

// Coordinate identifies which ref form a GitHubLocation names, validating
// that exactly one was given.
func (g GitHubLocation) Coordinate() (kind, value string, err error) {
	set := map[string]string{}
	if g.Release != "" {
		set["release"] = g.Release
	}
	if g.Tag != "" {
		set["tag"] = g.Tag
	}
	if g.Commit != "" {
		set["commit"] = g.Commit
	}
	if g.Branch != "" {
		set["branch"] = g.Branch
	}
	switch len(set) {
	case 0:
		return "", "", fmt.Errorf("github location must set one of release+asset, tag, commit, or branch")
	case 1:
		for k, v := range set {
			if k == "release" && g.Asset == "" {
				return "", "", fmt.Errorf("github location with release must also set asset")
			}
			return k, v, nil
		}
	}
	return "", "", fmt.Errorf("github location must set exactly one of release, tag, commit, branch")
}

// LocalLocation uses an archive or directory already on disk.
type LocalLocation struct {
	Path    string      `yaml:"path"`
	Patch   *PatchSpec  `yaml:"patch,omitempty"`
	Replace []ReplaceOp `yaml:"replace,omitempty"`
}

func (LocalLocation) isLocation() {}
func (l LocalLocation) Mutators() (*PatchSpec, []ReplaceOp) { return l.Patch, l.Replace }

// locationUnmarshaler holds a decode target for a Location. The decoding
// path does not use it; key inspection and dispatch happen in
// unmarshalLocation.
type locationUnmarshaler struct {
	target *Location
}

// unmarshalLocation dispatches a module's `location` mapping to the concrete
// Location implementation its keys identify.
func unmarshalLocation(node *yaml.Node) (Location, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("location: expected a mapping, got %v", node.Kind)
	}

	keys := map[string]*yaml.Node{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys[node.Content[i].Value] = node.Content[i+1]
	}

	switch {
	case keys["github_user"] != nil || keys["repository"] != nil:
		if err := checkKnownFields(node, "github_user", "repository", "release", "asset", "tag", "commit", "branch", "auth", "patch", "replace"); err != nil {
			return nil, fmt.Errorf("github location: %w", err)
		}
		var g GitHubLocation
		if err := node.Decode(&g); err != nil {
			return nil, fmt.Errorf("github location: %w", err)
		}
		if _, _, err := g.Coordinate(); err != nil {
			return nil, fmt.Errorf("github location: %w", err)
		}
		return g, nil
	case keys["url"] != nil:
		if err := checkKnownFields(node, "url", "rename", "patch", "replace"); err != nil {
			return nil, fmt.Errorf("http location: %w", err)
		}
		var h HTTPLocation
		if err := node.Decode(&h); err != nil {
			return nil, fmt.Errorf("http location: %w", err)
		}
		return h, nil
	case keys["path"] != nil:
		if err := checkKnownFields(node, "path", "patch", "replace"); err != nil {
			return nil, fmt.Errorf("local location: %w", err)
		}
		var l LocalLocation
		if err := node.Decode(&l); err != nil {
			return nil, fmt.Errorf("local location: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("location: none of url, github_user/repository, path present")
	}
}
