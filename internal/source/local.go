package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modda-mods/modda/internal/manifest"
)

// LocalFetcher resolves a path already on disk. Nothing is copied into the
// cache: the path is used in place, with "~" expanded to the user's home
// directory.
type LocalFetcher struct{}

func (f *LocalFetcher) Supports(loc manifest.Location) bool {
	_, ok := loc.(manifest.LocalLocation)
	return ok
}

func (f *LocalFetcher) Fetch(_ context.Context, loc manifest.Location, _ string) (string, error) {
	l := loc.(manifest.LocalLocation)

	expanded, err := expandHome(l.Path)
	if err != nil {
		return "", fmt.Errorf("expanding local path %s: %w", l.Path, err)
	}

	if _, err := os.Stat(expanded); err != nil {
		return "", fmt.Errorf("local archive %s: %w", expanded, err)
	}
	return expanded, nil
}

func expandHome(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if p == "~" {
			return home, nil
		}
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}
