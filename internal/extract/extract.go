// Package extract unpacks an archive into a staging directory and
// normalizes its layout to the mod's canonical root.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modda-mods/modda/internal/config"
	"github.com/modda-mods/modda/internal/sandbox"
)

// Extractor unpacks a single archive format into dest.
type Extractor interface {
	Extract(ctx context.Context, archivePath, dest string) error
}

// Dispatch picks the Extractor for an archive's filename, checking
// compound extensions before simple ones, and falling through to an
// external command registered in cfg.Extractors.
func Dispatch(filename string, cfg *config.Config) (Extractor, error) {
	lower := strings.ToLower(filename)

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGzExtractor{}, nil
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return TarBz2Extractor{}, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return TarXzExtractor{}, nil
	case strings.HasSuffix(lower, ".tar"):
		return TarExtractor{}, nil
	case strings.HasSuffix(lower, ".zip"):
		return ZipExtractor{}, nil
	}

	ext := filepath.Ext(lower)
	if ec, ok := cfg.Extractors[ext]; ok {
		return ExternalExtractor{Command: ec.Command, Args: ec.Args}, nil
	}

	return nil, fmt.Errorf("no built-in or configured extractor for %s", filename)
}

// ExtractAndNormalize extracts archivePath into a fresh staging directory
// under extractRoot, then relocates and renames the effective mod root so
// the caller is handed exactly `<extractRoot>/<canonicalName>`.
func ExtractAndNormalize(ctx context.Context, archivePath, extractRoot, canonicalName string, cfg *config.Config) (string, error) {
	staging, err := os.MkdirTemp(extractRoot, "modda-stage-*")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	stagingName := filepath.Base(staging)

	ex, err := Dispatch(filepath.Base(archivePath), cfg)
	if err != nil {
		_ = sandbox.SafeRemoveAll(extractRoot, stagingName)
		return "", err
	}

	if err := ex.Extract(ctx, archivePath, staging); err != nil {
		_ = sandbox.SafeRemoveAll(extractRoot, stagingName)
		return "", err
	}

	root, err := effectiveRoot(staging, canonicalName)
	if err != nil {
		_ = sandbox.SafeRemoveAll(extractRoot, stagingName)
		return "", err
	}

	final := filepath.Join(extractRoot, canonicalName)
	_ = sandbox.SafeRemoveAll(extractRoot, canonicalName)
	if err := os.Rename(root, final); err != nil {
		return "", fmt.Errorf("promoting staged mod root: %w", err)
	}
	if root != staging {
		_ = sandbox.SafeRemoveAll(extractRoot, stagingName)
	}

	return final, nil
}

// effectiveRoot implements the "effective mod root" rule: if the archive's
// top level consists of exactly one directory and that directory contains
// the mod's .tp2 (or setup-<name>.tp2), that directory is the root;
// otherwise the staging directory itself is.
func effectiveRoot(staging, canonicalName string) (string, error) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", fmt.Errorf("reading staging directory: %w", err)
	}

	if len(entries) == 1 && entries[0].IsDir() {
		candidate := filepath.Join(staging, entries[0].Name())
		if hasTP2(candidate, canonicalName) {
			return candidate, nil
		}
	}
	return staging, nil
}

func hasTP2(dir, canonicalName string) bool {
	names := []string{canonicalName + ".tp2", "setup-" + canonicalName + ".tp2"}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		lower := strings.ToLower(e.Name())
		for _, n := range names {
			if lower == n {
				return true
			}
		}
	}
	return false
}

// SafeJoin validates an archive entry name against dest using the same
// traversal guard the path-hygiene component exposes, so every extractor
// shares one rejection policy.
func SafeJoin(dest, name string) (string, error) {
	return sandbox.EntryPath(dest, name)
}
