// Package sandbox canonicalizes paths and mod identifiers, and guards every
// write modda performs — whether unpacking an archive entry or promoting a
// staged tree — against escaping the directory it was scoped to.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePath checks that targetPath, joined onto root, stays within root
// even after symlinks are resolved. It returns the resolved absolute path.
func ValidatePath(root, targetPath string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving root symlinks: %w", err)
	}

	candidate := filepath.Clean(filepath.Join(realRoot, targetPath))

	resolved, err := resolveExistingPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving target path: %w", err)
	}

	// A relative path that climbs out of realRoot has escaped it, whether or
	// not realRoot itself is the result.
	rel, err := filepath.Rel(realRoot, resolved)
	if err != nil {
		return "", fmt.Errorf("computing path relative to root: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q resolves to %q which escapes root %q", targetPath, resolved, realRoot)
	}

	return resolved, nil
}

// resolveExistingPath resolves symlinks along path iteratively, walking up
// to the longest prefix that exists on disk and reattaching the remaining,
// not-yet-created segments unresolved.
func resolveExistingPath(path string) (string, error) {
	var pending []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(append([]string{resolved}, pending...)...), nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		pending = append([]string{filepath.Base(current)}, pending...)
		current = parent
	}
}

// EntryPath normalizes an archive entry name relative to root and rejects it
// outright if it is absolute or escapes root via a ".." segment. It sees
// only the name, not the entry type; the extractors reject symlink entries
// before calling it. This is invariant 4 of the manifest data model: staged
// archive contents never escape the mod directory.
func EntryPath(root, name string) (string, error) {
	cleanName := filepath.Clean(filepath.ToSlash(name))
	if filepath.IsAbs(cleanName) {
		return "", fmt.Errorf("archive entry %q is absolute", name)
	}
	for _, seg := range strings.Split(cleanName, "/") {
		if seg == ".." {
			return "", fmt.Errorf("archive entry %q escapes its root", name)
		}
	}
	joined := filepath.Join(root, filepath.FromSlash(cleanName))
	rootPrefix := root + string(filepath.Separator)
	if joined != root && !strings.HasPrefix(joined, rootPrefix) {
		return "", fmt.Errorf("archive entry %q resolves outside root", name)
	}
	return joined, nil
}

// SafeWrite atomically writes content to relPath inside root: temp file in
// the same directory, fsync, chmod, rename. No partial file is ever visible
// under the final name.
func SafeWrite(root, relPath string, content []byte, perm os.FileMode) error {
	resolved, err := ValidatePath(root, relPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".modda-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, resolved); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", resolved, err)
	}

	success = true
	return nil
}

// SafeMkdirAll creates directories within root, refusing to escape it.
func SafeMkdirAll(root, relPath string, perm os.FileMode) error {
	resolved, err := ValidatePath(root, relPath)
	if err != nil {
		return err
	}
	return os.MkdirAll(resolved, perm)
}

// SafeRemoveAll removes a path within root, refusing to escape it.
func SafeRemoveAll(root, relPath string) error {
	resolved, err := ValidatePath(root, relPath)
	if err != nil {
		return err
	}
	return os.RemoveAll(resolved)
}

// CanonicalName case-folds a mod name for use as a directory name, a weidu
// log filename stem, and as the key by which two modules with differently
// cased names are recognized as the same on-disk mod (invariant 2).
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
