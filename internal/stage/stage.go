// Package stage promotes a mutated, staged mod tree into the game
// directory under its canonical name, or recognizes that promotion has
// already happened and should be skipped entirely.
package stage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modda-mods/modda/internal/modderr"
	"github.com/modda-mods/modda/internal/sandbox"
)

// AlreadyStaged reports whether gameDir already has <name>/<name>.tp2 or
// <name>/setup-<name>.tp2 — invariant 5: once staged, subsequent runs skip
// fetch/extract/mutate for that mod.
func AlreadyStaged(gameDir, canonicalName string) bool {
	dir := filepath.Join(gameDir, canonicalName)
	for _, candidate := range []string{canonicalName + ".tp2", "setup-" + canonicalName + ".tp2"} {
		if _, err := os.Stat(filepath.Join(dir, candidate)); err == nil {
			return true
		}
	}
	return false
}

// Promote copies stagedRoot into gameDir/canonicalName, preserving file
// modification times. It is not transactional: on partial failure the
// caller is told which file failed and left to clean up, since weidu will
// be unable to run against a half-copied tree anyway.
func Promote(moduleName, stagedRoot, gameDir, canonicalName string) error {
	dest := filepath.Join(gameDir, canonicalName)

	err := filepath.Walk(stagedRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(stagedRoot, path)
		if relErr != nil {
			return relErr
		}
		// Rooted at gameDir, which is assumed to already exist, rather than
		// at dest, which may not — SafeMkdirAll needs an existing root to
		// resolve symlinks against.
		if info.IsDir() {
			return sandbox.SafeMkdirAll(gameDir, filepath.Join(canonicalName, rel), 0o755)
		}
		return copyFilePreservingMTime(path, filepath.Join(dest, rel), info)
	})
	if err != nil {
		return modderr.New(modderr.KindConfiguration, moduleName, fmt.Errorf("promoting %s: %w", moduleName, err))
	}
	return nil
}

func copyFilePreservingMTime(src, dst string, info os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
