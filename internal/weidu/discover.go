// Package weidu locates the external weidu binary, resolves the install
// language, drives per-component invocations, and classifies their
// outcome from exit status and log content.
package weidu

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Discover finds the weidu binary: the configured path, then weidu(.exe)
// in the game directory, then weidu on PATH. A missing weidu is reported
// before any mod is processed.
func Discover(configuredPath, gameDir string) (string, error) {
	if configuredPath != "" {
		if isExecutable(configuredPath) {
			return configuredPath, nil
		}
		return "", fmt.Errorf("configured weidu_path %s is not executable", configuredPath)
	}

	name := "weidu"
	if runtime.GOOS == "windows" {
		name = "weidu.exe"
	}

	local := filepath.Join(gameDir, name)
	if isExecutable(local) {
		return local, nil
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("weidu binary not found: checked weidu_path, %s, and PATH", local)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
