package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigReadsExplicitOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modda.yml")
	require.NoError(t, os.WriteFile(path, []byte("weidu_path: /opt/weidu\nconcurrency: 6\n"), 0o644))

	oldConfigPath := configPath
	configPath = path
	defer func() { configPath = oldConfigPath }()

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, "/opt/weidu", cfg.WeiduPath)
	require.Equal(t, 6, cfg.Concurrency)
}

func TestLoadConfigMissingExplicitOverrideIsError(t *testing.T) {
	oldConfigPath := configPath
	configPath = filepath.Join(t.TempDir(), "nope.yml")
	defer func() { configPath = oldConfigPath }()

	_, err := loadConfig()
	require.Error(t, err)
}

func TestLoadConfigDefaultsWhenNothingDiscovered(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	oldConfigPath := configPath
	configPath = ""
	defer func() { configPath = oldConfigPath }()

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Concurrency)
	require.NotEmpty(t, cfg.ArchiveCache)
}
