package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modda.yml")
	require.NoError(t, os.WriteFile(path, []byte("weidu_path: /opt/weidu\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/weidu", cfg.WeiduPath)
	require.NotEmpty(t, cfg.ArchiveCache)
	require.NotEmpty(t, cfg.ExtractLocation)
	require.Equal(t, 4, cfg.Concurrency)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modda.yml")
	require.NoError(t, os.WriteFile(path, []byte("bogus: true\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsExtractorWithoutCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modda.yml")
	require.NoError(t, os.WriteFile(path, []byte("extractors:\n  .rar:\n    args: [\"x\"]\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestMergePrefersDstScalarsAndMergesMapsKeyWise(t *testing.T) {
	project := &Config{
		WeiduPath:  "/opt/weidu",
		Extractors: map[string]ExtractorCommand{".rar": {Command: "unrar"}},
	}
	user := &Config{
		WeiduPath:   "/home/user/weidu",
		Concurrency: 8,
		Extractors:  map[string]ExtractorCommand{".7z": {Command: "7z"}, ".rar": {Command: "bsdtar"}},
	}

	Merge(project, user)

	require.Equal(t, "/opt/weidu", project.WeiduPath, "project layer's scalar wins on conflict")
	require.Equal(t, 8, project.Concurrency, "project layer's unset scalar picks up the user layer's value")
	require.Equal(t, "unrar", project.Extractors[".rar"].Command, "project layer's map entry wins on a shared key")
	require.Equal(t, "7z", project.Extractors[".7z"].Command, "user layer's map entry survives when the project layer has no conflicting key")
}

func TestLoadCredentialsMissingIsNotError(t *testing.T) {
	creds, warning, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	require.Nil(t, creds)
	require.Empty(t, warning)
}

func TestLoadCredentialsParsesTokens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modda-credentials.yml")
	require.NoError(t, os.WriteFile(path, []byte("github:\n  personal_tokens:\n    main: ghp_abc123\n"), 0o600))

	creds, _, err := LoadCredentials(path)
	require.NoError(t, err)
	tok, ok := creds.Lookup("main")
	require.True(t, ok)
	require.Equal(t, "ghp_abc123", tok)
}
