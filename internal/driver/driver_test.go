package driver

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modda-mods/modda/internal/cache"
	"github.com/modda-mods/modda/internal/config"
	"github.com/modda-mods/modda/internal/logging"
	"github.com/modda-mods/modda/internal/manifest"
	"github.com/modda-mods/modda/internal/source"
)

func buildFixtureZip(t *testing.T, modName string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	top := modName + "/"
	_, err := zw.Create(top)
	require.NoError(t, err)

	tp2, err := zw.Create(top + "setup-" + modName + ".tp2")
	require.NoError(t, err)
	_, err = tp2.Write([]byte("// fixture tp2\n"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func fakeWeiduScript(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake weidu script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "weidu")
	script := `#!/bin/sh
for arg in "$@"; do
  if [ "$arg" = "--list-languages" ]; then
    echo "0:English"
    exit 0
  fi
done
echo "Installing component"
echo "SUCCESSFULLY INSTALLED"
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestDriverRunInstallsModuleFromHTTPLocation(t *testing.T) {
	modName := "examplemod"
	zipBytes := buildFixtureZip(t, modName)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes)
	}))
	defer server.Close()

	gameDir := t.TempDir()
	extractDir := t.TempDir()
	cacheDir := t.TempDir()

	c, err := cache.New(cacheDir)
	require.NoError(t, err)

	cfg := &config.Config{ExtractLocation: extractDir}
	registry := source.NewRegistry(c, cfg, nil, server.Client())

	m := &manifest.Manifest{
		Path: filepath.Join(t.TempDir(), "modda.yml"),
		Global: manifest.Global{
			LangDir:         "en_us",
			LangPreferences: []string{"english"},
		},
		Modules: []manifest.Module{
			{
				Name:       modName,
				Components: manifest.ComponentSelector{Entries: []manifest.ComponentEntry{{Index: 0}}},
				Location:   manifest.HTTPLocation{URL: server.URL + "/mod.zip"},
			},
		},
	}

	d := &Driver{
		Config:    cfg,
		Manifest:  m,
		Registry:  registry,
		WeiduPath: fakeWeiduScript(t),
		GameDir:   gameDir,
		Logger:    logging.New(false, true),
	}

	results, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].Skipped)

	_, statErr := os.Stat(filepath.Join(gameDir, modName, "setup-"+modName+".tp2"))
	require.NoError(t, statErr)
}

func TestDriverRunWithPreFetchInstallsAllModules(t *testing.T) {
	modA, modB := "firstmod", "secondmod"
	zipA := buildFixtureZip(t, modA)
	zipB := buildFixtureZip(t, modB)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.zip":
			_, _ = w.Write(zipA)
		case "/b.zip":
			_, _ = w.Write(zipB)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	gameDir := t.TempDir()
	cacheDir := t.TempDir()
	c, err := cache.New(cacheDir)
	require.NoError(t, err)

	cfg := &config.Config{ExtractLocation: t.TempDir(), Concurrency: 2}
	registry := source.NewRegistry(c, cfg, nil, server.Client())

	m := &manifest.Manifest{
		Path: filepath.Join(t.TempDir(), "modda.yml"),
		Global: manifest.Global{
			LangDir:         "en_us",
			LangPreferences: []string{"english"},
		},
		Modules: []manifest.Module{
			{
				Name:       modA,
				Components: manifest.ComponentSelector{Entries: []manifest.ComponentEntry{{Index: 0}}},
				Location:   manifest.HTTPLocation{URL: server.URL + "/a.zip"},
			},
			{
				Name:       modB,
				Components: manifest.ComponentSelector{Entries: []manifest.ComponentEntry{{Index: 0}}},
				Location:   manifest.HTTPLocation{URL: server.URL + "/b.zip"},
			},
		},
	}

	d := &Driver{
		Config:    cfg,
		Manifest:  m,
		Registry:  registry,
		WeiduPath: fakeWeiduScript(t),
		GameDir:   gameDir,
		Logger:    logging.New(false, true),
		PreFetch:  true,
	}

	results, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.False(t, r.Skipped)
	}

	_, statErr := os.Stat(filepath.Join(gameDir, modA, "setup-"+modA+".tp2"))
	require.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(gameDir, modB, "setup-"+modB+".tp2"))
	require.NoError(t, statErr)
}

func TestDriverRunReleasesStagingDirOnMutationFailure(t *testing.T) {
	modName := "brokenmod"
	zipBytes := buildFixtureZip(t, modName)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes)
	}))
	defer server.Close()

	gameDir := t.TempDir()
	extractDir := t.TempDir()
	cacheDir := t.TempDir()

	c, err := cache.New(cacheDir)
	require.NoError(t, err)

	cfg := &config.Config{ExtractLocation: extractDir}
	registry := source.NewRegistry(c, cfg, nil, server.Client())

	m := &manifest.Manifest{
		Path: filepath.Join(t.TempDir(), "modda.yml"),
		Global: manifest.Global{
			LangDir:         "en_us",
			LangPreferences: []string{"english"},
		},
		Modules: []manifest.Module{
			{
				Name:       modName,
				Components: manifest.ComponentSelector{Entries: []manifest.ComponentEntry{{Index: 0}}},
				Location:   manifest.HTTPLocation{URL: server.URL + "/mod.zip"},
				// An absolute file_name is rejected by ApplyAddConf, forcing
				// mutateModule to fail after fetch/extract has already
				// created a staging directory.
				AddConf: &manifest.AddConf{FileName: "/etc/passwd", Content: "x"},
			},
		},
	}

	d := &Driver{
		Config:    cfg,
		Manifest:  m,
		Registry:  registry,
		WeiduPath: fakeWeiduScript(t),
		GameDir:   gameDir,
		Logger:    logging.New(false, true),
	}

	_, err = d.Run(context.Background())
	require.Error(t, err)

	entries, err := os.ReadDir(extractDir)
	require.NoError(t, err)
	require.Empty(t, entries, "staging directory should be released after a mutation failure")
}

func TestSweepStaleStagingRemovesLeftoverDirectories(t *testing.T) {
	extractDir := t.TempDir()
	stale := filepath.Join(extractDir, "modda-stage-leftover")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "partial.tp2"), []byte("x"), 0o644))

	kept := filepath.Join(extractDir, "somemod")
	require.NoError(t, os.MkdirAll(kept, 0o755))

	d := &Driver{Config: &config.Config{ExtractLocation: extractDir}}
	require.NoError(t, d.sweepStaleStaging())

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(kept)
	require.NoError(t, err, "a module's own final root must not be swept")
}

func TestDriverRunRejectsConcurrentLock(t *testing.T) {
	gameDir := t.TempDir()
	lockPath := filepath.Join(gameDir, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("12345\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cacheDir := t.TempDir()
	c, err := cache.New(cacheDir)
	require.NoError(t, err)
	cfg := &config.Config{ExtractLocation: t.TempDir()}
	registry := source.NewRegistry(c, cfg, nil, http.DefaultClient)

	m := &manifest.Manifest{Global: manifest.Global{LangDir: "en_us"}}
	d := &Driver{Config: cfg, Manifest: m, Registry: registry, GameDir: gameDir, Logger: logging.New(false, true)}

	_, err = d.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "12345")

	// The lock file from the failed run's own acquisition attempt must not
	// have been removed, since it never owned it.
	data, readErr := os.ReadFile(lockPath)
	require.NoError(t, readErr)
	require.Equal(t, "12345\n", string(data))
}

func TestDriverRunReleasesLockOnSuccess(t *testing.T) {
	gameDir := t.TempDir()
	cacheDir := t.TempDir()
	c, err := cache.New(cacheDir)
	require.NoError(t, err)
	cfg := &config.Config{ExtractLocation: t.TempDir()}
	registry := source.NewRegistry(c, cfg, nil, http.DefaultClient)

	m := &manifest.Manifest{Global: manifest.Global{LangDir: "en_us"}}
	d := &Driver{Config: cfg, Manifest: m, Registry: registry, GameDir: gameDir, Logger: logging.New(false, true)}

	_, err = d.Run(context.Background())
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(gameDir, lockFileName))
	require.True(t, os.IsNotExist(statErr), "lock file should be released once the run completes")
}

func TestDriverRunSkipsAlreadyStagedModule(t *testing.T) {
	modName := "alreadythere"
	gameDir := t.TempDir()
	modDir := filepath.Join(gameDir, modName)
	require.NoError(t, os.MkdirAll(modDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modDir, modName+".tp2"), []byte("x"), 0o644))

	cacheDir := t.TempDir()
	c, err := cache.New(cacheDir)
	require.NoError(t, err)
	cfg := &config.Config{ExtractLocation: t.TempDir()}
	registry := source.NewRegistry(c, cfg, nil, http.DefaultClient)

	m := &manifest.Manifest{
		Global: manifest.Global{LangDir: "en_us"},
		Modules: []manifest.Module{
			{
				Name:       modName,
				Components: manifest.ComponentSelector{Entries: []manifest.ComponentEntry{{Index: 0}}},
				Location:   manifest.HTTPLocation{URL: "http://example.invalid/should-not-be-fetched.zip"},
			},
		},
	}

	d := &Driver{
		Config:   cfg,
		Manifest: m,
		Registry: registry,
		GameDir:  gameDir,
		Logger:   logging.New(false, true),
	}

	results, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Skipped)
}
