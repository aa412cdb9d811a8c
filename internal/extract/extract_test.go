package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modda-mods/modda/internal/config"
)

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestZipExtractorRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeTestZip(t, archive, map[string]string{"../escape.txt": "bad"})

	dest := t.TempDir()
	err := ZipExtractor{}.Extract(context.Background(), archive, dest)
	require.Error(t, err)
}

func TestZipExtractorUnpacksFiles(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "mod.zip")
	writeTestZip(t, archive, map[string]string{
		"mymod/mymod.tp2": "tp2 content",
		"mymod/readme.txt": "hi",
	})

	dest := t.TempDir()
	require.NoError(t, ZipExtractor{}.Extract(context.Background(), archive, dest))

	data, err := os.ReadFile(filepath.Join(dest, "mymod", "mymod.tp2"))
	require.NoError(t, err)
	require.Equal(t, "tp2 content", string(data))
}

func TestExtractAndNormalizeRenamesSingleTopLevelDir(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "mymod-v2.zip")
	writeTestZip(t, archive, map[string]string{
		"MyMod-v2/mymod.tp2": "tp2",
		"MyMod-v2/data.bin":  "x",
	})

	extractRoot := t.TempDir()
	final, err := ExtractAndNormalize(context.Background(), archive, extractRoot, "mymod", &config.Config{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(extractRoot, "mymod"), final)

	_, err = os.Stat(filepath.Join(final, "mymod.tp2"))
	require.NoError(t, err)
}

func TestDispatchRecognizesCompoundExtensions(t *testing.T) {
	cfg := &config.Config{}
	cases := map[string]Extractor{
		"foo.tar.gz":  TarGzExtractor{},
		"foo.tgz":     TarGzExtractor{},
		"foo.tar.bz2": TarBz2Extractor{},
		"foo.tar.xz":  TarXzExtractor{},
		"foo.tar":     TarExtractor{},
		"foo.zip":     ZipExtractor{},
	}
	for name, want := range cases {
		got, err := Dispatch(name, cfg)
		require.NoError(t, err)
		require.IsType(t, want, got)
	}
}

func TestDispatchFallsThroughToExternal(t *testing.T) {
	cfg := &config.Config{Extractors: map[string]config.ExtractorCommand{
		".rar": {Command: "unrar", Args: []string{"x", "${input}", "${target}"}},
	}}
	got, err := Dispatch("archive.rar", cfg)
	require.NoError(t, err)
	ext, ok := got.(ExternalExtractor)
	require.True(t, ok)
	require.Equal(t, "unrar", ext.Command)
}

func TestSubstituteTokens(t *testing.T) {
	require.Equal(t, "x /in /out y", substituteTokens("x ${input} ${target} y", "/in", "/out"))
}
