package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlreadyStagedFalseWhenMissing(t *testing.T) {
	gameDir := t.TempDir()
	require.False(t, AlreadyStaged(gameDir, "mymod"))
}

func TestAlreadyStagedTrueWhenTP2Present(t *testing.T) {
	gameDir := t.TempDir()
	modDir := filepath.Join(gameDir, "mymod")
	require.NoError(t, os.MkdirAll(modDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modDir, "mymod.tp2"), []byte("x"), 0o644))

	require.True(t, AlreadyStaged(gameDir, "mymod"))
}

func TestPromoteCopiesTreePreservingStructure(t *testing.T) {
	staged := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staged, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staged, "mymod.tp2"), []byte("tp2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staged, "sub", "data.bin"), []byte("data"), 0o644))

	gameDir := t.TempDir()
	require.NoError(t, Promote("mymod", staged, gameDir, "mymod"))

	data, err := os.ReadFile(filepath.Join(gameDir, "mymod", "sub", "data.bin"))
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}
