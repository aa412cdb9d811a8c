package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupMissing(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)
	_, ok := c.Lookup("http:example.org/mod.zip")
	require.False(t, ok)
}

func TestReserveCommitThenLookup(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	key := "http:example.org/mod.zip"
	res, err := c.Reserve(key)
	require.NoError(t, err)
	require.NoError(t, CopyInto(res, strings.NewReader("archive-bytes")))

	path, ok := c.Lookup(key)
	require.True(t, ok)
	require.FileExists(t, path)
}

func TestReserveAbortLeavesNoEntry(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	key := "http:example.org/mod.zip"
	res, err := c.Reserve(key)
	require.NoError(t, err)
	res.Abort()

	_, ok := c.Lookup(key)
	require.False(t, ok)
}

func TestReserveBlocksConcurrentSameKey(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	key := "github:org/repo@v1"
	res1, err := c.Reserve(key)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		res2, err := c.Reserve(key)
		require.NoError(t, err)
		res2.Abort()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second reservation should have blocked until first released")
	default:
	}

	require.NoError(t, CopyInto(res1, strings.NewReader("data")))
	<-done
}
