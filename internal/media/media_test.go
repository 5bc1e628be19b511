package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskStoreSaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStore(dir, "/media")
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "items/abc/one.png", strings.NewReader("bytes")))

	data, err := os.ReadFile(filepath.Join(dir, "items", "abc", "one.png"))
	require.NoError(t, err)
	require.Equal(t, "bytes", string(data))

	require.NoError(t, s.Remove(ctx, "items/abc/one.png"))

	// Empty parent directories are pruned, the root stays.
	_, err = os.Stat(filepath.Join(dir, "items"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(dir)
	require.NoError(t, err)
}

func TestDiskStoreRemoveMissingIsNoop(t *testing.T) {
	s, err := NewDiskStore(t.TempDir(), "/media")
	require.NoError(t, err)

	require.NoError(t, s.Remove(context.Background(), "items/never/was.png"))
}

func TestDiskStoreRejectsEscapingPaths(t *testing.T) {
	s, err := NewDiskStore(t.TempDir(), "/media")
	require.NoError(t, err)

	ctx := context.Background()
	for _, path := range []string{"../outside.png", "items/../../outside.png", "/etc/passwd", "."} {
		require.Error(t, s.Save(ctx, path, strings.NewReader("x")), path)
	}
}

func TestDiskStoreURL(t *testing.T) {
	s, err := NewDiskStore(t.TempDir(), "/media/")
	require.NoError(t, err)

	require.Equal(t, "/media/items/a.png", s.URL("items/a.png"))
	require.Equal(t, "/media/items/a.png", s.URL("/items/a.png"))
}
