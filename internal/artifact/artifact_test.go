package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatorArchiveHonorsMoonHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MOON_HOME", home)

	require.Equal(t, filepath.Join(home, "lib", "libmimalloc.a"), AllocatorArchive())
}

func TestDisableWritesEmptyArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libmimalloc.a")
	require.NoError(t, os.WriteFile(path, []byte("real allocator bytes"), 0o644))

	require.NoError(t, Disable(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, EmptyArchive, got)
}
