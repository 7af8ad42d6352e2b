package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"moonsan/internal/artifact"
	"moonsan/internal/cli"
	"moonsan/internal/flags"
	"moonsan/internal/patch"
)

// runnerFunc adapts a closure to the runner interface so tests can observe
// on-disk state at the moment the external tool would run.
type runnerFunc func(root string, set flags.Set) (int, error)

func (f runnerFunc) Run(root string, set flags.Set) (int, error) {
	return f(root, set)
}

const structuredFixture = `{
  "name": "ffi",
  "link": {
    "native": {
      "stub-cc-flags": "-I./inc"
    }
  }
}
`

const freeTextFixture = `package ffi

"link": {
  "native": {
    "cc": "cc",
  },
}
`

func linuxFlags(t *testing.T) flags.Set {
	t.Helper()
	set, err := flags.Select("linux")
	require.NoError(t, err)
	return set
}

func writeFixture(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunPatchesDuringRunAndRestoresAfter(t *testing.T) {
	root := t.TempDir()
	jsonPath := writeFixture(t, root, "ffi/moon.pkg.json", structuredFixture)
	textPath := writeFixture(t, root, "sys/moon.pkg", freeTextFixture)

	cfg := &cli.Config{RepoRoot: root, Packages: []string{"ffi", "sys"}, KeepAllocator: true}

	var seenJSON, seenText string
	stub := runnerFunc(func(runRoot string, set flags.Set) (int, error) {
		require.Equal(t, root, runRoot)
		j, err := os.ReadFile(jsonPath)
		require.NoError(t, err)
		seenJSON = string(j)
		x, err := os.ReadFile(textPath)
		require.NoError(t, err)
		seenText = string(x)
		return 3, nil
	})

	a, err := NewWithRunner(cfg, linuxFlags(t), stub)
	require.NoError(t, err)

	code, err := a.Run()
	require.NoError(t, err)
	require.Equal(t, 3, code)

	// Patched while the runner was live.
	require.Contains(t, seenJSON, `"stub-cc-flags": "-I./inc -g -fsanitize=address"`)
	require.Contains(t, seenJSON, `"cc-link-flags": "-fsanitize=address"`)
	require.Contains(t, seenText, `"cc": "gcc"`)

	// Restored byte-for-byte afterward.
	j, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.Equal(t, structuredFixture, string(j))
	x, err := os.ReadFile(textPath)
	require.NoError(t, err)
	require.Equal(t, freeTextFixture, string(x))
}

func TestRunSwapsAllocatorArchive(t *testing.T) {
	root := t.TempDir()
	moonHome := t.TempDir()
	t.Setenv("MOON_HOME", moonHome)

	allocator := filepath.Join(moonHome, "lib", "libmimalloc.a")
	original := []byte("!<arch>\nreal allocator members")
	require.NoError(t, os.MkdirAll(filepath.Dir(allocator), 0o755))
	require.NoError(t, os.WriteFile(allocator, original, 0o644))

	cfg := &cli.Config{RepoRoot: root}

	stub := runnerFunc(func(string, flags.Set) (int, error) {
		got, err := os.ReadFile(allocator)
		require.NoError(t, err)
		require.Equal(t, artifact.EmptyArchive, got)
		return 0, nil
	})

	a, err := NewWithRunner(cfg, linuxFlags(t), stub)
	require.NoError(t, err)

	code, err := a.Run()
	require.NoError(t, err)
	require.Equal(t, 0, code)

	got, err := os.ReadFile(allocator)
	require.NoError(t, err)
	require.Equal(t, original, got)
}

func TestRunMidBatchFailureRestoresEverything(t *testing.T) {
	root := t.TempDir()
	jsonPath := writeFixture(t, root, "ok/moon.pkg.json", structuredFixture)
	// No native block, so patching this one is a fatal configuration error.
	badPath := writeFixture(t, root, "bad/moon.pkg", "package bad\n")

	cfg := &cli.Config{RepoRoot: root, Packages: []string{"ok", "bad"}, KeepAllocator: true}

	invoked := false
	stub := runnerFunc(func(string, flags.Set) (int, error) {
		invoked = true
		return 0, nil
	})

	a, err := NewWithRunner(cfg, linuxFlags(t), stub)
	require.NoError(t, err)

	_, err = a.Run()
	require.ErrorIs(t, err, patch.ErrMissingNativeBlock)
	require.False(t, invoked, "runner must not start after a patch failure")

	// The first target was already patched when the second failed; both
	// must be back to their originals.
	j, readErr := os.ReadFile(jsonPath)
	require.NoError(t, readErr)
	require.Equal(t, structuredFixture, string(j))
	b, readErr := os.ReadFile(badPath)
	require.NoError(t, readErr)
	require.Equal(t, "package bad\n", string(b))
}

func TestRunDeduplicatesAliasedTargets(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "ffi/moon.pkg.json", structuredFixture)

	cfg := &cli.Config{
		RepoRoot:      root,
		Packages:      []string{"ffi", "ffi/moon.pkg.json"},
		KeepAllocator: true,
	}

	stub := runnerFunc(func(string, flags.Set) (int, error) {
		content, err := os.ReadFile(filepath.Join(root, "ffi", "moon.pkg.json"))
		require.NoError(t, err)
		s := string(content)
		require.Contains(t, s, `"stub-cc-flags": "-I./inc -g -fsanitize=address"`)
		require.Equal(t, 1, strings.Count(s, "-I./inc"), "aliased target patched more than once")
		return 0, nil
	})

	a, err := NewWithRunner(cfg, linuxFlags(t), stub)
	require.NoError(t, err)

	_, err = a.Run()
	require.NoError(t, err)
}

func TestRunResolutionFailureAbortsBeforeRunner(t *testing.T) {
	root := t.TempDir()
	cfg := &cli.Config{RepoRoot: root, Packages: []string{"missing"}, KeepAllocator: true}

	invoked := false
	stub := runnerFunc(func(string, flags.Set) (int, error) {
		invoked = true
		return 0, nil
	})

	a, err := NewWithRunner(cfg, linuxFlags(t), stub)
	require.NoError(t, err)

	_, err = a.Run()
	require.Error(t, err)
	require.False(t, invoked)
}

func TestRunRunnerFailureStillRestores(t *testing.T) {
	root := t.TempDir()
	jsonPath := writeFixture(t, root, "ffi/moon.pkg.json", structuredFixture)

	cfg := &cli.Config{RepoRoot: root, Packages: []string{"ffi"}, KeepAllocator: true}

	stub := runnerFunc(func(string, flags.Set) (int, error) {
		return 0, os.ErrNotExist // moon binary missing
	})

	a, err := NewWithRunner(cfg, linuxFlags(t), stub)
	require.NoError(t, err)

	_, err = a.Run()
	require.Error(t, err)

	j, readErr := os.ReadFile(jsonPath)
	require.NoError(t, readErr)
	require.Equal(t, structuredFixture, string(j))
}

func TestNewWithRunnerRejectsMissingRoot(t *testing.T) {
	cfg := &cli.Config{RepoRoot: filepath.Join(t.TempDir(), "absent")}
	_, err := NewWithRunner(cfg, linuxFlags(t), runnerFunc(nil))
	require.Error(t, err)
}
