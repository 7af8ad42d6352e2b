// Package artifact swaps out the toolchain's bundled allocator archive for
// the duration of a sanitizer run. ASan must own malloc; linking the bundled
// allocator would bypass its interception.
package artifact

import (
	"os"
	"path/filepath"
)

// EmptyArchive is a valid static archive with no members. Linking against it
// resolves no allocator symbols, so malloc falls back to libc where the
// sanitizer can intercept it.
var EmptyArchive = []byte("!<arch>\n")

// AllocatorArchive returns the path of the bundled allocator archive, or ""
// when no toolchain home can be determined. MOON_HOME overrides the default
// ~/.moon location.
func AllocatorArchive() string {
	home := os.Getenv("MOON_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		home = filepath.Join(userHome, ".moon")
	}
	return filepath.Join(home, "lib", "libmimalloc.a")
}

// Disable overwrites the archive with an empty one. The caller snapshots the
// original bytes first; restoration goes through the same session as the
// package configs.
func Disable(path string) error {
	return os.WriteFile(path, EmptyArchive, 0o644)
}
