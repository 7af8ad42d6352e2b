// Package pkgpath maps user-supplied package identifiers to concrete config
// files, picking between the two on-disk formats.
package pkgpath

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"moonsan/internal/patch"
)

const (
	structuredName = "moon.pkg.json"
	freeTextName   = "moon.pkg"
)

// Target is one concrete package config to patch. Identity is the resolved
// absolute path; targets are immutable once resolved.
type Target struct {
	Path   string // absolute path on disk
	Rel    string // path relative to the repo root, for reporting
	Format patch.Format
	Entry  bool
}

// Resolve maps each identifier to an existing config file. Identifiers may
// name either format variant directly or just the package directory, in which
// case the structured variant is preferred. Duplicate identifiers resolving
// to the same file collapse to the first occurrence, preserving the user's
// ordering.
func Resolve(root string, ids []string) ([]Target, error) {
	var targets []Target
	seen := make(map[string]struct{})

	for _, id := range ids {
		path, err := resolveOne(root, id)
		if err != nil {
			return nil, err
		}

		canon := canonical(path)
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		targets = append(targets, Target{
			Path:   path,
			Rel:    rel,
			Format: formatOf(path),
			Entry:  isEntry(path),
		})
	}
	return targets, nil
}

func candidates(root, id string) []string {
	base := filepath.Join(root, filepath.FromSlash(id))
	switch filepath.Base(base) {
	case structuredName, freeTextName:
		return []string{base}
	default:
		return []string{
			filepath.Join(base, structuredName),
			filepath.Join(base, freeTextName),
		}
	}
}

func resolveOne(root, id string) (string, error) {
	cands := candidates(root, id)
	for _, cand := range cands {
		info, err := os.Stat(cand)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(cand)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", cand, err)
		}
		return abs, nil
	}
	return "", fmt.Errorf("package config not found for %q (tried: %s)", id, strings.Join(cands, ", "))
}

// canonical resolves symlinks so aliased identifiers dedup to one snapshot.
func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

func formatOf(path string) patch.Format {
	if filepath.Base(path) == freeTextName {
		return patch.FreeText
	}
	return patch.Structured
}

var isMainPattern = regexp.MustCompile(`"is-main"\s*:\s*true`)

// isEntry classifies a package as entry (its output is a binary, or it carries
// its own test sources) versus library-only. Library packages must not receive
// main-binary compile flags.
func isEntry(path string) bool {
	if content, err := os.ReadFile(path); err == nil && isMainPattern.Match(content) {
		return true
	}
	dir := filepath.Dir(path)
	for _, pattern := range []string{"*_test.mbt", "*_wbtest.mbt"} {
		if matches, err := filepath.Glob(filepath.Join(dir, pattern)); err == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}
