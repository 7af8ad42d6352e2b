// Package session provides snapshot/restore over the files a run mutates.
// Every snapshotted file is written back byte-for-byte when the run ends,
// whatever the outcome.
package session

import (
	"fmt"
	"io/fs"
	"os"
)

type snapshot struct {
	path string
	data []byte
	mode fs.FileMode
}

// Session is the compensation list for one run. It is not safe for concurrent
// use; a run is fully sequential and assumes no concurrent invocation against
// the same files.
type Session struct {
	snapshots []snapshot
	index     map[string]struct{}
}

func New() *Session {
	return &Session{index: make(map[string]struct{})}
}

// Snapshot captures the file's current bytes as the restore target. A second
// request for the same path is a no-op: the first captured content stays the
// original, even if the file was mutated in between.
func (s *Session) Snapshot(path string) error {
	if _, ok := s.index[path]; ok {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}

	s.index[path] = struct{}{}
	s.snapshots = append(s.snapshots, snapshot{path: path, data: data, mode: info.Mode().Perm()})
	return nil
}

// Len reports how many files are held.
func (s *Session) Len() int {
	return len(s.snapshots)
}

// RestoreAll writes every snapshot back to disk. A failure on one file never
// stops the others; all restored paths and all failures are reported. The
// session is left empty so a second call cannot rewrite stale content.
func (s *Session) RestoreAll() (restored []string, errs []error) {
	for _, snap := range s.snapshots {
		if err := os.WriteFile(snap.path, snap.data, snap.mode); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", snap.path, err))
			continue
		}
		restored = append(restored, snap.path)
	}
	s.snapshots = nil
	s.index = make(map[string]struct{})
	return restored, errs
}
