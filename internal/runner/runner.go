// Package runner invokes the external test command with the sanitizer
// environment. The call is opaque and blocking; the core only consumes its
// exit status.
package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"moonsan/internal/flags"
)

// suppressionsFile is the conventional LeakSanitizer suppression list at the
// repository root.
const suppressionsFile = ".lsan-suppressions"

// Runner runs the test suite once for the whole batch and returns its exit
// status. A non-zero status is not an error; errors mean the command could
// not be run at all.
type Runner interface {
	Run(root string, set flags.Set) (int, error)
}

// Moon runs `moon test --target native`.
type Moon struct{}

func (Moon) Run(root string, set flags.Set) (int, error) {
	cmd := exec.Command("moon", "test", "--target", "native", "-v")
	cmd.Dir = root
	cmd.Env = Environ(os.Environ(), root, set)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("failed to run moon test: %w", err)
	}
	return 0, nil
}

// Environ extends a base environment with compiler selection, the archiver
// override, and sanitizer runtime options. Platforms whose toolchain ignores
// these variables get the base environment unchanged.
func Environ(base []string, root string, set flags.Set) []string {
	env := append([]string(nil), base...)
	if !set.SanitizerEnv {
		return env
	}

	env = append(env,
		"MOON_CC="+set.CC+" "+set.CCFlags,
		"MOON_AR=/usr/bin/ar",
		"ASAN_OPTIONS=detect_leaks="+leakToggle(set.DetectLeaks),
	)

	supp := filepath.Join(root, suppressionsFile)
	if info, err := os.Stat(supp); err == nil && info.Mode().IsRegular() {
		env = append(env, "LSAN_OPTIONS=suppressions="+supp)
	}
	return env
}

func leakToggle(on bool) string {
	if on {
		return "1"
	}
	return "0"
}
