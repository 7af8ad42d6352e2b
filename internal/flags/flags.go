package flags

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	sanitizeCompile = "-g -fsanitize=address"
	sanitizeLink    = "-fsanitize=address"
)

// Set is the resolved sanitizer toolchain for one platform. It is built once
// per run and treated as read-only by the patchers.
type Set struct {
	CC          string
	CCFlags     string
	StubCC      string
	StubCCFlags string
	// OverrideStubCCFlags replaces any existing stub-cc-flags value instead
	// of appending to it. MSVC flags cannot be mixed with pre-existing
	// GCC-style ones, so Windows replaces wholesale.
	OverrideStubCCFlags bool
	// LinkFlags is prepended to cc-link-flags; the sanitizer runtime must be
	// specified early in link order.
	LinkFlags string
	// DetectLeaks toggles LeakSanitizer in the runner environment.
	DetectLeaks bool
	// SanitizerEnv controls whether MOON_CC/MOON_AR/ASAN_OPTIONS overrides
	// are exported to the test runner. MSVC does not consume them.
	SanitizerEnv bool
}

// Select returns the flag set for the given GOOS, or an error for platforms
// without a known sanitizer toolchain.
func Select(goos string) (Set, error) {
	switch goos {
	case "darwin":
		return darwinSet()
	case "linux":
		return linuxSet(), nil
	case "windows":
		return windowsSet(), nil
	}
	return Set{}, fmt.Errorf("unsupported platform: %s", goos)
}

func linuxSet() Set {
	return Set{
		CC:           "gcc",
		CCFlags:      sanitizeCompile,
		StubCC:       "gcc",
		StubCCFlags:  sanitizeCompile,
		LinkFlags:    sanitizeLink,
		DetectLeaks:  true,
		SanitizerEnv: true,
	}
}

func windowsSet() Set {
	return Set{
		CC:                  "cl",
		CCFlags:             "/DEBUG /fsanitize=address",
		StubCC:              "cl",
		StubCCFlags:         "/DEBUG /fsanitize=address",
		OverrideStubCCFlags: true,
	}
}

// llvmFormulae lists the Homebrew LLVM installations probed for a clang that
// ships the ASan runtime, newest first.
var llvmFormulae = []string{"llvm", "llvm@18", "llvm@19", "llvm@15", "llvm@13"}

func darwinSet() (Set, error) {
	brew, err := findBrew()
	if err != nil {
		return Set{}, err
	}

	for _, formula := range llvmFormulae {
		out, err := exec.Command(brew, "--prefix", formula).Output()
		if err != nil {
			continue
		}
		clang := filepath.Join(strings.TrimSpace(string(out)), "bin", "clang")
		if _, err := os.Stat(clang); err != nil {
			continue
		}
		return Set{
			CC:           clang,
			CCFlags:      sanitizeCompile,
			StubCC:       clang,
			StubCCFlags:  sanitizeCompile,
			LinkFlags:    sanitizeLink,
			SanitizerEnv: true,
			// LeakSanitizer is not supported by Apple toolchains.
			DetectLeaks: false,
		}, nil
	}
	return Set{}, fmt.Errorf("no Homebrew LLVM installation found (tried: %s)", strings.Join(llvmFormulae, ", "))
}

func findBrew() (string, error) {
	if brew, err := exec.LookPath("brew"); err == nil {
		return brew, nil
	}
	const armBrew = "/opt/homebrew/bin/brew"
	if _, err := os.Stat(armBrew); err == nil {
		return armBrew, nil
	}
	return "", fmt.Errorf("homebrew is not installed or not in PATH")
}
