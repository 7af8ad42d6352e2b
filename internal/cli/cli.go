package cli

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	RepoRoot      string
	Packages      []string
	KeepAllocator bool
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	pflag.StringVarP(&cfg.RepoRoot, "repo-root", "C", "", "Project repository root (required).")
	pflag.StringArrayVarP(&cfg.Packages, "pkg", "p", []string{}, "Relative path to a package config, moon.pkg.json or moon.pkg, or its directory (repeatable).")
	pflag.BoolVar(&cfg.KeepAllocator, "keep-allocator", false, "Skip swapping out the bundled allocator archive for the run.")

	pflag.Usage = func() {
		fmt.Println("Usage: moonsan --repo-root DIR [flags]")
		fmt.Println("\nRun MoonBit native tests with AddressSanitizer, patching each package's")
		fmt.Println("link.native config for the run and restoring the originals afterward.")
		fmt.Println("\nExample: moonsan -C . -p src/ffi -p src/ffi/internal/moon.pkg.json")
		fmt.Println("\nFlags:")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if cfg.RepoRoot == "" {
		return nil, fmt.Errorf("error: --repo-root is required")
	}

	return cfg, nil
}
