package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"moonsan/internal/artifact"
	"moonsan/internal/cli"
	"moonsan/internal/flags"
	"moonsan/internal/patch"
	"moonsan/internal/pkgpath"
	"moonsan/internal/runner"
	"moonsan/internal/session"
	"moonsan/internal/ui"
)

// App orchestrates one sanitizer run: resolve targets, snapshot them, patch
// and run the tests, then restore everything.
type App struct {
	cfg    *cli.Config
	root   string
	flags  flags.Set
	runner runner.Runner
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

// New creates a new App instance for the current platform.
func New(cfg *cli.Config) (*App, error) {
	set, err := flags.Select(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	return NewWithRunner(cfg, set, runner.Moon{})
}

// NewWithRunner wires an explicit flag set and runner. Tests use it to avoid
// platform probing and the real moon binary.
func NewWithRunner(cfg *cli.Config, set flags.Set, r runner.Runner) (*App, error) {
	root, err := filepath.Abs(cfg.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("repo root is not a directory: %s", root)
	}

	return &App{
		cfg:    cfg,
		root:   root,
		flags:  set,
		runner: r,
	}, nil
}

// Run executes the four phases in order. Restoration of everything
// snapshotted is unconditional: it runs whether patching failed, the runner
// reported failures, or a panic unwound the run. The returned code is the
// runner's exit status; a non-nil error means a fatal configuration problem.
func (a *App) Run() (code int, err error) {
	// Centralized panic recovery. Registered before the restore defer so
	// restoration has already happened by the time the panic is converted.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	ui.Header("Platform: %s", runtime.GOOS)
	ui.Info("link.native cc: %s", a.flags.CC)

	targets, err := pkgpath.Resolve(a.root, a.cfg.Packages)
	if err != nil {
		return 0, err
	}

	// Snapshot every target before the first mutation, so a mid-batch
	// failure can still restore the whole batch.
	sess := session.New()
	for _, t := range targets {
		if serr := sess.Snapshot(t.Path); serr != nil {
			return 0, serr
		}
	}

	allocator := ""
	if !a.cfg.KeepAllocator {
		path := artifact.AllocatorArchive()
		if info, statErr := os.Stat(path); path != "" && statErr == nil && info.Mode().IsRegular() {
			if serr := sess.Snapshot(path); serr != nil {
				return 0, serr
			}
			allocator = path
		} else {
			ui.Warning("Allocator archive not found, keeping allocator: %s", path)
		}
	}

	var patched []string
	defer func() {
		restored, restoreErrs := sess.RestoreAll()

		display := make([]string, len(restored))
		for i, p := range restored {
			display[i] = a.displayPath(p)
		}
		var failed []string
		for _, rerr := range restoreErrs {
			ui.Error("%v", rerr)
			failed = append(failed, rerr.Error())
		}
		if err == nil && len(restoreErrs) > 0 {
			err = restoreErrs[0]
		}
		ui.PrintRunSummary(patched, display, failed)
	}()

	for _, t := range targets {
		if perr := a.patchTarget(t); perr != nil {
			return 0, perr
		}
		patched = append(patched, t.Rel)
		ui.Info("Patched: %s", t.Rel)
	}
	if allocator != "" {
		if derr := artifact.Disable(allocator); derr != nil {
			return 0, fmt.Errorf("disable allocator: %w", derr)
		}
		ui.Info("Disabled allocator: %s", a.displayPath(allocator))
	}

	return a.runner.Run(a.root, a.flags)
}

func (a *App) patchTarget(t pkgpath.Target) error {
	content, err := os.ReadFile(t.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", t.Rel, err)
	}
	out, err := patch.For(t.Format).Apply(content, a.flags, t.Entry)
	if err != nil {
		return fmt.Errorf("%s: %w", t.Rel, err)
	}
	if err := os.WriteFile(t.Path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", t.Rel, err)
	}
	return nil
}

func (a *App) displayPath(path string) string {
	if rel, err := filepath.Rel(a.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
