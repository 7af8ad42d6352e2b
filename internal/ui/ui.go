package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(os.Stderr, format+"\n", a...)
}

// --- Summaries ---

func PrintRunSummary(patched, restored, failed []string) {
	Header("\n--- Sanitizer Run Summary ---")

	if len(patched) == 0 && len(restored) == 0 && len(failed) == 0 {
		Info("No files were touched.")
		return
	}

	if len(patched) > 0 {
		Success("Patched %d file(s):", len(patched))
		for _, f := range patched {
			fmt.Printf("  - %s\n", f)
		}
	}
	if len(restored) > 0 {
		Success("Restored %d file(s):", len(restored))
		for _, f := range restored {
			fmt.Printf("  - %s\n", f)
		}
	}
	if len(failed) > 0 {
		Error("Failed to restore %d file(s):", len(failed))
		for _, f := range failed {
			fmt.Printf("  - %s\n", f)
		}
	}
}
