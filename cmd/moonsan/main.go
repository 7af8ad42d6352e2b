package main

import (
	"errors"
	"fmt"
	"os"

	"moonsan/internal/app"
	"moonsan/internal/cli"
)

// Exit code for fatal configuration errors, distinct from anything the test
// runner reports on the success path.
const exitConfigError = 2

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(exitConfigError)
	}

	code, err := a.Run()
	if err != nil {
		var detailed *app.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n%s", detailed.Err, detailed.Stack)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitConfigError)
	}
	os.Exit(code)
}
