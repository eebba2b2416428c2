package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK        = 0
	exitSetup     = 1
	exitConfig    = 2
	exitInterrupt = 130
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr, os.Exit)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		return exitCode(err, stderr)
	}
	return exitOK
}

func exitCode(err error, stderr io.Writer) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Anything cobra rejects before our RunE (unknown flag, bad value) is a
	// configuration problem.
	return exitConfig
}
