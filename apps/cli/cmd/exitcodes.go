package cmd

import (
	"errors"
	"os"
	"strconv"

	"github.com/abdul-hamid-achik/verif/packages/core/parser"
)

// Exit codes for verif CLI
const (
	// ExitSuccess indicates all targets passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more targets failed
	ExitTestFailure = 1

	// ExitParseError indicates a suite file parsing error
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates no request of a run got a response
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the process exit code out of a command. A nil err
// exits silently; the command already reported what happened.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCodeFor maps an error returned by a command to an exit code
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if isParseError(err) {
		return ExitParseError
	}
	return ExitTestFailure
}

func isParseError(err error) bool {
	var pe *parser.ParseError
	return errors.As(err, &pe) || errors.Is(err, parser.ErrNoTargets) || errors.Is(err, os.ErrNotExist)
}
