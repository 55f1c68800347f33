package main

import "errors"

// Process exit codes. Row-level failures are reported, not signalled, so a
// run that finishes always exits with exitOK.
const (
	exitOK       = 0
	exitFailure  = 1
	exitDatabase = 4
)

// cliError attaches an exit code to a fatal error.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// databaseError marks err as a connect or schema failure.
func databaseError(err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: exitDatabase, err: err}
}

// exitCode maps the error returned by the root command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitFailure
}
