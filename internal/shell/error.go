package shell

import (
	"errors"
	"fmt"
)

// ExitError terminates the shell with the given exit code. It
// satisfies cli.ExitCoder.
type ExitError struct {
	Code  int
	Cause error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("shell exited with %d: %s", e.Code, e.Cause)
	}
	return fmt.Sprintf("shell exited with %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

func (e *ExitError) ExitCode() int {
	return e.Code
}

func NewExitError(exitCode int) *ExitError {
	return &ExitError{Code: exitCode}
}

func WrapExitError(exitCode int, cause error) *ExitError {
	return &ExitError{Code: exitCode, Cause: cause}
}

func IsExitError(err error) bool {
	if err == nil {
		return false
	}

	var exitErr *ExitError
	return errors.As(err, &exitErr)
}
