package worker

import (
	"errors"
	"io"
)

var (
	ErrWorkerNotStarted     = errors.New("worker not started")
	ErrWorkerAlreadyStarted = errors.New("worker already started")
)

type StartConfig struct {
	// Cmd is the path or name of the binary to execute
	Cmd string `conf:"cmd"`

	// Cwd is the working directory in which
	// the binary should be executed
	Cwd string `conf:"cwd"`

	// Args is the list of arguments to pass to the command
	Args []string `conf:"args"`

	// Env is a map of environment variables to set in addition
	// to the environment of the current process
	Env map[string]string `conf:"env"`

	// Stdout receives the standard output of the process. If
	// nil, the process inherits the stdout of this process.
	Stdout io.Writer `conf:"-"`

	// Stderr receives the standard error of the process. If
	// nil, the process inherits the stderr of this process.
	Stderr io.Writer `conf:"-"`
}

type ExitEvent struct {
	// Code is the exit code of the process
	Code *int

	// Signal is the signal that caused the process to exit
	Signal *int
}

// ExitCode returns the exit code of the process, or 1 if the
// process was terminated by a signal.
func (e ExitEvent) ExitCode() int {
	if e.Code != nil {
		return *e.Code
	}

	return 1
}
