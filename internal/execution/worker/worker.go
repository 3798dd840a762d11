package worker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

type Worker interface {
	// Start launches the worker process.
	Start(context.Context) error

	// Write writes raw bytes to the stdin of the worker process.
	Write([]byte) error

	// CloseInput closes the stdin of the worker process.
	CloseInput() error

	// Kill sends SIGKILL to the worker process.
	Kill() error

	// Done is closed once the worker process has exited.
	Done() <-chan struct{}

	// Wait blocks until the worker process has exited.
	Wait(context.Context) (ExitEvent, error)

	// Pid returns the pid of the worker process, or 0.
	Pid() int
}

type ProcessWorker struct {
	ctx    context.Context
	config StartConfig

	processLock sync.Mutex
	process     *proc

	exitEvent ExitEvent
	exited    chan struct{}

	log *zap.Logger
}

var _ Worker = (*ProcessWorker)(nil)

// NewProcessWorker creates a worker for the given start config. The
// worker process is killed once ctx is done.
func NewProcessWorker(
	ctx context.Context,
	config StartConfig,
	log *zap.Logger,
) *ProcessWorker {
	return &ProcessWorker{
		ctx:    ctx,
		config: config,
		exited: make(chan struct{}),
		log:    log.Named("worker"),
	}
}

// Start starts the worker process. A worker can only be started once,
// subsequent calls return ErrWorkerAlreadyStarted.
func (w *ProcessWorker) Start(ctx context.Context) error {
	w.log.With(
		zap.String("command", w.config.Cmd),
		zap.Strings("args", w.config.Args),
		zap.String("cwd", w.config.Cwd),
	).Debug("starting worker process")

	// synchronize access to the process
	w.processLock.Lock()
	defer w.processLock.Unlock()

	// return if the worker is already started
	if w.process != nil {
		return ErrWorkerAlreadyStarted
	}

	// exit early if the context is already cancelled
	if ctx.Err() != nil {
		return fmt.Errorf("failed to start process: %w", ctx.Err())
	}

	process, err := startProc(w.config, w.log)
	if err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	w.process = process

	// wait for the process to terminate and publish the exit event
	go func() {
		err := process.wait()

		w.exitEvent = getExitEvent(err)

		w.log.Debug("worker process exited",
			zap.Intp("code", w.exitEvent.Code),
			zap.Intp("signal", w.exitEvent.Signal),
		)

		close(w.exited)
	}()

	// kill the process once the worker context is done
	go func() {
		select {
		case <-process.done():
			// the process has terminated, do nothing
		case <-w.ctx.Done():
			_ = process.kill()
		}
	}()

	return nil
}

// Write writes data to the stdin of the worker process and flushes it.
func (w *ProcessWorker) Write(data []byte) error {
	process := w.acquireProcess()
	if process == nil {
		return ErrWorkerNotStarted
	}

	return process.write(data)
}

// CloseInput closes the stdin of the worker process, signalling EOF.
func (w *ProcessWorker) CloseInput() error {
	process := w.acquireProcess()
	if process == nil {
		return ErrWorkerNotStarted
	}

	return process.closeStdin()
}

// Kill sends a SIGKILL signal to the worker process group. The method
// returns immediately, without waiting for the process to stop.
func (w *ProcessWorker) Kill() error {
	process := w.acquireProcess()
	if process == nil {
		return ErrWorkerNotStarted
	}

	return process.kill()
}

func (w *ProcessWorker) Done() <-chan struct{} {
	return w.exited
}

// Wait waits for the worker process to exit. The method returns an
// ExitEvent that contains the exit status of the process. If the process
// is already terminated, the method returns immediately.
func (w *ProcessWorker) Wait(ctx context.Context) (ExitEvent, error) {
	if w.acquireProcess() == nil {
		return ExitEvent{}, ErrWorkerNotStarted
	}

	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-w.exited:
		return w.exitEvent, nil
	}
}

func (w *ProcessWorker) Pid() int {
	if process := w.acquireProcess(); process != nil {
		return process.pid
	}

	return 0
}

// acquireProcess returns the worker process. The method is thread-safe.
func (w *ProcessWorker) acquireProcess() *proc {
	w.processLock.Lock()
	defer w.processLock.Unlock()

	return w.process
}

// MARK: - Helpers

func getExitEvent(err error) ExitEvent {
	var cell int
	var exitStatus *int
	var signo *int

	var exitError *exec.ExitError

	if err == nil {
		// the process exited successfully, set the exit code to 0
		exitStatus = &cell
	} else if errors.As(err, &exitError) {
		// the process exited with an error
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			if code := status.ExitStatus(); code >= 0 {
				// the process exited with an exit code
				cell = code
				exitStatus = &cell
			} else {
				// the process was terminated by a signal
				cell = int(status.Signal())
				signo = &cell
			}
		}
	}

	if signo == nil && exitStatus == nil {
		// could not determine the exit status or signal,
		// set exit status to 1
		cell = 1
		exitStatus = &cell
	}

	return ExitEvent{
		Code:   exitStatus,
		Signal: signo,
	}
}
