package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lambda-feedback/hotreload/internal/execution/models"
	"github.com/lambda-feedback/hotreload/internal/execution/worker"
	"go.uber.org/zap"
)

// DefaultPollInterval is the idle sleep between two loop iterations.
const DefaultPollInterval = 10 * time.Millisecond

var ErrChildExited = errors.New("flutter exited")

// ChildExitError is returned by Run when the child process exits.
type ChildExitError struct {
	Event worker.ExitEvent
}

func (e *ChildExitError) Error() string {
	if e.Event.Signal != nil {
		return fmt.Sprintf("%s: killed by signal %d", ErrChildExited, *e.Event.Signal)
	}

	return fmt.Sprintf("%s with code %d", ErrChildExited, e.Event.ExitCode())
}

func (e *ChildExitError) Unwrap() error {
	return ErrChildExited
}

func (e *ChildExitError) ExitCode() int {
	return e.Event.ExitCode()
}

// Target receives the commands multiplexed by the dispatcher.
type Target interface {
	Dispatch(models.Command) error
	Done() <-chan struct{}
	Wait(context.Context) (worker.ExitEvent, error)
}

type Params struct {
	// Target is the supervisor commands are dispatched to
	Target Target

	// Reloads is the queue of reload requests from the file watcher
	Reloads <-chan models.Command

	// Keys is the queue of key inputs from the terminal
	Keys <-chan models.Command

	// PollInterval is the idle sleep between iterations
	PollInterval time.Duration

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

// Dispatcher is the event loop multiplexing the file watcher and the
// keyboard onto the supervisor.
type Dispatcher struct {
	target   Target
	reloads  <-chan models.Command
	keys     <-chan models.Command
	interval time.Duration

	log *zap.Logger
}

func New(params Params) *Dispatcher {
	if params.PollInterval <= 0 {
		params.PollInterval = DefaultPollInterval
	}

	if params.Log == nil {
		params.Log = zap.NewNop()
	}

	return &Dispatcher{
		target:   params.Target,
		reloads:  params.Reloads,
		keys:     params.Keys,
		interval: params.PollInterval,
		log:      params.Log.Named("dispatcher"),
	}
}

// Run polls both queues until ctx is done, a dispatch fails or the
// child exits. Each iteration dispatches at most one watcher event,
// then at most one key input, then sleeps for the poll interval.
func (d *Dispatcher) Run(ctx context.Context) error {
	reloads, keys := d.reloads, d.keys

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, ok := tryReceive(&reloads); ok {
			if err := d.dispatch(ctx, models.Reload()); err != nil {
				return err
			}
		}

		if cmd, ok := tryReceive(&keys); ok {
			if err := d.dispatch(ctx, cmd); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.target.Done():
			return d.childExited(ctx)
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd models.Command) error {
	err := d.target.Dispatch(cmd)
	if err == nil {
		return nil
	}

	d.log.Debug("dispatch failed", zap.Stringer("command", cmd), zap.Error(err))

	// a write error usually means flutter went away, report that instead
	select {
	case <-d.target.Done():
		return d.childExited(ctx)
	default:
		return err
	}
}

func (d *Dispatcher) childExited(ctx context.Context) error {
	evt, err := d.target.Wait(ctx)
	if err != nil {
		return err
	}

	d.log.Debug("flutter exited", zap.Int("code", evt.ExitCode()))

	return &ChildExitError{Event: evt}
}

// tryReceive receives a command from ch without blocking. A closed
// channel is replaced by nil, so it is never selected again.
func tryReceive(ch *<-chan models.Command) (models.Command, bool) {
	select {
	case cmd, open := <-*ch:
		if !open {
			*ch = nil
			return models.Command{}, false
		}
		return cmd, true
	default:
		return models.Command{}, false
	}
}
