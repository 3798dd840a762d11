package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hotreload/config"
	"github.com/lambda-feedback/hotreload/internal/banner"
	"github.com/lambda-feedback/hotreload/internal/execution/dispatcher"
	"github.com/lambda-feedback/hotreload/internal/execution/models"
	"github.com/lambda-feedback/hotreload/internal/execution/supervisor"
	"github.com/lambda-feedback/hotreload/internal/keyboard"
	"github.com/lambda-feedback/hotreload/internal/watcher"
)

const keyQueueSize = 64

// Terminal is the controlling terminal of the session.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type SessionParams struct {
	fx.In

	// Context bounds the lifetime of the child and all
	// background goroutines of the session
	Context context.Context

	Flutter supervisor.Config
	Watch   config.WatchConfig

	Terminal   Terminal
	Shutdowner fx.Shutdowner

	// SupervisorFactory spawns the supervisor, defaults to supervisor.Spawn
	SupervisorFactory SupervisorFactoryFn `optional:"true"`

	Logger *zap.Logger
}

type SupervisorFactoryFn func(context.Context, supervisor.Params) (*supervisor.Supervisor, error)

// Session wires the file watcher and the keyboard to a running
// flutter child.
type Session struct {
	ctx        context.Context
	flutter    supervisor.Config
	terminal   Terminal
	shutdowner fx.Shutdowner
	spawn      SupervisorFactoryFn

	reloads chan models.Command
	keys    chan models.Command

	supervisor *supervisor.Supervisor
	watcher    *watcher.Watcher
	keyboard   *keyboard.Reader
	banner     *banner.Printer

	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *zap.Logger
}

func NewSession(params SessionParams) *Session {
	spawn := params.SupervisorFactory
	if spawn == nil {
		spawn = supervisor.Spawn
	}

	return &Session{
		ctx:        params.Context,
		flutter:    params.Flutter,
		terminal:   params.Terminal,
		shutdowner: params.Shutdowner,
		spawn:      spawn,
		reloads:    make(chan models.Command, watcher.ReloadQueueSize),
		keys:       make(chan models.Command, keyQueueSize),
		watcher: watcher.New(watcher.Params{
			Root:         params.Flutter.ProjectPath,
			IgnoreDirs:   params.Watch.IgnoreDirs,
			ForcePolling: params.Watch.ForcePolling,
			Log:          params.Logger,
		}),
		keyboard: keyboard.NewReader(params.Terminal.In, params.Logger),
		banner:   banner.NewPrinter(params.Terminal.Out),
		log:      params.Logger,
	}
}

func NewLifecycleSession(params SessionParams, lc fx.Lifecycle) *Session {
	session := NewSession(params)
	lc.Append(fx.Hook{
		OnStart: session.Start,
		OnStop:  session.Stop,
	})
	return session
}

// Start spawns flutter, starts watching for changes and forwarding
// keys, and runs the event loop in the background. Once the loop
// ends, the application is shut down with the matching exit code.
func (s *Session) Start(ctx context.Context) error {
	sup, err := s.spawn(ctx, supervisor.Params{
		Context: s.ctx,
		Config:  s.flutter,
		Notice:  s.terminal.Out,
		Log:     s.log,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(s.ctx)

	if err := s.watcher.Start(runCtx, s.reloads); err != nil {
		cancel()
		sup.Close()
		return fmt.Errorf("failed to watch %s: %w", s.flutter.ProjectPath, err)
	}

	s.supervisor = sup
	s.cancel = cancel

	s.banner.Active()

	// the keyboard reader blocks on stdin, which cannot be interrupted,
	// so it is not part of the wait group
	go func() {
		if err := s.keyboard.Run(runCtx, s.keys); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Debug("keyboard reader stopped", zap.Error(err))
		}
	}()

	loop := dispatcher.New(dispatcher.Params{
		Target:  sup,
		Reloads: s.reloads,
		Keys:    s.keys,
		Log:     s.log,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx, loop)
	}()

	return nil
}

// Stop stops watching and kills the child.
func (s *Session) Stop(ctx context.Context) error {
	if s.supervisor == nil {
		return nil
	}

	s.cancel()

	err := s.watcher.Close()

	s.supervisor.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return err
}

func (s *Session) run(ctx context.Context, loop *dispatcher.Dispatcher) {
	defer s.recoverPanic()

	err := loop.Run(ctx)

	// the app is shutting down already
	if errors.Is(err, context.Canceled) {
		return
	}

	code := exitCode(err)
	if code != 0 {
		s.log.Debug("event loop stopped", zap.Error(err), zap.Int("code", code))
	}

	if code != 0 && !errors.Is(err, dispatcher.ErrChildExited) {
		fmt.Fprintf(s.terminal.Err, "Error: %s\n", err)
	}

	if err := s.shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
		s.log.Error("failed to shutdown", zap.Error(err))
	}
}

// recoverPanic kills the child before the panic propagates, so that
// flutter does not outlive the tool.
func (s *Session) recoverPanic() {
	if r := recover(); r != nil {
		s.supervisor.Close()

		sentry.CurrentHub().Recover(r)
		sentry.Flush(2 * time.Second)

		panic(r)
	}
}

// exitCode maps the error ending the event loop to the exit code of the
// tool. The child's exit code is propagated.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *dispatcher.ChildExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return 1
}
