package shell

import (
	"context"
	"os"
	"os/signal"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

type Shell struct {
	log     *zap.Logger
	fxApp   *fx.App
	options []fx.Option
}

func New(log *zap.Logger, options ...fx.Option) *Shell {
	return &Shell{
		log:     log,
		options: options,
	}
}

func (s *Shell) Run(ctx context.Context, options ...fx.Option) error {
	// 0. after run ends, flush the logger
	defer s.log.Sync()

	// 1. create shell context
	shellCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 2. create execution context
	appCtx, cancelApp := context.WithCancel(ctx)
	defer cancelApp()

	// 3. create fx application with app context
	fxApp := s.createFxApp(appCtx, options...)
	s.fxApp = fxApp

	// 4. stop on signals fx does not handle, e.g. when the terminal
	// is closed. Without this the process dies without running OnStop.
	stopSignals := make(chan os.Signal, 1)
	if len(shutdownSignals) > 0 {
		signal.Notify(stopSignals, shutdownSignals...)
		defer signal.Stop(stopSignals)
	}

	// 5. create start context w/ timeout
	startCtx, cancelStart := context.WithTimeout(shellCtx, fxApp.StartTimeout())
	defer cancelStart()

	// 6. start the application, exit on error
	if err := fxApp.Start(startCtx); err != nil {
		return WrapExitError(1, err)
	}

	// 7. wait for done signal by OS or the app
	var exitCode int
	select {
	case sig := <-fxApp.Wait():
		exitCode = sig.ExitCode
	case sig := <-stopSignals:
		s.log.Debug("received signal, shutting down", zap.Stringer("signal", sig))
	}

	// 8. cancel app context, stopping background goroutines
	cancelApp()

	// 9. create shutdown context
	stopCtx, cancelStop := context.WithTimeout(shellCtx, fxApp.StopTimeout())
	defer cancelStop()

	// 10. gracefully shutdown the app, exit on error
	if err := fxApp.Stop(stopCtx); err != nil {
		return WrapExitError(1, err)
	}

	// 11. a clean shutdown is not an error
	if exitCode == 0 {
		return nil
	}

	return NewExitError(exitCode)
}

func (s *Shell) createFxApp(ctx context.Context, options ...fx.Option) *fx.App {
	// 1. create fx application
	return fx.New(
		// 2. inject global execution context
		fx.Supply(fx.Annotate(ctx, fx.As(new(context.Context)))),

		// 3. inject the logger
		fx.Supply(s.log),

		// 4. use the logger also for fx' logs
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: s.log.Named("fx")}
		}),

		// 5. provide user-provided options
		fx.Options(s.options...),

		// 6. provide user-provided run options
		fx.Options(options...),
	)
}
