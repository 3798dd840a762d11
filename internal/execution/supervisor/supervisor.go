package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lambda-feedback/hotreload/internal/execution/models"
	"github.com/lambda-feedback/hotreload/internal/execution/worker"
	"go.uber.org/zap"
)

type WorkerFactoryFn func(context.Context, worker.StartConfig, *zap.Logger) (worker.Worker, error)

type Params struct {
	// Context bounds the lifetime of the child. The child is
	// killed once the context is done.
	Context context.Context

	// Config describes how to launch flutter.
	Config Config

	// WorkerFactory creates the worker owning the child process.
	WorkerFactory WorkerFactoryFn

	// Notice receives human readable notices. Defaults to stdout.
	Notice io.Writer

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Log is the logger to use for the supervisor
	Log *zap.Logger
}

// Supervisor owns the flutter child process and serializes all
// writes to its stdin.
type Supervisor struct {
	worker worker.Worker

	dispatchLock sync.Mutex
	debounce     time.Duration
	lastReload   time.Time
	reloads      int

	closeOnce sync.Once
	closed    atomic.Bool

	now    func() time.Time
	notice io.Writer

	log *zap.Logger
}

// Spawn launches `flutter run` in the configured project directory
// and returns a supervisor owning the child process.
func Spawn(ctx context.Context, params Params) (*Supervisor, error) {
	if params.WorkerFactory == nil {
		params.WorkerFactory = defaultWorkerFactory
	}

	if params.Context == nil {
		params.Context = context.Background()
	}

	if params.Notice == nil {
		params.Notice = os.Stdout
	}

	if params.Now == nil {
		params.Now = time.Now
	}

	if params.Log == nil {
		params.Log = zap.NewNop()
	}

	log := params.Log.Named("supervisor")

	config := params.Config
	if err := config.Validate(); err != nil {
		return nil, err
	}

	startConfig := worker.StartConfig{
		Cmd:  config.BinaryOrDefault(),
		Cwd:  config.ProjectPath,
		Args: config.RunArgs(),
		Env:  config.Env,
	}

	w, err := params.WorkerFactory(params.Context, startConfig, params.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}

	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", startConfig.Cmd, err)
	}

	log.Info("flutter started",
		zap.Int("pid", w.Pid()),
		zap.Strings("args", startConfig.Args),
		zap.String("mode", string(config.Mode())),
	)

	return &Supervisor{
		worker:   w,
		debounce: config.DebounceInterval(),
		now:      params.Now,
		notice:   params.Notice,
		log:      log,
	}, nil
}

// Dispatch forwards a command to the child. Reloads are debounced: a
// reload is only written if at least the debounce interval elapsed since
// the last dispatched reload. Key inputs are always written verbatim.
func (s *Supervisor) Dispatch(cmd models.Command) error {
	s.dispatchLock.Lock()
	defer s.dispatchLock.Unlock()

	if s.closed.Load() {
		return ErrSupervisorClosed
	}

	switch cmd.Kind {
	case models.ReloadCommand:
		return s.reload()
	case models.KeyInputCommand:
		if err := s.worker.Write([]byte{cmd.Key}); err != nil {
			return fmt.Errorf("failed to forward key input: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported command: %s", cmd)
	}
}

func (s *Supervisor) reload() error {
	now := s.now()

	// the first reload is never debounced
	if !s.lastReload.IsZero() && now.Sub(s.lastReload) < s.debounce {
		s.log.Debug("reload suppressed by debounce",
			zap.Duration("elapsed", now.Sub(s.lastReload)),
		)
		return nil
	}

	if err := s.worker.Write(reloadSequence); err != nil {
		return fmt.Errorf("failed to trigger hot reload: %w", err)
	}

	fmt.Fprint(s.notice, reloadNotice)

	s.lastReload = now
	s.reloads++

	return nil
}

// Close kills the child process. Errors are swallowed, as the child
// may already have exited. Close does not wait for a pending dispatch,
// killing the child unblocks writes stuck on a full stdin pipe.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.log.Debug("killing flutter", zap.Int("pid", s.worker.Pid()))

		if err := s.worker.Kill(); err != nil {
			s.log.Debug("kill failed", zap.Error(err))
		}
	})
}

// Done is closed once the child process has exited.
func (s *Supervisor) Done() <-chan struct{} {
	return s.worker.Done()
}

// Wait blocks until the child process has exited.
func (s *Supervisor) Wait(ctx context.Context) (worker.ExitEvent, error) {
	return s.worker.Wait(ctx)
}

// Reloads returns the number of reloads dispatched so far.
func (s *Supervisor) Reloads() int {
	s.dispatchLock.Lock()
	defer s.dispatchLock.Unlock()

	return s.reloads
}

func (s *Supervisor) Pid() int {
	return s.worker.Pid()
}

func defaultWorkerFactory(
	ctx context.Context,
	config worker.StartConfig,
	log *zap.Logger,
) (worker.Worker, error) {
	return worker.NewProcessWorker(ctx, config, log), nil
}
