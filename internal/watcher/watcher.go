// Package watcher turns filesystem change notifications below a project
// directory into reload requests.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lambda-feedback/hotreload/internal/execution/models"
	"go.uber.org/zap"
)

// DefaultExtension is the extension of source files that trigger a reload.
const DefaultExtension = "dart"

// DefaultPollInterval is the scan period of the polling fallback.
const DefaultPollInterval = time.Second

// DefaultIgnoreDirs are directory names that are never watched.
var DefaultIgnoreDirs = []string{"build"}

// ReloadQueueSize is the capacity of the reload queue. One slot holds
// the reload being debounced, the other keeps a change saved right
// after it, so that change is reloaded once the debounce window closes
// instead of being dropped. Further changes are covered by the queued
// reloads and are dropped.
const ReloadQueueSize = 2

var ErrWatcherStarted = errors.New("watcher already started")

// Event is a single change notification. A notification may carry
// more than one path.
type Event struct {
	Paths []string
}

// ShouldReload reports whether evt should trigger a reload. Only the
// first path of the event is inspected.
func ShouldReload(evt Event, extension string) bool {
	if len(evt.Paths) == 0 {
		return false
	}

	ext := filepath.Ext(evt.Paths[0])
	if ext == "" {
		return false
	}

	return strings.TrimPrefix(ext, ".") == extension
}

type backend interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

type Params struct {
	// Root is the directory to watch recursively
	Root string

	// Extension is the source file extension, without the dot
	Extension string

	// PollInterval is the scan period of the polling fallback
	PollInterval time.Duration

	// IgnoreDirs are directory names skipped while watching.
	// Hidden directories are always skipped.
	IgnoreDirs []string

	// ForcePolling disables native notifications
	ForcePolling bool

	// Log is the logger to use for the watcher
	Log *zap.Logger
}

type Watcher struct {
	params Params

	lock    sync.Mutex
	backend backend
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	log *zap.Logger
}

func New(params Params) *Watcher {
	if params.Extension == "" {
		params.Extension = DefaultExtension
	}

	if params.PollInterval <= 0 {
		params.PollInterval = DefaultPollInterval
	}

	if params.IgnoreDirs == nil {
		params.IgnoreDirs = DefaultIgnoreDirs
	}

	if params.Log == nil {
		params.Log = zap.NewNop()
	}

	return &Watcher{
		params: params,
		log:    params.Log.Named("watcher"),
	}
}

// Start subscribes to change notifications below the root directory and
// sends a reload command to sink for every relevant change. Native
// notifications are preferred, polling is used if they are unavailable.
// Sends to sink never block; if the sink is full, the new reload is
// dropped. Size the sink with ReloadQueueSize.
func (w *Watcher) Start(ctx context.Context, sink chan<- models.Command) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.backend != nil {
		return ErrWatcherStarted
	}

	b, err := w.createBackend()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	w.backend = b
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(runCtx, b, sink)
	}()

	return nil
}

// Close stops watching and releases the underlying notification handles.
func (w *Watcher) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.backend == nil {
		return nil
	}

	w.cancel()
	err := w.backend.Close()
	w.wg.Wait()

	w.backend = nil

	return err
}

func (w *Watcher) createBackend() (backend, error) {
	filter := newDirFilter(w.params.Root, w.params.IgnoreDirs)

	if !w.params.ForcePolling {
		b, err := newNativeBackend(w.params.Root, filter, w.log)
		if err == nil {
			w.log.Debug("watching with native notifications", zap.String("root", w.params.Root))
			return b, nil
		}

		w.log.Warn("native file notifications unavailable, falling back to polling",
			zap.Error(err),
			zap.Duration("interval", w.params.PollInterval),
		)
	}

	return newPollBackend(w.params.Root, w.params.PollInterval, filter, w.log)
}

func (w *Watcher) run(ctx context.Context, b backend, sink chan<- models.Command) {
	events, errs := b.Events(), b.Errors()

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-events:
			if !ok {
				return
			}

			if !ShouldReload(evt, w.params.Extension) {
				continue
			}

			w.log.Debug("source file changed", zap.Strings("paths", evt.Paths))

			select {
			case sink <- models.Reload():
			default:
				w.log.Debug("reload already pending, dropping event")
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			// errors are dropped, reloading by key stays available
			w.log.Debug("watcher error", zap.Error(err))
		}
	}
}

// dirFilter decides which directories are watched.
type dirFilter struct {
	root   string
	ignore map[string]struct{}
}

func newDirFilter(root string, ignore []string) dirFilter {
	set := make(map[string]struct{}, len(ignore))
	for _, name := range ignore {
		set[name] = struct{}{}
	}

	return dirFilter{root: filepath.Clean(root), ignore: set}
}

func (f dirFilter) skip(path string) bool {
	if filepath.Clean(path) == f.root {
		return false
	}

	name := filepath.Base(path)

	// hidden directories, e.g. .git or .dart_tool
	if strings.HasPrefix(name, ".") {
		return true
	}

	_, ok := f.ignore[name]
	return ok
}
