package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type nativeBackend struct {
	watcher *fsnotify.Watcher
	filter  dirFilter

	events chan Event
	errors chan error

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	log *zap.Logger
}

func newNativeBackend(root string, filter dirFilter, log *zap.Logger) (*nativeBackend, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	b := &nativeBackend{
		watcher: fsw,
		filter:  filter,
		events:  make(chan Event),
		errors:  make(chan error),
		done:    make(chan struct{}),
		log:     log,
	}

	if err := b.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	b.wg.Add(1)
	go b.loop()

	return b, nil
}

func (b *nativeBackend) Events() <-chan Event {
	return b.events
}

func (b *nativeBackend) Errors() <-chan error {
	return b.errors
}

func (b *nativeBackend) Close() error {
	var err error

	b.closeOnce.Do(func() {
		close(b.done)
		err = b.watcher.Close()
		b.wg.Wait()
	})

	return err
}

func (b *nativeBackend) loop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return

		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}

			// watch directories created after startup as well
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := b.addRecursive(event.Name); err != nil {
						b.log.Debug("failed to watch new directory",
							zap.String("path", event.Name),
							zap.Error(err),
						)
					}
				}
			}

			select {
			case b.events <- Event{Paths: []string{event.Name}}:
			case <-b.done:
				return
			}

		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}

			select {
			case b.errors <- err:
			case <-b.done:
				return
			}
		}
	}
}

// addRecursive walks root and adds all directories to the watcher.
func (b *nativeBackend) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// the root itself must be watchable
			if path == root {
				return err
			}
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if b.filter.skip(path) {
			return filepath.SkipDir
		}

		return b.watcher.Add(path)
	})
}
