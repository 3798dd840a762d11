package watcher

import (
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type fileState struct {
	modTime time.Time
	size    int64
}

// pollBackend detects changes by periodically scanning the tree and
// comparing modification times and sizes.
type pollBackend struct {
	root     string
	interval time.Duration
	filter   dirFilter

	snapshot map[string]fileState

	events chan Event
	errors chan error

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	log *zap.Logger
}

func newPollBackend(
	root string,
	interval time.Duration,
	filter dirFilter,
	log *zap.Logger,
) (*pollBackend, error) {
	b := &pollBackend{
		root:     root,
		interval: interval,
		filter:   filter,
		events:   make(chan Event),
		errors:   make(chan error),
		done:     make(chan struct{}),
		log:      log,
	}

	snapshot, err := b.scan()
	if err != nil {
		return nil, err
	}

	b.snapshot = snapshot

	b.wg.Add(1)
	go b.loop()

	return b, nil
}

func (b *pollBackend) Events() <-chan Event {
	return b.events
}

func (b *pollBackend) Errors() <-chan error {
	return b.errors
}

func (b *pollBackend) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
	})

	return nil
}

func (b *pollBackend) loop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
		}

		snapshot, err := b.scan()
		if err != nil {
			select {
			case b.errors <- err:
				continue
			case <-b.done:
				return
			}
		}

		changed := diffSnapshots(b.snapshot, snapshot)
		b.snapshot = snapshot

		for _, path := range changed {
			select {
			case b.events <- Event{Paths: []string{path}}:
			case <-b.done:
				return
			}
		}
	}
}

func (b *pollBackend) scan() (map[string]fileState, error) {
	snapshot := make(map[string]fileState)

	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == b.root {
				return err
			}
			return nil
		}

		if d.IsDir() {
			if b.filter.skip(path) {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// removed between listing and stat
			return nil
		}

		snapshot[path] = fileState{modTime: info.ModTime(), size: info.Size()}

		return nil
	})

	return snapshot, err
}

// diffSnapshots returns the sorted paths created, modified or removed
// between prev and next.
func diffSnapshots(prev, next map[string]fileState) []string {
	var changed []string

	for path, state := range next {
		if old, ok := prev[path]; !ok || !old.modTime.Equal(state.modTime) || old.size != state.size {
			changed = append(changed, path)
		}
	}

	for path := range prev {
		if _, ok := next[path]; !ok {
			changed = append(changed, path)
		}
	}

	sort.Strings(changed)

	return changed
}
