package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/texlate/texlate/pkg/logger"
)

// fileWatcher reports changes to a single configuration file. It watches the
// parent directory rather than the file so saves that replace the file (write
// to temp, rename over) keep being seen after the first one.
type fileWatcher struct {
	fsw  *fsnotify.Watcher
	file string

	mu        sync.Mutex
	callbacks []func()
	done      chan struct{}
	closeOnce sync.Once
}

func newFileWatcher(path string) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &fileWatcher{fsw: fsw, file: abs, done: make(chan struct{})}, nil
}

func (w *fileWatcher) onChange(cb func()) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, cb)
	w.mu.Unlock()
}

// run dispatches events until ctx ends or the watcher is closed.
func (w *fileWatcher) run(ctx context.Context) {
	log := logger.FromContext(ctx).With("file", w.file)
	defer w.close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.file {
				continue
			}
			// a remove or rename is followed by a create once the new file lands
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.fire()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", "error", err)
		}
	}
}

func (w *fileWatcher) fire() {
	w.mu.Lock()
	callbacks := slices.Clone(w.callbacks)
	w.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

func (w *fileWatcher) close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		if cerr := w.fsw.Close(); cerr != nil {
			err = fmt.Errorf("closing config watcher: %w", cerr)
		}
	})
	return err
}
