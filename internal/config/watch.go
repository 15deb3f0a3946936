package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever it changes on disk and hands the
// new, validated Config to a caller-supplied callback. Editors that
// replace-then-rename (vim, most IDEs) emit a Remove event rather than a
// Write, so Watcher re-adds the watch on every fsnotify event that
// implies the file may be gone.
type Watcher struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	onLoad  func(*Config)
	done    chan struct{}
}

// Watch starts watching path for changes, invoking onLoad with the
// freshly loaded and validated Config each time the file changes. Errors
// while loading are logged, not returned, since a watcher runs for the
// life of the process and a single malformed write shouldn't kill it.
func Watch(path string, logger *slog.Logger, onLoad func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, logger: logger, watcher: fw, onLoad: onLoad, done: make(chan struct{})}

	go w.loop()

	return w, nil
}

// Close stops the watcher and releases the underlying inotify/kqueue
// handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.logger.Warn("config: watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		// The inode changed (atomic replace); re-register the watch on
		// the new file at the same path.
		if err := w.watcher.Add(w.path); err != nil {
			w.logger.Warn("config: failed to re-add watch after replace", slog.String("error", err.Error()))
			return
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	cfg, err := Load(w.path, w.logger)
	if err != nil {
		w.logger.Warn("config: reload failed, keeping previous config", slog.String("error", err.Error()))
		return
	}

	w.logger.Info("config: reloaded", slog.String("path", w.path))
	w.onLoad(cfg)
}
