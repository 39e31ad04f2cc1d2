package data

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads an MmdbReader whenever its database file changes on disk.
// MaxMind updaters typically write a new file and rename it into place, so
// the watch is on the containing directory, not the file itself.
type Watcher struct {
	fw     *fsnotify.Watcher
	reader *MmdbReader
	path   string
	done   chan struct{}
}

// WatchMmdb starts watching the reader's MMDB file for changes.
func WatchMmdb(path string, reader *MmdbReader) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch MMDB directory: %w", err)
	}

	w := &Watcher{
		fw:     fw,
		reader: reader,
		path:   filepath.Clean(path),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if err := w.reader.Reload(); err != nil {
				slog.Error("MMDB reload failed", "path", w.path, "error", err)
				continue
			}
			slog.Info("MMDB reloaded", "path", w.path)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Error("MMDB watcher error", "error", err)
		}
	}
}

// Close stops watching. It does not close the underlying reader.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}
