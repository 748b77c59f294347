package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/klarvik/schemascope/pkg/csn"
	"github.com/klarvik/schemascope/pkg/logging"
)

// ChangeEvent represents a batch of CSN document changes
type ChangeEvent struct {
	Paths     []string
	Timestamp time.Time
}

// CorpusWatcher watches a CSN directory for document changes so the
// host can force a cache rebuild.
type CorpusWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	events  chan ChangeEvent
	done    chan struct{}
}

// NewCorpusWatcher creates a file system watcher over the CSN directory.
func NewCorpusWatcher(dir string) (*CorpusWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &CorpusWatcher{
		watcher: watcher,
		dir:     dir,
		events:  make(chan ChangeEvent, 100),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching for document changes. It watches the corpus
// directory and its subdirectories; new subdirectories are picked up as
// they appear.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	if err := w.watchTree(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logging.Info("watching CSN corpus", "directory", w.dir)

	go w.run(ctx)
	return nil
}

// Events returns the channel of change events.
func (w *CorpusWatcher) Events() <-chan ChangeEvent {
	return w.events
}

// Stop shuts the watcher down.
func (w *CorpusWatcher) Stop() {
	close(w.done)
	_ = w.watcher.Close()
}

func (w *CorpusWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", "error", err)
		}
	}
}

func (w *CorpusWatcher) handle(event fsnotify.Event) {
	// New subdirectories need their own watch.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchTree(event.Name); err != nil {
				logging.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	matched, err := filepath.Match(csn.DocumentPattern, filepath.Base(event.Name))
	if err != nil || !matched {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	logging.Debug("CSN document changed", "path", event.Name, "op", event.Op.String())
	select {
	case w.events <- ChangeEvent{Paths: []string{event.Name}, Timestamp: time.Now()}:
	default:
		logging.Warn("watcher event channel full, dropping change", "path", event.Name)
	}
}

// watchTree adds root and all its subdirectories to the watch list.
func (w *CorpusWatcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}
