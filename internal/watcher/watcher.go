package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sha1n/mcp-prompt-server-go/internal/prompts"
)

// DefaultDebounce is the quiet period used when none is configured
const DefaultDebounce = 500 * time.Millisecond

// Reloader reloads the prompt catalog from a directory
type Reloader interface {
	LoadAndRegister(rootDir string) (*prompts.Catalog, error)
}

// Watcher reloads prompts when files under the prompts directory change
type Watcher struct {
	root     string
	reloader Reloader
	debounce time.Duration
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	timer   *time.Timer
	started bool
	stopped bool
	dirs    map[string]struct{}
}

// New creates a watcher for root. A non-positive debounce uses DefaultDebounce.
func New(root string, reloader Reloader, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		root:     root,
		reloader: reloader,
		debounce: debounce,
		logger:   slog.Default().With("component", "prompt_watcher"),
		watcher:  fw,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		dirs:     make(map[string]struct{}),
	}, nil
}

// Start watches the root and all of its subdirectories
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info("Watching prompts directory for changes", "dir", w.root, "debounce", w.debounce)

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.watchLoop(ctx)
	return nil
}

// Stop ends the watch loop and cancels any pending reload
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)

		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if started {
			<-w.doneChan
		}

		w.mu.Lock()
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		if err := w.watcher.Close(); err != nil {
			w.logger.Warn("Failed to close file watcher", "error", err)
		}
		w.logger.Info("Prompt watcher stopped")
	})
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("failed to watch %s: %w", root, err)
			}
			w.logger.Warn("Skipping unreadable directory", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			if path == root {
				return fmt.Errorf("failed to watch %s: %w", root, err)
			}
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneChan)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Watch loop stopped due to context cancellation")
			return
		case <-w.stopChan:
			w.logger.Debug("Watch loop stopped by stop signal")
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.logger.Debug("Prompt change detected", "file", event.Name, "operation", event.Op.String())
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", "error", err)
		}
	}
}

// relevant reports whether event can change the catalog. New directories are
// added to the watch list as a side effect.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return true
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		_, wasDir := w.dirs[event.Name]
		delete(w.dirs, event.Name)
		w.mu.Unlock()
		if wasDir {
			return true
		}
	}

	if !prompts.IsPromptFile(event.Name) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	start := time.Now()
	catalog, err := w.reloader.LoadAndRegister(w.root)
	if err != nil {
		w.logger.Error("Failed to reload prompts", "error", err)
		return
	}
	w.logger.Info("Prompts reloaded after file change", "count", catalog.Len(), "duration", time.Since(start))
}
