// Package watch reports changes to Markdown documents.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last event before changes are
// reported.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches documents and the directories holding them. A directory is
// watched recursively, hidden directories excepted; in it, every file with a
// Markdown extension counts.
type Watcher struct {
	fsw      *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration
	files    map[string]bool // documents watched individually
	dirs     []string        // directories watched for any document

	mu      sync.Mutex
	pending map[string]time.Time
	once    sync.Once
}

// New creates a watcher for paths, which may be documents or directories.
func New(paths []string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		fsw:      fsw,
		log:      log,
		debounce: debounce,
		files:    make(map[string]bool),
		pending:  make(map[string]time.Time),
	}
	for _, path := range paths {
		if err := w.add(path); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		w.files[abs] = true
		return w.fsw.Add(filepath.Dir(abs))
	}
	w.dirs = append(w.dirs, abs)
	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != abs && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		w.log.Debug("Watching directory", zap.String("path", p))
		return w.fsw.Add(p)
	})
}

// IsDocument reports whether path has a Markdown extension.
func IsDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// relevant reports whether a change to path concerns a watched document.
func (w *Watcher) relevant(path string) bool {
	if w.files[path] {
		return true
	}
	if !IsDocument(path) {
		return false
	}
	for _, dir := range w.dirs {
		if strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Run watches until ctx is done. Once no event arrived for the debounce period,
// it calls onChange with the sorted paths of the documents which were created or
// modified. onChange runs on the watching goroutine; events arriving meanwhile
// are reported in the next batch. Run closes the watcher when it returns.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	defer w.Close()
	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watch error", zap.Error(err))

		case <-ticker.C:
			if changed := w.settled(); len(changed) > 0 {
				w.log.Debug("Documents changed", zap.Strings("paths", changed))
				onChange(ctx, changed)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	path := filepath.Clean(event.Name)
	if event.Op&fsnotify.Create != 0 && w.inWatchedTree(path) {
		if info, err := os.Stat(path); err == nil && info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
			if err := w.fsw.Add(path); err != nil {
				w.log.Warn("Cannot watch directory", zap.String("path", path), zap.Error(err))
			}
			return
		}
	}
	if !w.relevant(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) inWatchedTree(path string) bool {
	for _, dir := range w.dirs {
		if strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// settled returns the pending documents once the last event is older than the
// debounce period. Documents which no longer exist are dropped.
func (w *Watcher) settled() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return nil
	}
	now := time.Now()
	for _, at := range w.pending {
		if now.Sub(at) < w.debounce {
			return nil
		}
	}
	var changed []string
	for path := range w.pending {
		if _, err := os.Stat(path); err == nil {
			changed = append(changed, path)
		}
	}
	clear(w.pending)
	slices.Sort(changed)
	return changed
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.fsw.Close()
	})
	return err
}
