package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to configuration files.
//
// It watches the parent directory of each file so that saves done by
// rename are seen too, and fires once per file per burst of events.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	files   map[string]bool
	pending map[string]*time.Timer
	hooks   []func(path string)

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce replaces DefaultDebounce. Zero fires on every event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a Watcher. Call Watch, OnChange and then StartAsync.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fs,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		files:    make(map[string]bool),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds path.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)
	if err := w.fs.Add(filepath.Dir(path)); err != nil {
		return err
	}
	w.mu.Lock()
	w.files[path] = true
	w.mu.Unlock()
	w.logger.Debug("watching configuration file", "path", path)
	return nil
}

// OnChange registers fn. It runs on the watcher goroutine, or a timer
// goroutine when debouncing, so it must not block for long.
func (w *Watcher) OnChange(fn func(path string)) {
	w.mu.Lock()
	w.hooks = append(w.hooks, fn)
	w.mu.Unlock()
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.changed(filepath.Clean(ev.Name), ev.Op)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("configuration watcher error", "error", err)
		}
	}
}

// StartAsync runs Start in a goroutine.
func (w *Watcher) StartAsync() { go w.Start() }

// Stop ends the watcher and cancels pending notifications. It is safe to
// call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) watched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[filepath.Clean(path)]
}

func (w *Watcher) changed(path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[path] {
		return
	}
	w.logger.Debug("configuration file changed", "path", path, "op", op.String())

	if w.debounce <= 0 {
		go w.notify(path)
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.notify(path)
	})
}

func (w *Watcher) notify(path string) {
	select {
	case <-w.done:
		return
	default:
	}
	w.mu.Lock()
	hooks := append([]func(string){}, w.hooks...)
	w.mu.Unlock()
	for _, fn := range hooks {
		fn(path)
	}
}
