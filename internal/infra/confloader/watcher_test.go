package confloader

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher(WithWatcherLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcher_Watch(t *testing.T) {
	w := newTestWatcher(t)

	path := writeConfig(t, "log:\n  level: info\n")
	if err := w.Watch(path); err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	if !w.watched(path) {
		t.Errorf("watched(%q) = false, want true", path)
	}
	if w.watched(filepath.Join(filepath.Dir(path), "other.yaml")) {
		t.Error("watched(other.yaml) = true, want false")
	}

	if err := w.Watch("/nonexistent/dir/gatemesh.yaml"); err == nil {
		t.Error("Watch(missing dir) error = nil, want error")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w := newTestWatcher(t)
	w.StartAsync()

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_FileChange(t *testing.T) {
	w := newTestWatcher(t)
	path := writeConfig(t, "log:\n  level: info\n")
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	changed := make(chan string, 10)
	w.OnChange(func(p string) {
		select {
		case changed <- p:
		default:
		}
	})
	w.StartAsync()
	time.Sleep(100 * time.Millisecond)

	// A sibling file is ignored.
	sibling := filepath.Join(filepath.Dir(path), "notes.txt")
	if err := os.WriteFile(sibling, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case got := <-changed:
		if got != filepath.Clean(path) {
			t.Errorf("OnChange() path = %q, want %q", got, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnChange() callback was not triggered within timeout")
	}
}

func TestWatcher_Debounce(t *testing.T) {
	w, err := NewWatcher(WithWatcherLogger(logger.Discard()), WithDebounce(200*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	path := writeConfig(t, "log:\n  level: info\n")
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	var mu sync.Mutex
	count := 0
	w.OnChange(func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	for range 5 {
		w.changed(filepath.Clean(path), fsnotify.Write)
	}
	w.changed(filepath.Join(filepath.Dir(path), "other.yaml"), fsnotify.Write)

	time.Sleep(600 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("callback count = %d, want 1", count)
	}
}

func TestWatcher_StopCancelsPending(t *testing.T) {
	w, err := NewWatcher(WithWatcherLogger(logger.Discard()), WithDebounce(200*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	path := writeConfig(t, "log:\n  level: info\n")
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	fired := make(chan struct{}, 1)
	w.OnChange(func(string) { fired <- struct{}{} })

	w.changed(filepath.Clean(path), fsnotify.Write)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case <-fired:
		t.Error("callback ran after Stop")
	case <-time.After(400 * time.Millisecond):
	}
}
