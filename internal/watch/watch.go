// Package watch reports changes to a set of files, coalescing bursts of
// writes into a single callback per file.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "icalkit/internal/log"
)

// DefaultDelay is how long a file must stay quiet before onChange runs.
const DefaultDelay = 100 * time.Millisecond

type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func(string)
	delay    time.Duration

	mu     sync.Mutex
	files  map[string]struct{}
	dirs   map[string]struct{}
	timers map[string]*time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// New starts a watcher. onChange receives the absolute path of the file
// that changed and runs on its own goroutine.
func New(onChange func(string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		onChange: onChange,
		delay:    DefaultDelay,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Add watches path. The parent directory is watched so files replaced by
// rename (as most editors save) keep reporting.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[dir]; !ok {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = struct{}{}
	}
	w.files[abs] = struct{}{}
	return nil
}

// Files returns the watched paths.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// Close stops the watcher and cancels pending callbacks.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule(filepath.Clean(ev.Name))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			appLog.Error("file watcher error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, watching := w.files[name]; !watching {
		return
	}
	if t, ok := w.timers[name]; ok {
		t.Stop()
	}
	w.timers[name] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.timers, name)
		w.mu.Unlock()
		select {
		case <-w.done:
			return
		default:
		}
		if w.onChange != nil {
			w.onChange(name)
		}
	})
}
