// Package watch reports debounced filesystem changes below directory trees
// and for individual files.
package watch

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher batches fsnotify events and hands the changed paths to a callback
// once no further change arrived for the debounce delay.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *log.Logger
	delay    time.Duration
	onChange func(changed []string)

	mu      sync.Mutex
	trees   []string
	files   map[string]struct{}
	pending map[string]struct{}
	timer   *time.Timer

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New starts a watcher. onChange runs on its own goroutine with the sorted,
// de-duplicated paths that changed during the last debounce window.
func New(delay time.Duration, logger *log.Logger, onChange func(changed []string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	w := &Watcher{
		watcher:  fw,
		logger:   logger,
		delay:    delay,
		onChange: onChange,
		files:    make(map[string]struct{}),
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// AddTree watches root and every non-hidden directory below it, including
// directories created later.
func (w *Watcher) AddTree(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		return err
	}
	w.mu.Lock()
	w.trees = append(w.trees, root)
	w.mu.Unlock()
	w.addRecursive(root)
	return nil
}

// AddFile watches a single file. Its directory is watched so that the file
// may be created, replaced or removed.
func (w *Watcher) AddFile(path string) error {
	path = filepath.Clean(path)
	if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	w.mu.Lock()
	w.files[path] = struct{}{}
	w.mu.Unlock()
	return nil
}

// Close stops the watcher. Pending changes are dropped.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.mu.Unlock()

		w.closeErr = w.watcher.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Clean(event.Name)
	inTree, isFile := w.classify(name)
	if !isFile && (!inTree || strings.HasPrefix(filepath.Base(name), ".")) {
		return
	}

	if inTree && event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			w.addRecursive(name)
		}
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.schedule(name)
	}
}

func (w *Watcher) classify(name string) (inTree, isFile bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[name]; ok {
		isFile = true
	}
	for _, root := range w.trees {
		if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
			inTree = true
			break
		}
	}
	return inTree, isFile
}

func (w *Watcher) schedule(name string) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		if w.timer != timer {
			w.mu.Unlock()
			return
		}
		w.timer = nil
		changed := make([]string, 0, len(w.pending))
		for p := range w.pending {
			changed = append(changed, p)
		}
		w.pending = make(map[string]struct{})
		w.mu.Unlock()

		sort.Strings(changed)
		if w.onChange != nil {
			w.onChange(changed)
		}
	})
	w.timer = timer
}

func (w *Watcher) addRecursive(path string) {
	filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Printf("walk error for %s: %v", p, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Printf("watcher add failure for %s: %v", p, err)
		}
		return nil
	})
}
