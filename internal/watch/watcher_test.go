package watch

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) record(changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changed)
}

func (r *recorder) saw(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, batch := range r.batches {
		for _, p := range batch {
			if p == path {
				return true
			}
		}
	}
	return false
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func newTestWatcher(t *testing.T, delay time.Duration) (*Watcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	w, err := New(delay, log.New(io.Discard, "", 0), rec.record)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return w, rec
}

func TestWatcherReportsTreeChanges(t *testing.T) {
	root := t.TempDir()
	w, rec := newTestWatcher(t, 10*time.Millisecond)
	if err := w.AddTree(root); err != nil {
		t.Fatalf("AddTree: %v", err)
	}

	first := filepath.Join(root, "first.yml")
	if err := os.WriteFile(first, []byte("one"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return rec.saw(first) }, "file creation")

	nested := filepath.Join(root, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	deep := filepath.Join(nested, "deep.yml")
	if err := os.WriteFile(deep, []byte("two"), 0o644); err != nil {
		t.Fatalf("write nested: %v", err)
	}
	waitFor(t, func() bool { return rec.saw(deep) }, "nested file in new directory")

	if err := os.Remove(first); err != nil {
		t.Fatalf("remove: %v", err)
	}
	before := rec.count()
	waitFor(t, func() bool { return rec.count() > before }, "removal")
}

func TestWatcherDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	w, rec := newTestWatcher(t, 100*time.Millisecond)
	if err := w.AddTree(root); err != nil {
		t.Fatalf("AddTree: %v", err)
	}

	for _, name := range []string{"a", "b", "c"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	waitFor(t, func() bool { return rec.count() >= 1 }, "debounced batch")
	time.Sleep(200 * time.Millisecond)

	if rec.count() != 1 {
		t.Fatalf("expected a single batch, got %d", rec.count())
	}
	for _, name := range []string{"a", "b", "c"} {
		if !rec.saw(filepath.Join(root, name)) {
			t.Fatalf("batch should include %s", name)
		}
	}
}

func TestWatcherIgnoresHiddenAndUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	w, rec := newTestWatcher(t, 10*time.Millisecond)
	target := filepath.Join(root, "queue.yml")
	if err := w.AddFile(target); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, ".lock"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "other.yml"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("unexpected batches %v", rec.batches)
	}

	if err := os.WriteFile(target, []byte("staged: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return rec.saw(target) }, "watched file")
}

func TestWatcherAddTreeMissingRoot(t *testing.T) {
	w, _ := newTestWatcher(t, 10*time.Millisecond)
	if err := w.AddTree(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func waitFor(t *testing.T, predicate func() bool, label string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if predicate() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", label)
}
