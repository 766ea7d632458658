package events

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestHubPublishAndCancel(t *testing.T) {
	hub := NewHub(log.New(io.Discard, "", 0))
	a := hub.Subscribe()
	b := hub.Subscribe()
	if a.ID == b.ID || hub.Len() != 2 {
		t.Fatalf("expected two distinct subscribers")
	}

	hub.Publish(Event{Type: TypeChange, Scope: ScopeEpisodes})
	for _, sub := range []*Subscription{a, b} {
		select {
		case e := <-sub.Events:
			if e.Scope != ScopeEpisodes || e.Timestamp.IsZero() {
				t.Fatalf("unexpected event %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s got nothing", sub.ID)
		}
	}

	a.Cancel()
	if _, ok := <-a.Events; ok {
		t.Fatalf("cancelled subscription should be closed")
	}
	if hub.Len() != 1 {
		t.Fatalf("expected one subscriber left, got %d", hub.Len())
	}
}

func TestHubDropsForLaggingSubscriber(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(Event{Type: TypeChange})
	}
	if got := len(sub.Events); got != subscriberBuffer {
		t.Fatalf("expected full buffer, got %d", got)
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe()
	hub.Close()
	if _, ok := <-sub.Events; ok {
		t.Fatalf("expected closed channel")
	}
	sub.Cancel()
	hub.Close()
	if hub.Subscribe() != nil {
		t.Fatalf("closed hub must refuse subscribers")
	}
}

func TestScopes(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "content")
	changed := []string{
		filepath.Join(root, "series", "demo", "ep", "metadata.yml"),
		filepath.Join(root, "series", "demo", "other", "notes.md"),
		filepath.Join(root, "release-queue.yml"),
		filepath.Join(root, "assets", "logo.png"),
		filepath.Join(root, "README.md"),
		filepath.Join(root, "distribution-profiles.yml"),
	}
	want := []string{ScopeEpisodes, ScopeReleases, ScopeAssets, ScopeDistribution}
	if got := Scopes(root, changed); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected scopes %v", got)
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"series", "assets"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	hub := NewHub(nil)
	t.Cleanup(hub.Close)
	sub := hub.Subscribe()

	w, err := Watch(hub, root, 10*time.Millisecond, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if err := os.WriteFile(filepath.Join(root, "release-queue.yml"), []byte("staged: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case e := <-sub.Events:
		if e.Type != TypeChange || e.Scope != ScopeReleases {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for release change")
	}
}
