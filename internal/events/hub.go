// Package events fans out change notifications to live clients such as the
// dashboard's server-sent event stream.
package events

import (
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/assets"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/episodes"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/releases"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/watch"
)

// Change scopes.
const (
	ScopeEpisodes     = "episodes"
	ScopeAssets       = "assets"
	ScopeReleases     = "releases"
	ScopeDistribution = "distribution"
)

// TypeChange is the event type published for filesystem changes.
const TypeChange = "change"

const subscriberBuffer = 16

// Event is one notification sent to subscribers.
type Event struct {
	Type      string    `json:"type"`
	Scope     string    `json:"scope,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription receives events until it is cancelled or the hub closes.
type Subscription struct {
	ID     string
	Events <-chan Event

	hub *Hub
	ch  chan Event
}

// Cancel removes the subscription from its hub.
func (s *Subscription) Cancel() {
	s.hub.remove(s.ID)
}

// Hub is process-scoped state: it is created when the server starts and
// closed on shutdown, which ends every subscription.
type Hub struct {
	logger *log.Logger

	mu     sync.Mutex
	subs   map[string]chan Event
	closed bool
}

// NewHub returns an open hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{logger: logger, subs: make(map[string]chan Event)}
}

// Subscribe registers a new subscriber. It returns nil after Close.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	ch := make(chan Event, subscriberBuffer)
	id := uuid.NewString()
	h.subs[id] = ch
	return &Subscription{ID: id, Events: ch, hub: h, ch: ch}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers e to every subscriber. Slow subscribers whose buffer is
// full miss the event.
func (h *Hub) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Printf("event subscriber %s is lagging; dropped %s/%s", id, e.Type, e.Scope)
		}
	}
}

// Close ends every subscription. Later Subscribe calls return nil.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// Scopes maps changed paths below root onto the change scopes they affect.
// The result is ordered and free of duplicates.
func Scopes(root string, changed []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, path := range changed {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		var scope string
		switch {
		case rel == releases.QueueFile:
			scope = ScopeReleases
		case rel == releases.ProfilesFile:
			scope = ScopeDistribution
		case rel == episodes.SeriesDir || strings.HasPrefix(rel, episodes.SeriesDir+"/"):
			scope = ScopeEpisodes
		case rel == assets.Dir || strings.HasPrefix(rel, assets.Dir+"/"):
			scope = ScopeAssets
		default:
			continue
		}
		if !seen[scope] {
			seen[scope] = true
			out = append(out, scope)
		}
	}
	return out
}

// Watch publishes a change event on hub for every debounced batch of
// filesystem changes in the content repository at root.
func Watch(hub *Hub, root string, debounce time.Duration, logger *log.Logger) (*watch.Watcher, error) {
	w, err := watch.New(debounce, logger, func(changed []string) {
		for _, scope := range Scopes(root, changed) {
			hub.Publish(Event{Type: TypeChange, Scope: scope})
		}
	})
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{episodes.SeriesDir, assets.Dir} {
		if err := w.AddTree(filepath.Join(root, dir)); err != nil {
			w.Close()
			return nil, err
		}
	}
	for _, file := range []string{releases.QueueFile, releases.ProfilesFile} {
		if err := w.AddFile(filepath.Join(root, file)); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}
